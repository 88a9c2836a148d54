// Package netmgr implements the per-player reliability layer on top of the
// raw UDP socket: an out-of-order receive buffer that reassembles a
// contiguous run of request sequences, and a retransmitting send queue whose
// retransmit threshold shortens once an entry has failed repeatedly.
package netmgr

import (
	"container/heap"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifenet/server/internal/protocol"
)

// QueueCap bounds each of a player's rx and tx queues. The oldest entry is
// dropped (and logged) rather than growing without bound when a player
// falls badly behind or goes silent mid-burst.
const QueueCap = 256

const (
	normalRetransmitThreshold     = 250 * time.Millisecond
	aggressiveRetransmitThreshold = 100 * time.Millisecond
	aggressiveAfterRetries        = 2
)

// NetAttempt tracks a single tx entry's retransmission history.
type NetAttempt struct {
	Time    time.Time
	Retries uint32
}

// rxItem is one buffered inbound request, ordered by Sequence for the rx
// priority queue.
type rxItem struct {
	Sequence uint64
	Request  protocol.Request
	index    int
}

type rxHeap []*rxItem

func (h rxHeap) Len() int            { return len(h) }
func (h rxHeap) Less(i, j int) bool  { return h[i].Sequence < h[j].Sequence }
func (h rxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *rxHeap) Push(x any) {
	item := x.(*rxItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *rxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// txItem is one queued outbound response plus its retransmission state.
type txItem struct {
	Response protocol.Response
	Attempt  NetAttempt
}

// Manager is one player's rx/tx reliability state. It is not safe for
// concurrent use — the server's single-threaded event loop owns it.
type Manager struct {
	logger zerolog.Logger

	rx     rxHeap
	rxSeen map[uint64]struct{}

	tx []txItem
}

// New constructs an empty Manager for one player.
func New(logger zerolog.Logger) *Manager {
	m := &Manager{
		logger: logger,
		rxSeen: make(map[uint64]struct{}),
	}
	heap.Init(&m.rx)
	return m
}

// BufferItem enqueues an out-of-order request into the rx priority queue.
// Returns true iff a packet with that sequence is already buffered (the
// caller should treat this as a duplicate and drop it).
func (m *Manager) BufferItem(seq uint64, req protocol.Request) bool {
	if _, dup := m.rxSeen[seq]; dup {
		return true
	}
	if len(m.rx) >= QueueCap {
		m.dropOldestRx()
	}
	heap.Push(&m.rx, &rxItem{Sequence: seq, Request: req})
	m.rxSeen[seq] = struct{}{}
	return false
}

func (m *Manager) dropOldestRx() {
	if len(m.rx) == 0 {
		return
	}
	oldest := m.rx[0]
	for _, item := range m.rx {
		if item.Sequence < oldest.Sequence {
			oldest = item
		}
	}
	m.removeRxSeq(oldest.Sequence)
	m.logger.Warn().Uint64("sequence", oldest.Sequence).Msg("rx queue full, dropping oldest buffered request")
}

func (m *Manager) removeRxSeq(seq uint64) {
	for i, item := range m.rx {
		if item.Sequence == seq {
			heap.Remove(&m.rx, i)
			delete(m.rxSeen, seq)
			return
		}
	}
}

// GetContiguousPacketsCount returns the number of queued rx packets whose
// sequences run consecutively starting at startingSeq.
func (m *Manager) GetContiguousPacketsCount(startingSeq uint64) int {
	present := make(map[uint64]struct{}, len(m.rx))
	for _, item := range m.rx {
		present[item.Sequence] = struct{}{}
	}
	count := 0
	seq := startingSeq
	for {
		if _, ok := present[seq]; !ok {
			break
		}
		count++
		seq++
	}
	return count
}

// DrainContiguous pops and returns, in sequence order, the contiguous run
// of rx packets starting at startingSeq.
func (m *Manager) DrainContiguous(startingSeq uint64) []protocol.Request {
	count := m.GetContiguousPacketsCount(startingSeq)
	out := make([]protocol.Request, 0, count)
	for i := 0; i < count; i++ {
		item := heap.Pop(&m.rx).(*rxItem)
		delete(m.rxSeen, item.Sequence)
		out = append(out, item.Request)
	}
	return out
}

// RxLen reports the number of currently buffered rx packets.
func (m *Manager) RxLen() int { return len(m.rx) }

// AppendTx enqueues a response to be sent and eventually retransmitted
// until acknowledged.
func (m *Manager) AppendTx(resp protocol.Response, now time.Time) {
	if len(m.tx) >= QueueCap {
		dropped := m.tx[0]
		m.tx = m.tx[1:]
		m.logger.Warn().Uint64("sequence", dropped.Response.Sequence).Msg("tx queue full, dropping oldest unacknowledged response")
	}
	m.tx = append(m.tx, txItem{Response: resp, Attempt: NetAttempt{Time: now, Retries: 0}})
}

// TxLen reports the number of currently queued (unacknowledged) responses.
func (m *Manager) TxLen() int { return len(m.tx) }

// ClearTransmissionQueueOnAck drops every tx entry whose sequence is <= ack.
func (m *Manager) ClearTransmissionQueueOnAck(ack uint64) {
	i := 0
	for i < len(m.tx) && m.tx[i].Response.Sequence <= ack {
		i++
	}
	m.tx = m.tx[i:]
}

// TxPopFrontWithCount removes and returns the n oldest tx entries.
func (m *Manager) TxPopFrontWithCount(n int) []protocol.Response {
	if n > len(m.tx) {
		n = len(m.tx)
	}
	out := make([]protocol.Response, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.tx[i].Response)
	}
	m.tx = m.tx[n:]
	return out
}

// GetRetransmitIndices returns indices of tx entries due for retransmission
// at now. An entry that has already failed aggressiveAfterRetries times
// uses a shorter backoff threshold on the theory that a client still alive
// after repeated silence is likely dropping packets, not merely slow.
func (m *Manager) GetRetransmitIndices(now time.Time) []int {
	var indices []int
	for i, item := range m.tx {
		threshold := normalRetransmitThreshold
		if item.Attempt.Retries >= aggressiveAfterRetries {
			threshold = aggressiveRetransmitThreshold
		}
		if now.Sub(item.Attempt.Time) >= threshold {
			indices = append(indices, i)
		}
	}
	return indices
}

// Datagram pairs a packet with the address it should be sent to.
type Datagram struct {
	Packet protocol.Packet
	Addr   net.Addr
}

// RetransmitExpiredTxPackets builds outbound datagrams for the given tx
// indices, stamping each response's RequestAck (if ack is non-nil),
// incrementing its retry count, and resetting its retransmit clock to now.
func (m *Manager) RetransmitExpiredTxPackets(addr net.Addr, ack *uint64, indices []int, now time.Time) []Datagram {
	out := make([]Datagram, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(m.tx) {
			continue
		}
		resp := m.tx[idx].Response
		if ack != nil {
			resp.RequestAck = *ack
		}
		m.tx[idx].Attempt.Retries++
		m.tx[idx].Attempt.Time = now
		out = append(out, Datagram{Packet: protocol.Packet{Response: &resp}, Addr: addr})
	}
	return out
}
