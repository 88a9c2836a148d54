package netmgr

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifenet/server/internal/protocol"
)

func newTestManager() *Manager {
	return New(zerolog.Nop())
}

func TestBufferItemSuppressesDuplicates(t *testing.T) {
	m := newTestManager()
	if dup := m.BufferItem(5, protocol.Request{Sequence: 5}); dup {
		t.Fatal("first insert of sequence 5 should not report duplicate")
	}
	if dup := m.BufferItem(5, protocol.Request{Sequence: 5}); !dup {
		t.Error("second insert of sequence 5 should report duplicate")
	}
	if m.RxLen() != 1 {
		t.Errorf("RxLen = %d, want 1", m.RxLen())
	}
}

func TestGetContiguousPacketsCountAndDrainOrder(t *testing.T) {
	m := newTestManager()
	for _, seq := range []uint64{3, 1, 2, 5} {
		m.BufferItem(seq, protocol.Request{Sequence: seq})
	}

	if got := m.GetContiguousPacketsCount(1); got != 3 {
		t.Fatalf("GetContiguousPacketsCount(1) = %d, want 3", got)
	}
	if got := m.GetContiguousPacketsCount(4); got != 0 {
		t.Fatalf("GetContiguousPacketsCount(4) = %d, want 0", got)
	}

	drained := m.DrainContiguous(1)
	if len(drained) != 3 {
		t.Fatalf("DrainContiguous(1) returned %d packets, want 3", len(drained))
	}
	for i, req := range drained {
		want := uint64(1 + i)
		if req.Sequence != want {
			t.Errorf("drained[%d].Sequence = %d, want %d", i, req.Sequence, want)
		}
	}
	if m.RxLen() != 1 {
		t.Errorf("RxLen after drain = %d, want 1 (sequence 5 remains)", m.RxLen())
	}
}

func TestAppendTxDropsOldestAtCapacity(t *testing.T) {
	m := newTestManager()
	now := time.Unix(0, 0)
	for i := 0; i < QueueCap+1; i++ {
		m.AppendTx(protocol.Response{Sequence: uint64(i)}, now)
	}
	if m.TxLen() != QueueCap {
		t.Fatalf("TxLen = %d, want %d", m.TxLen(), QueueCap)
	}
	popped := m.TxPopFrontWithCount(1)
	if popped[0].Sequence != 1 {
		t.Errorf("oldest surviving tx entry has sequence %d, want 1 (sequence 0 should have been dropped)", popped[0].Sequence)
	}
}

func TestClearTransmissionQueueOnAck(t *testing.T) {
	m := newTestManager()
	now := time.Unix(0, 0)
	for i := uint64(0); i < 5; i++ {
		m.AppendTx(protocol.Response{Sequence: i}, now)
	}
	m.ClearTransmissionQueueOnAck(2)
	if m.TxLen() != 2 {
		t.Fatalf("TxLen after ack(2) = %d, want 2", m.TxLen())
	}
	remaining := m.TxPopFrontWithCount(2)
	if remaining[0].Sequence != 3 || remaining[1].Sequence != 4 {
		t.Errorf("remaining sequences = %v, want [3 4]", remaining)
	}
}

func TestGetRetransmitIndicesUsesAggressiveThresholdAfterRetries(t *testing.T) {
	m := newTestManager()
	start := time.Unix(0, 0)
	m.AppendTx(protocol.Response{Sequence: 1}, start)

	justBelowNormal := start.Add(normalRetransmitThreshold - time.Millisecond)
	if indices := m.GetRetransmitIndices(justBelowNormal); len(indices) != 0 {
		t.Fatalf("expected no retransmit before normal threshold elapses, got %v", indices)
	}

	afterNormal := start.Add(normalRetransmitThreshold + time.Millisecond)
	indices := m.GetRetransmitIndices(afterNormal)
	if len(indices) != 1 {
		t.Fatalf("expected one retransmit index after normal threshold, got %v", indices)
	}

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 2016}
	ack := uint64(9)
	m.RetransmitExpiredTxPackets(addr, &ack, indices, afterNormal)
	m.RetransmitExpiredTxPackets(addr, &ack, indices, afterNormal)

	// After two retries, the threshold shrinks: an elapsed gap that would
	// not have triggered the normal threshold now does.
	shortGap := afterNormal.Add(aggressiveRetransmitThreshold + time.Millisecond)
	aggressive := m.GetRetransmitIndices(shortGap)
	if len(aggressive) != 1 {
		t.Fatalf("expected aggressive retransmit after two retries, got %v", aggressive)
	}
}

func TestRetransmitExpiredTxPacketsStampsAckAndIncrementsRetries(t *testing.T) {
	m := newTestManager()
	now := time.Unix(100, 0)
	m.AppendTx(protocol.Response{Sequence: 1, RequestAck: 0}, now)

	ack := uint64(42)
	later := now.Add(time.Second)
	out := m.RetransmitExpiredTxPackets(&net.UDPAddr{}, &ack, []int{0}, later)
	if len(out) != 1 {
		t.Fatalf("expected one datagram, got %d", len(out))
	}
	if out[0].Packet.Response.RequestAck != 42 {
		t.Errorf("RequestAck = %d, want 42", out[0].Packet.Response.RequestAck)
	}
	if m.tx[0].Attempt.Retries != 1 {
		t.Errorf("Retries = %d, want 1", m.tx[0].Attempt.Retries)
	}
	if !m.tx[0].Attempt.Time.Equal(later) {
		t.Errorf("Attempt.Time = %v, want %v", m.tx[0].Attempt.Time, later)
	}
}
