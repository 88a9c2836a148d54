package gameserver

import (
	"net"
	"time"

	"github.com/lifenet/server/internal/netmgr"
	"github.com/lifenet/server/internal/protocol"
)

// Player is one connected client: its identity, its reliability-layer
// queues, and which room (if any) it currently occupies.
type Player struct {
	ID            uint64
	Name          string
	Cookie        protocol.Cookie
	ClientVersion string
	Addr          net.Addr

	// RequestAck is the sequence of the last Request this player's stream
	// has fully processed, or nil before the first one (sequence 0).
	RequestAck *uint64

	// ResponseSeq is this player's own monotonic Response sequence counter.
	ResponseSeq uint64

	LastReceived time.Time

	RoomID *uint64 // nil while in the lobby

	// RoomSlot is this player's index into its room's Universe player
	// planes, valid only while RoomID is non-nil.
	RoomSlot int

	ChatMsgSeqNum     uint64
	GameUpdateSeqNum  uint64
	LastGen           uint64
	LastPong          uint64

	Net *netmgr.Manager
}

// InRoom reports whether the player currently occupies a room.
func (p *Player) InRoom() bool { return p.RoomID != nil }

// CanProcessPacket reports whether seq is the next packet this player's
// stream can process immediately, without buffering.
func (p *Player) CanProcessPacket(seq uint64) bool {
	if p.RequestAck == nil {
		return seq == 0
	}
	return *p.RequestAck+1 == seq
}

// AlreadyProcessed reports whether seq has already been handled (it is at
// or before the player's current ack point).
func (p *Player) AlreadyProcessed(seq uint64) bool {
	return p.RequestAck != nil && seq <= *p.RequestAck
}

// MarkProcessed advances the player's ack point to seq.
func (p *Player) MarkProcessed(seq uint64) {
	p.RequestAck = &seq
}

// TimedOut reports whether the player has been silent longer than timeout.
func (p *Player) TimedOut(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastReceived) > timeout
}

// NextResponseSeq returns and consumes the next sequence number for a
// Response this player's stream will send.
func (p *Player) NextResponseSeq() uint64 {
	seq := p.ResponseSeq
	p.ResponseSeq++
	return seq
}
