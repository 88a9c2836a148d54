package gameserver

import (
	"time"

	"github.com/lifenet/server/internal/protocol"
)

// roomEvent is one room-membership notice (join/leave/created), timestamped
// for the same ring eviction policy chat uses.
type roomEvent struct {
	Update    protocol.GameUpdate
	Timestamp time.Time
}

func newGameUpdateRing(capacity int) *seqRing[roomEvent] {
	return newSeqRing(capacity,
		func(e roomEvent) uint64 { return e.Update.SeqNum },
		func(e roomEvent) time.Time { return e.Timestamp },
	)
}
