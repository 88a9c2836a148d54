package gameserver

import "fmt"

// ProtocolError reports a packet rejected at the reliability/dispatch
// layer: wrong direction, missing or invalid cookie, stale client version,
// or an unknown player.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error: %s", e.Reason) }
