package gameserver

import "time"

// ServerSentinelPlayerID tags a chat message synthesized by the server
// itself (e.g. "Player X has left.") rather than authored by a connected
// player.
const ServerSentinelPlayerID = ^uint64(0)

// ChatMessage is one line in a room's chat history.
type ChatMessage struct {
	SeqNum     uint64
	PlayerID   uint64
	PlayerName string
	Message    string
	Timestamp  time.Time
}

func newChatRing(capacity int) *seqRing[ChatMessage] {
	return newSeqRing(capacity,
		func(m ChatMessage) uint64 { return m.SeqNum },
		func(m ChatMessage) time.Time { return m.Timestamp },
	)
}
