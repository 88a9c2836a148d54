// Package eventbus publishes room lifecycle and chat events to NATS for any
// external collaborator (a web dashboard, a moderation pipeline) that wants
// a read-only feed of what's happening in the game server, independent of
// the UDP protocol.
//
// It is optional: a server with no configured NATS URL runs with a no-op
// Bus.
package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject builders. The NATS subject hierarchy mirrors the room/global
// split of the protocol's own GameUpdate/ChatUpdate kinds.
const subjectPrefix = "lifenet"

// RoomJoinedSubject returns the subject a player-joined event for roomID
// publishes to.
func RoomJoinedSubject(roomID uint64) string { return fmt.Sprintf("%s.room.%d.joined", subjectPrefix, roomID) }

// RoomLeftSubject returns the subject a player-left event for roomID
// publishes to.
func RoomLeftSubject(roomID uint64) string { return fmt.Sprintf("%s.room.%d.left", subjectPrefix, roomID) }

// RoomChatSubject returns the subject a chat message in roomID publishes
// to.
func RoomChatSubject(roomID uint64) string { return fmt.Sprintf("%s.room.%d.chat", subjectPrefix, roomID) }

// GlobalSubject is the subject for server-wide events (room created/
// destroyed), not scoped to any single room.
const GlobalSubject = subjectPrefix + ".global"

// Bus publishes fire-and-forget event notifications. The zero value (a nil
// *nats.Conn) is a valid no-op Bus.
type Bus struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// Connect dials url and returns a Bus backed by it. If url is empty, it
// returns a no-op Bus that silently drops every publish.
func Connect(url string, logger zerolog.Logger) (*Bus, error) {
	if url == "" {
		return &Bus{logger: logger}, nil
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to %s: %w", url, err)
	}
	return &Bus{conn: conn, logger: logger}, nil
}

// Connected reports whether the bus holds a live NATS connection.
func (b *Bus) Connected() bool { return b.conn != nil && b.conn.IsConnected() }

// Close closes the underlying connection, if any, without draining it.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish sends data to subject, logging (but not returning) a failure —
// event publication is best-effort and must never block game logic.
func (b *Bus) Publish(subject string, data []byte) {
	if b.conn == nil {
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// PublishRoomJoined announces playerName joined roomID.
func (b *Bus) PublishRoomJoined(roomID uint64, playerName string) {
	b.Publish(RoomJoinedSubject(roomID), []byte(playerName))
}

// PublishRoomLeft announces playerName left roomID.
func (b *Bus) PublishRoomLeft(roomID uint64, playerName string) {
	b.Publish(RoomLeftSubject(roomID), []byte(playerName))
}

// PublishRoomChat forwards a chat message for roomID.
func (b *Bus) PublishRoomChat(roomID uint64, playerName, message string) {
	b.Publish(RoomChatSubject(roomID), []byte(playerName+": "+message))
}
