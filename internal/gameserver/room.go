package gameserver

import (
	"time"

	"github.com/lifenet/server/internal/protocol"
	"github.com/lifenet/server/internal/region"
	"github.com/lifenet/server/internal/universe"
)

// Room is a named universe plus its player roster and the chat/event
// history each joined player is kept in sync with.
type Room struct {
	ID   uint64
	Name string

	maxPlayers int
	slots      []uint64 // player ID in slot i; meaningful only while occupied[i] is true
	occupied   []bool

	Universe *universe.Universe

	Chat        *seqRing[ChatMessage]
	nextChatSeq uint64

	GameUpdates        *seqRing[roomEvent]
	nextGameUpdateSeq uint64
}

// newRoom builds a Room with a fresh Universe sized per config, one
// writable quadrant-ish strip per max-player slot (equal horizontal bands
// across the universe's height, wrapping is toroidal so a band's top/bottom
// edges are no different from its middle).
func newRoom(id uint64, name string, universeWidth, universeHeight, historyDepth, fogRadius, maxPlayers, chatCap, gameUpdateCap int) (*Room, error) {
	bb := universe.NewBigBang().
		Width(universeWidth).
		Height(universeHeight).
		History(historyDepth).
		FogRadius(fogRadius).
		ServerMode(true)

	bandHeight := universeHeight / maxPlayers
	if bandHeight < 1 {
		bandHeight = 1
	}
	for i := 0; i < maxPlayers; i++ {
		top := i * bandHeight
		height := bandHeight
		if i == maxPlayers-1 {
			height = universeHeight - top
		}
		bb = bb.AddPlayer(region.New(0, top, universeWidth, height))
	}

	u, err := bb.Birth()
	if err != nil {
		return nil, err
	}

	return &Room{
		ID:          id,
		Name:        name,
		maxPlayers:  maxPlayers,
		slots:       make([]uint64, maxPlayers),
		occupied:    make([]bool, maxPlayers),
		Universe:    u,
		Chat:        newChatRing(chatCap),
		GameUpdates: newGameUpdateRing(gameUpdateCap),
	}, nil
}

// JoinSlot assigns playerID the first free slot, returning its index. It
// returns false if the room is full.
func (r *Room) JoinSlot(playerID uint64) (int, bool) {
	for i, occ := range r.occupied {
		if !occ {
			r.occupied[i] = true
			r.slots[i] = playerID
			return i, true
		}
	}
	return 0, false
}

// LeaveSlot frees the slot the player occupied.
func (r *Room) LeaveSlot(slot int) {
	if slot < 0 || slot >= len(r.occupied) {
		return
	}
	r.occupied[slot] = false
	r.slots[slot] = 0
}

// PlayerIDs returns the IDs currently occupying a slot.
func (r *Room) PlayerIDs() []uint64 {
	ids := make([]uint64, 0, len(r.slots))
	for i, occ := range r.occupied {
		if occ {
			ids = append(ids, r.slots[i])
		}
	}
	return ids
}

// Full reports whether every slot is occupied.
func (r *Room) Full() bool {
	for _, occ := range r.occupied {
		if !occ {
			return false
		}
	}
	return true
}

// Empty reports whether no player occupies a slot.
func (r *Room) Empty() bool {
	return len(r.PlayerIDs()) == 0
}

// AppendChat records a chat message, consuming the room's next chat
// sequence number. latest_seq_num starts at 0 and is incremented before each
// message, so the first chat message in a room gets sequence 1.
func (r *Room) AppendChat(playerID uint64, playerName, message string, now time.Time) uint64 {
	r.nextChatSeq++
	seq := r.nextChatSeq
	r.Chat.Append(ChatMessage{
		SeqNum:     seq,
		PlayerID:   playerID,
		PlayerName: playerName,
		Message:    message,
		Timestamp:  now,
	})
	return seq
}

// AppendGameUpdate records a room-membership/lifecycle notice, consuming
// the room's next game-update sequence number.
func (r *Room) AppendGameUpdate(kind protocol.GameUpdateKind, playerID uint64, text string, now time.Time) uint64 {
	seq := r.nextGameUpdateSeq
	r.nextGameUpdateSeq++
	r.GameUpdates.Append(roomEvent{
		Update: protocol.GameUpdate{
			SeqNum:   seq,
			Kind:     kind,
			RoomID:   r.ID,
			PlayerID: playerID,
			Text:     text,
		},
		Timestamp: now,
	})
	return seq
}
