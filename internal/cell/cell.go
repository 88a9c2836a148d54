// Package cell defines the single-cell state alphabet shared by the bit grid,
// the universe engine and the RLE codec: a cell is dead, alive (optionally
// owned by a player), a wall, or fogged, and every one of those five shapes
// serializes to exactly one byte.
package cell

import "fmt"

// Kind is the tag of a CellState.
type Kind uint8

const (
	Dead Kind = iota
	Alive
	Wall
	Fog
)

// State is a single cell's observable value. Owner/HasOwner are only
// meaningful when Kind == Alive.
type State struct {
	Kind     Kind
	Owner    int
	HasOwner bool
}

var (
	DeadState = State{Kind: Dead}
	WallState = State{Kind: Wall}
	FogState  = State{Kind: Fog}
)

// AliveUnowned returns an alive cell with no owner.
func AliveUnowned() State { return State{Kind: Alive} }

// AliveOwned returns an alive cell owned by the given player.
func AliveOwned(player int) State { return State{Kind: Alive, Owner: player, HasOwner: true} }

// MaxOwnedPlayers is the number of players the RLE alphabet can express as
// owners via the 'A'..'V' run: 22 letters.
const MaxOwnedPlayers = 22

// NoOpChar denotes "unchanged from the base generation" in a diff pattern.
// It never appears in a full (non-diff) snapshot.
const NoOpChar = '"'

// ToChar serializes a cell state to its single-character RLE representation.
func ToChar(s State) (byte, error) {
	switch s.Kind {
	case Dead:
		return 'b', nil
	case Wall:
		return 'W', nil
	case Fog:
		return '?', nil
	case Alive:
		if !s.HasOwner {
			return 'o', nil
		}
		if s.Owner < 0 || s.Owner >= MaxOwnedPlayers {
			return 0, fmt.Errorf("cell: owner %d out of range [0,%d)", s.Owner, MaxOwnedPlayers)
		}
		return 'A' + byte(s.Owner), nil
	default:
		return 0, fmt.Errorf("cell: unknown kind %d", s.Kind)
	}
}

// FromChar parses a single RLE character into a cell state. NoOpChar is
// rejected here — callers that walk diff patterns must special-case it
// themselves, since "no change" isn't a cell state at all.
func FromChar(c byte) (State, error) {
	switch {
	case c == 'b':
		return DeadState, nil
	case c == 'o':
		return AliveUnowned(), nil
	case c == 'W':
		return WallState, nil
	case c == '?':
		return FogState, nil
	case c >= 'A' && c < 'A'+MaxOwnedPlayers:
		return AliveOwned(int(c - 'A')), nil
	case c == NoOpChar:
		return State{}, fmt.Errorf("cell: %q is the no-op marker, not a cell state", c)
	default:
		return State{}, fmt.Errorf("cell: invalid RLE character %q", c)
	}
}

// Visibility selects whose knowledge a read or diff operation is expressed
// through. The zero value is ServerVisibility (full knowledge, no fog).
type Visibility struct {
	player   int
	isPlayer bool
}

// ServerVisibility is full, unfogged knowledge — the server's own view.
func ServerVisibility() Visibility { return Visibility{} }

// PlayerVisibility is the fog-filtered view of the given player.
func PlayerVisibility(player int) Visibility { return Visibility{player: player, isPlayer: true} }

// Player returns the player id and true if this visibility is scoped to a
// single player; false means server (full) visibility.
func (v Visibility) Player() (int, bool) { return v.player, v.isPlayer }
