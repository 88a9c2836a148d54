// Package universe implements the bit-packed multiplayer Conway's Game of
// Life engine: per-player ownership, walls, knowledge masks, fog-of-war, a
// circular generation history, and the diff/apply codec that lets a client
// reconstruct a generation from a compact delta against one it already has.
package universe

import (
	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/region"
)

// Universe owns a ring of GenState history slots, the current position in
// that ring, each player's writable rectangle, and the precomputed
// fog-clearing stencil. Construct one with BigBang.
type Universe struct {
	width, height int
	fogRadius     int
	serverMode    bool

	history    []*GenState
	stateIndex int
	generation OptionalGen

	writable  []region.Region
	fogCircle *bitgrid.BitGrid
}

func (u *Universe) Width() int        { return u.width }
func (u *Universe) Height() int       { return u.height }
func (u *Universe) FogRadius() int    { return u.fogRadius }
func (u *Universe) NumPlayers() int   { return len(u.writable) }
func (u *Universe) Generation() OptionalGen { return u.generation }
func (u *Universe) HistoryDepth() int { return len(u.history) }

func (u *Universe) PlayerWritable(p int) region.Region { return u.writable[p] }

// Current returns the GenState the ring currently points at.
func (u *Universe) Current() *GenState { return u.history[u.stateIndex] }

// LatestGen returns the current generation number, or 0 if none exists yet
// (client universes before their first apply()).
func (u *Universe) LatestGen() uint64 {
	if !u.generation.Present {
		return 0
	}
	return u.generation.Value
}

// findGen returns the history slot holding generation g, or nil if it has
// been evicted or never existed.
func (u *Universe) findGen(g uint64) *GenState {
	for _, gs := range u.history {
		if gs.gen.Present && gs.gen.Value == g {
			return gs
		}
	}
	return nil
}

func (u *Universe) fullRegion() region.Region {
	return region.New(0, 0, u.width, u.height)
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
