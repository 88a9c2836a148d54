package universe

import (
	"fmt"

	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/region"
)

// OptionalGen is a generation number that may be absent — an unused history
// slot, or a client universe that hasn't received a first snapshot yet.
type OptionalGen struct {
	Value   uint64
	Present bool
}

func someGen(v uint64) OptionalGen { return OptionalGen{Value: v, Present: true} }

// PlayerPlanes holds one player's per-generation cells and fog masks.
type PlayerPlanes struct {
	Cells *bitgrid.BitGrid
	Fog   *bitgrid.BitGrid
}

// GenState holds one generation: the union cells/walls/known planes plus
// each player's own cells/fog. It implements rle.CharGrid so it can be both
// the source and the destination of an RLE pattern.
type GenState struct {
	gen       OptionalGen
	cells     *bitgrid.BitGrid
	wallCells *bitgrid.BitGrid
	known     *bitgrid.BitGrid
	players   []PlayerPlanes
}

func newGenState(width, height, numPlayers int) (*GenState, error) {
	cells, err := bitgrid.New(width, height)
	if err != nil {
		return nil, err
	}
	walls, err := bitgrid.New(width, height)
	if err != nil {
		return nil, err
	}
	known, err := bitgrid.New(width, height)
	if err != nil {
		return nil, err
	}
	players := make([]PlayerPlanes, numPlayers)
	for p := range players {
		pc, err := bitgrid.New(width, height)
		if err != nil {
			return nil, err
		}
		pf, err := bitgrid.New(width, height)
		if err != nil {
			return nil, err
		}
		players[p] = PlayerPlanes{Cells: pc, Fog: pf}
	}
	return &GenState{cells: cells, wallCells: walls, known: known, players: players}, nil
}

func (g *GenState) Width() int  { return g.cells.Width() }
func (g *GenState) Height() int { return g.cells.Height() }

func (g *GenState) Gen() OptionalGen { return g.gen }

func (g *GenState) Cells() *bitgrid.BitGrid         { return g.cells }
func (g *GenState) WallCells() *bitgrid.BitGrid     { return g.wallCells }
func (g *GenState) Known() *bitgrid.BitGrid         { return g.known }
func (g *GenState) NumPlayers() int                 { return len(g.players) }
func (g *GenState) PlayerCells(p int) *bitgrid.BitGrid { return g.players[p].Cells }
func (g *GenState) PlayerFog(p int) *bitgrid.BitGrid   { return g.players[p].Fog }

func (g *GenState) fullRegion() region.Region {
	return region.New(0, 0, g.Width(), g.Height())
}

// clearAll zeroes every plane and marks the slot unpopulated.
func (g *GenState) clearAll() {
	g.gen = OptionalGen{}
	g.cells.ClearAll()
	g.wallCells.ClearAll()
	g.known.ClearAll()
	for _, p := range g.players {
		p.Cells.ClearAll()
		p.Fog.ClearAll()
	}
}

// overwriteFrom makes g a full copy of src (used by apply() to seed the
// destination slot from its base generation before the diff is applied).
func (g *GenState) overwriteFrom(src *GenState) {
	r := g.fullRegion()
	g.cells.CopyFrom(src.cells, r)
	g.wallCells.CopyFrom(src.wallCells, r)
	g.known.CopyFrom(src.known, r)
	for p := range g.players {
		g.players[p].Cells.CopyFrom(src.players[p].Cells, r)
		g.players[p].Fog.CopyFrom(src.players[p].Fog, r)
	}
}

// owner reports the owning player of an alive cell, if any.
func (g *GenState) owner(col, row int) (int, bool) {
	for p := range g.players {
		if g.players[p].Cells.Get(col, row) {
			return p, true
		}
	}
	return 0, false
}

// charAt is the single-cell RLE character GetRun scans runs of.
func (g *GenState) charAt(col, row int, vis cell.Visibility) byte {
	if player, isPlayer := vis.Player(); isPlayer && g.players[player].Fog.Get(col, row) {
		return '?'
	}
	if !g.known.Get(col, row) {
		return '?'
	}
	if g.wallCells.Get(col, row) {
		return 'W'
	}
	if g.cells.Get(col, row) {
		if p, owned := g.owner(col, row); owned {
			return 'A' + byte(p)
		}
		return 'o'
	}
	return 'b'
}

// GetRun implements rle.CharGrid.
func (g *GenState) GetRun(col, row int, vis cell.Visibility) (int, byte) {
	ch := g.charAt(col, row, vis)
	length := 1
	for c := col + 1; c < g.Width() && g.charAt(c, row, vis) == ch; c++ {
		length++
	}
	return length, ch
}

// WriteAt implements rle.CharGrid: it writes the cell state encoded by ch as
// observed through vis. Under a player's visibility, the fog character
// updates only that player's own fog plane; any other character marks the
// cell known and clears that player's fog there, since the viewer has just
// learned its true state. Under server visibility, every plane reflects the
// full truth directly.
func (g *GenState) WriteAt(col, row int, ch byte, vis cell.Visibility) error {
	if ch == cell.NoOpChar {
		return fmt.Errorf("genstate: no-op character must be filtered by the caller")
	}
	state, err := cell.FromChar(ch)
	if err != nil {
		return err
	}

	player, isPlayer := vis.Player()
	if isPlayer && state.Kind == cell.Fog {
		g.players[player].Fog.Set(col, row)
		return nil
	}

	g.known.Set(col, row)
	g.wallCells.SetTo(col, row, state.Kind == cell.Wall)
	g.cells.SetTo(col, row, state.Kind == cell.Alive)
	for p := range g.players {
		owns := state.Kind == cell.Alive && state.HasOwner && state.Owner == p
		g.players[p].Cells.SetTo(col, row, owns)
	}
	if isPlayer {
		g.players[player].Fog.Clear(col, row)
	}
	return nil
}

// checkInvariantsAt panics if any of the five GenState invariants are
// violated at (col, row) — a correctness audit, not a hot path.
func (g *GenState) checkInvariantsAt(col, row int) {
	cells := g.cells.Get(col, row)
	wall := g.wallCells.Get(col, row)
	known := g.known.Get(col, row)

	if cells && wall {
		panic(fmt.Sprintf("genstate: cell (%d,%d) is both alive and a wall", col, row))
	}
	if !known && (cells || wall) {
		panic(fmt.Sprintf("genstate: cell (%d,%d) is unknown but alive or wall", col, row))
	}

	owners := 0
	for p := range g.players {
		pc := g.players[p].Cells.Get(col, row)
		pf := g.players[p].Fog.Get(col, row)
		if pc {
			owners++
			if !cells || wall || !known {
				panic(fmt.Sprintf("genstate: cell (%d,%d) owned by player %d without being a known live non-wall cell", col, row, p))
			}
			if pc && pf {
				panic(fmt.Sprintf("genstate: cell (%d,%d) is both owned and fogged for player %d", col, row, p))
			}
		}
	}
	if owners > 1 {
		panic(fmt.Sprintf("genstate: cell (%d,%d) is owned by more than one player", col, row))
	}
}
