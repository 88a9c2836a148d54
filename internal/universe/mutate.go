package universe

import (
	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/region"
)

// SetUnchecked writes newState directly onto the current generation,
// preserving invariants. It panics if the target cell is not known — an
// unchecked write to an unknown cell is always a caller bug.
func (u *Universe) SetUnchecked(col, row int, newState cell.State) {
	cur := u.Current()
	if !cur.known.Get(col, row) {
		panic("universe: set_unchecked called on an unknown cell")
	}
	ch, err := cell.ToChar(newState)
	if err != nil {
		panic(err)
	}
	if err := cur.WriteAt(col, row, ch, cell.ServerVisibility()); err != nil {
		panic(err)
	}
	if newState.Kind == cell.Alive && newState.HasOwner && newState.Owner < len(cur.players) {
		cur.players[newState.Owner].Fog.Clear(col, row)
	}
}

// Set writes newState as playerID, silently doing nothing if the cell is
// outside the player's writable region, on a wall, under the player's own
// fog, or already alive and owned by a different player. It panics if
// newState claims ownership for a player other than playerID.
func (u *Universe) Set(col, row int, newState cell.State, playerID int) {
	if newState.Kind == cell.Alive && newState.HasOwner && newState.Owner != playerID {
		panic("universe: set cannot assign a cell to a different player's ownership")
	}
	cur := u.Current()
	if !u.writable[playerID].Contains(col, row) {
		return
	}
	if cur.wallCells.Get(col, row) {
		return
	}
	if cur.players[playerID].Fog.Get(col, row) {
		return
	}
	if cur.cells.Get(col, row) {
		if owner, owned := cur.owner(col, row); owned && owner != playerID {
			return
		}
	}
	u.SetUnchecked(col, row, newState)
}

// ToggleUnchecked flips (col,row) between dead and alive, assigning the
// given owner (nil for unowned) when it comes alive, and returns the cell's
// new state.
func (u *Universe) ToggleUnchecked(col, row int, player *int) cell.State {
	cur := u.Current()
	var newState cell.State
	if cur.cells.Get(col, row) {
		newState = cell.DeadState
	} else if player != nil {
		newState = cell.AliveOwned(*player)
	} else {
		newState = cell.AliveUnowned()
	}
	u.SetUnchecked(col, row, newState)
	return newState
}

// Toggle is the checked form of ToggleUnchecked: it fails with
// AccessDeniedError outside the player's writable region, on a wall, or on
// an unknown cell.
func (u *Universe) Toggle(col, row int, playerID int) (cell.State, error) {
	cur := u.Current()
	if !u.writable[playerID].Contains(col, row) {
		return cell.State{}, &AccessDeniedError{Reason: "outside player's writable region"}
	}
	if cur.wallCells.Get(col, row) {
		return cell.State{}, &AccessDeniedError{Reason: "cell is a wall"}
	}
	if !cur.known.Get(col, row) {
		return cell.State{}, &AccessDeniedError{Reason: "cell is unknown"}
	}
	p := playerID
	return u.ToggleUnchecked(col, row, &p), nil
}

// CopyFromBitGrid OR-copies src into the universe at dstRegion as playerID's
// cells (or unowned, if playerID is nil): walls are preserved (src bits are
// masked by ¬wall), fog is cleared wherever src has a 1, and when playerID
// is given dstRegion is first intersected with that player's writable
// region.
func (u *Universe) CopyFromBitGrid(src *bitgrid.BitGrid, dstRegion region.Region, playerID *int) {
	r := dstRegion
	if playerID != nil {
		inter, ok := r.Intersection(u.writable[*playerID])
		if !ok {
			return
		}
		r = inter
	}
	clipped, ok := r.Intersection(u.fullRegion())
	if !ok {
		return
	}

	cur := u.Current()
	for row := clipped.Top; row <= clipped.Bottom(); row++ {
		for col := clipped.Left; col <= clipped.Right(); col++ {
			srcCol := col - dstRegion.Left
			srcRow := row - dstRegion.Top
			if srcCol < 0 || srcCol >= src.Width() || srcRow < 0 || srcRow >= src.Height() {
				continue
			}
			if !src.Get(srcCol, srcRow) {
				continue
			}
			if cur.wallCells.Get(col, row) {
				continue
			}
			cur.cells.Set(col, row)
			cur.known.Set(col, row)
			if playerID != nil {
				for p := range cur.players {
					if p != *playerID {
						cur.players[p].Cells.Clear(col, row)
					}
				}
				cur.players[*playerID].Cells.Set(col, row)
				cur.players[*playerID].Fog.Clear(col, row)
			}
		}
	}
}
