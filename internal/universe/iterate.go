package universe

import (
	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/region"
)

// EachNonDead visits every non-Dead cell of the current generation
// intersecting r, as seen through vis. It re-checks every GenState
// invariant at each visited cell and panics on inconsistency: this is a
// correctness audit, not a hot path.
func (u *Universe) EachNonDead(r region.Region, vis cell.Visibility, fn func(col, row int, state cell.State)) {
	cur := u.Current()
	clipped, ok := r.Intersection(u.fullRegion())
	if !ok {
		return
	}

	player, isPlayer := vis.Player()
	for row := clipped.Top; row <= clipped.Bottom(); row++ {
		for col := clipped.Left; col <= clipped.Right(); col++ {
			cur.checkInvariantsAt(col, row)

			var state cell.State
			switch {
			case isPlayer && cur.players[player].Fog.Get(col, row):
				state = cell.FogState
			case cur.wallCells.Get(col, row):
				state = cell.WallState
			case cur.cells.Get(col, row):
				if owner, owned := cur.owner(col, row); owned {
					state = cell.AliveOwned(owner)
				} else {
					state = cell.AliveUnowned()
				}
			default:
				state = cell.DeadState
			}

			if state.Kind != cell.Dead {
				fn(col, row, state)
			}
		}
	}
}
