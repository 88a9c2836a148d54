package universe

import "github.com/lifenet/server/internal/bitgrid"

// westWord realigns word so that each bit holds its own west (column-1)
// neighbor's value, pulling the missing top bit in from the word one to the
// left (column 0 of this word's west neighbor is column 63 of leftWord).
// Column c lives at bit (63-c), so "one column west" is "one bit position
// higher".
func westWord(word, leftWord uint64) uint64 {
	return (word >> 1) | (leftWord&1)<<63
}

// eastWord is westWord's mirror: each bit holds its east (column+1)
// neighbor, with the missing bit pulled in from rightWord's column 0.
func eastWord(word, rightWord uint64) uint64 {
	return (word << 1) | (rightWord >> 63)
}

// neighborWords returns the nine 64-bit words covering the 3x3 neighborhood
// of the word at (row, wordIdx) in g, wrapping both axes toroidally. center
// is g's own word; the other eight are its shifted/adjacent neighbors.
func neighborWords(g *bitgrid.BitGrid, row, wordIdx int) (nw, n, ne, w, center, e, sw, s, se uint64) {
	height := g.Height()
	wpr := g.WordsPerRow()
	topRow := mod(row-1, height)
	botRow := mod(row+1, height)
	leftWord := mod(wordIdx-1, wpr)
	rightWord := mod(wordIdx+1, wpr)

	topCenter := g.Word(topRow, wordIdx)
	n = topCenter
	nw = westWord(topCenter, g.Word(topRow, leftWord))
	ne = eastWord(topCenter, g.Word(topRow, rightWord))

	center = g.Word(row, wordIdx)
	w = westWord(center, g.Word(row, leftWord))
	e = eastWord(center, g.Word(row, rightWord))

	botCenter := g.Word(botRow, wordIdx)
	s = botCenter
	sw = westWord(botCenter, g.Word(botRow, leftWord))
	se = eastWord(botCenter, g.Word(botRow, rightWord))
	return
}

func halfAdd(a, b uint64) (sum, carry uint64) {
	return a ^ b, a & b
}

// neighborCount8 bit-slices the population count (0..8) of the eight words
// into four per-bit-lane planes c0 (ones) .. c3 (eights), by ripple-adding
// each addend into a 4-bit binary counter one word at a time.
func neighborCount8(words [8]uint64) (c0, c1, c2, c3 uint64) {
	for _, a := range words {
		var carry uint64
		c0, carry = halfAdd(c0, a)
		c1, carry = halfAdd(c1, carry)
		c2, carry = halfAdd(c2, carry)
		c3 ^= carry
	}
	return
}

// nextSingleGen applies the standard CGoL rule bitwise: a cell is alive next
// generation iff it has exactly 3 live neighbors, or exactly 2 and is
// already alive.
func nextSingleGen(center uint64, nw, n, ne, w, e, sw, s, se uint64) uint64 {
	c0, c1, c2, c3 := neighborCount8([8]uint64{nw, n, ne, w, e, sw, s, se})
	is2 := ^c3 & ^c2 & c1 & ^c0
	is3 := ^c3 & ^c2 & c1 & c0
	return is3 | (center & is2)
}

// contagiousZero is 0 at any position where any of the nine neighborhood
// words (including center) is 0 — used on `known` so unknown is contagious.
func contagiousZero(nw, n, ne, w, center, e, sw, s, se uint64) uint64 {
	return nw & n & ne & w & center & e & sw & s & se
}

// contagiousOne is 1 at any position where any of the nine neighborhood
// words (including center) is 1 — used per-player to propagate candidate
// ownership into newly-born cells.
func contagiousOne(nw, n, ne, w, center, e, sw, s, se uint64) uint64 {
	return nw | n | ne | w | center | e | sw | s | se
}

// Next advances the universe by one generation: bit-parallel CGoL evolution
// with per-player ownership resolution, knowledge propagation, and
// fog-of-war clearing around newly-lit player cells.
func (u *Universe) Next() {
	src := u.Current()
	destIdx := mod(u.stateIndex+1, len(u.history))
	dest := u.history[destIdx]

	numPlayers := len(u.writable)
	candidates := make([][]uint64, numPlayers)
	for p := range candidates {
		candidates[p] = make([]uint64, u.height*src.cells.WordsPerRow())
	}

	wpr := src.cells.WordsPerRow()
	for row := 0; row < u.height; row++ {
		for w := 0; w < wpr; w++ {
			knw, kn, kne, kw, kc, ke, ksw, ks, kse := neighborWords(src.known, row, w)
			knownNext := contagiousZero(knw, kn, kne, kw, kc, ke, ksw, ks, kse)

			cnw, cn, cne, cw, cc, ce, csw, cs, cse := neighborWords(src.cells, row, w)
			ruleWord := nextSingleGen(cc, cnw, cn, cne, cw, ce, csw, cs, cse)

			wallWord := src.wallCells.Word(row, w)
			cellsNext := ruleWord & knownNext &^ wallWord

			dest.known.SetWord(row, w, knownNext)
			dest.wallCells.SetWord(row, w, wallWord)
			dest.cells.SetWord(row, w, cellsNext)

			for p := 0; p < numPlayers; p++ {
				pnw, pn, pne, pw, pc, pe, psw, ps, pse := neighborWords(src.players[p].Cells, row, w)
				candidate := contagiousOne(pnw, pn, pne, pw, pc, pe, psw, ps, pse) & cellsNext
				candidates[p][row*wpr+w] = candidate
			}
		}
	}

	// Resolve multi-player overlaps: a bit claimed by two or more players'
	// candidate words ends up unowned.
	for row := 0; row < u.height; row++ {
		for w := 0; w < wpr; w++ {
			idx := row*wpr + w
			var seen, multiple uint64
			for p := 0; p < numPlayers; p++ {
				multiple |= seen & candidates[p][idx]
				seen |= candidates[p][idx]
			}
			for p := 0; p < numPlayers; p++ {
				dest.players[p].Cells.SetWord(row, w, candidates[p][idx]&^multiple)
			}
		}
	}

	// Fog is sticky: copy it forward, then clear it around any cell that
	// just turned on for its owning player.
	full := u.fullRegion()
	for p := 0; p < numPlayers; p++ {
		dest.players[p].Fog.CopyFrom(src.players[p].Fog, full)
	}
	for p := 0; p < numPlayers; p++ {
		newOnes := dest.players[p].Cells.Clone()
		newOnes.AndNot(src.players[p].Cells)
		newOnes.ForEachSet(full, func(col, row int) {
			u.clearFogAroundCell(dest, p, col, row)
		})
	}

	nextGen := uint64(1)
	if u.generation.Present {
		nextGen = u.generation.Value + 1
	}
	u.generation = someGen(nextGen)
	u.stateIndex = destIdx
	dest.gen = someGen(nextGen)
}

// clearFogAroundCell applies the fog_circle stencil centered on (col, row)
// to player's fog plane: a 0 bit in the stencil clears fog at the
// corresponding wrapped cell. Repeated application is a no-op, since
// clearing an already-clear bit changes nothing.
func (u *Universe) clearFogAroundCell(dest *GenState, player, col, row int) {
	r := u.fogRadius
	center := r - 1
	for dy := -center; dy <= center; dy++ {
		for dx := -center; dx <= center; dx++ {
			if u.fogCircle.Get(dx+center, dy+center) {
				continue
			}
			dest.players[player].Fog.Clear(mod(col+dx, u.width), mod(row+dy, u.height))
		}
	}
}
