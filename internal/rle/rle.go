// Package rle implements the run-length-encoded grid format shared by full
// snapshots and generation diffs: a CharGrid capability interface, the
// Pattern the wire format parses into, and the GenStatePair helper diff()
// uses to walk two generations as a single run-length source.
package rle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/cell"
)

// CharGrid is implemented by anything that can be read and written as a grid
// of single RLE characters: BitGrid, GenState, and the transient
// GenStatePair used only inside diff().
type CharGrid interface {
	Width() int
	Height() int
	WriteAt(col, row int, ch byte, vis cell.Visibility) error
	GetRun(col, row int, vis cell.Visibility) (int, byte)
}

// Run is one (length, char) token: length contiguous cells starting at some
// column, all sharing char.
type Run struct {
	Length int
	Char   byte
}

// Pattern is a parsed RLE grid: one run slice per row, each row's runs
// summing exactly to Width.
type Pattern struct {
	Width, Height int
	Rows          [][]Run
}

// FromGrid walks g under the given visibility and captures it as a Pattern.
func FromGrid(g CharGrid, vis cell.Visibility) Pattern {
	width, height := g.Width(), g.Height()
	rows := make([][]Run, height)
	for row := 0; row < height; row++ {
		var runs []Run
		for col := 0; col < width; {
			length, ch := g.GetRun(col, row, vis)
			runs = append(runs, Run{Length: length, Char: ch})
			col += length
		}
		rows[row] = runs
	}
	return Pattern{Width: width, Height: height, Rows: rows}
}

// ToGrid writes the pattern into g under the given visibility. The no-op
// character leaves the destination cell untouched, which is how apply()
// reconstructs a generation from a diff against its base.
func (p Pattern) ToGrid(g CharGrid, vis cell.Visibility) error {
	for row, runs := range p.Rows {
		col := 0
		for _, r := range runs {
			if r.Char != cell.NoOpChar {
				for c := col; c < col+r.Length; c++ {
					if err := g.WriteAt(c, row, r.Char, vis); err != nil {
						return fmt.Errorf("rle: writing (%d,%d): %w", c, row, err)
					}
				}
			}
			col += r.Length
		}
		if col != p.Width {
			return fmt.Errorf("rle: row %d runs sum to %d, want width %d", row, col, p.Width)
		}
	}
	return nil
}

// ToNewBitGrid allocates a fresh width x height BitGrid and writes the
// pattern into it as the server (no fog, no no-op runs expected).
func (p Pattern) ToNewBitGrid(width, height int) (*bitgrid.BitGrid, error) {
	g, err := bitgrid.New(width, height)
	if err != nil {
		return nil, err
	}
	if err := p.ToGrid(g, cell.ServerVisibility()); err != nil {
		return nil, err
	}
	return g, nil
}

// GenStatePair is a transient CharGrid wrapping a diff's base and target
// generations: GetRun reports "no change" runs where both grids agree and
// the target's own run where they differ, so a single FromGrid walk over a
// pair produces the diff pattern directly.
type GenStatePair struct {
	Base, Target CharGrid
}

func (p GenStatePair) Width() int  { return p.Target.Width() }
func (p GenStatePair) Height() int { return p.Target.Height() }

// GetRun computes the pair's run by taking the per-grid minimum run length
// and, when both grids agree on the character at this position, reporting
// the no-op character instead of the (identical) real one.
func (p GenStatePair) GetRun(col, row int, vis cell.Visibility) (int, byte) {
	baseLen, baseCh := p.Base.GetRun(col, row, vis)
	targetLen, targetCh := p.Target.GetRun(col, row, vis)
	length := baseLen
	if targetLen < length {
		length = targetLen
	}
	if baseCh == targetCh {
		return length, cell.NoOpChar
	}
	return length, targetCh
}

// WriteAt is unused: a GenStatePair is only ever a diff source, never a
// destination. FromGrid never calls it.
func (p GenStatePair) WriteAt(col, row int, ch byte, vis cell.Visibility) error {
	return fmt.Errorf("rle: GenStatePair is a read-only diff source")
}

// Encode renders a Pattern in the standard CGoL RLE body grammar: digit
// run-length prefixes, '$' ending a row, '!' terminating the pattern. It
// does not emit the "x = ..., y = ..." header line; callers that need the
// header (e.g. a debug dump) prepend it themselves.
func Encode(p Pattern) string {
	var b strings.Builder
	for rowIdx, runs := range p.Rows {
		for _, r := range runs {
			if r.Length > 1 {
				b.WriteString(strconv.Itoa(r.Length))
			}
			b.WriteByte(r.Char)
		}
		if rowIdx < len(p.Rows)-1 {
			b.WriteByte('$')
		}
	}
	b.WriteByte('!')
	return b.String()
}

// Decode parses the standard RLE body grammar (no header line) into a
// Pattern of the given dimensions.
func Decode(s string, width, height int) (Pattern, error) {
	rows := make([][]Run, 0, height)
	var runs []Run
	count := 0
	col := 0

	flushRow := func() error {
		if col != width {
			return fmt.Errorf("rle: row %d runs sum to %d, want width %d", len(rows), col, width)
		}
		rows = append(rows, runs)
		runs = nil
		col = 0
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			count = count*10 + int(c-'0')
			continue
		case c == '$':
			n := count
			if n == 0 {
				n = 1
			}
			count = 0
			if err := flushRow(); err != nil {
				return Pattern{}, err
			}
			for k := 1; k < n; k++ {
				rows = append(rows, []Run{{Length: width, Char: 'b'}})
			}
			continue
		case c == '!':
			count = 0
			if err := flushRow(); err != nil {
				return Pattern{}, err
			}
			if len(rows) != height {
				return Pattern{}, fmt.Errorf("rle: pattern has %d rows, want height %d", len(rows), height)
			}
			return Pattern{Width: width, Height: height, Rows: rows}, nil
		default:
			if _, err := cell.FromChar(c); err != nil && c != cell.NoOpChar {
				return Pattern{}, fmt.Errorf("rle: invalid RLE character %q: %w", c, err)
			}
			n := count
			if n == 0 {
				n = 1
			}
			count = 0
			runs = append(runs, Run{Length: n, Char: c})
			col += n
		}
	}
	return Pattern{}, fmt.Errorf("rle: pattern missing terminating '!'")
}
