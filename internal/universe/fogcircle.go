package universe

import "github.com/lifenet/server/internal/bitgrid"

// newFogCircle builds the radius-r stencil: a (2r-1)-row bitmap where bit
// (y,x) is 0 iff (x-(r-1))^2+(y-(r-1))^2 < r^2, else 1. A 0 bit means
// "clear fog here"; a 1 bit means "leave fog alone". The same inequality
// applies uniformly across the whole word width, so columns beyond the
// circle's own (2r-1) span come out 1 for free — no separate bounds check
// is needed for the padding bits a 64-bit word forces on us.
func newFogCircle(r int) (*bitgrid.BitGrid, error) {
	diameter := 2*r - 1
	wordsNeeded := (diameter + 63) / 64
	width := wordsNeeded * 64

	g, err := bitgrid.New(width, diameter)
	if err != nil {
		return nil, err
	}
	center := r - 1
	for y := 0; y < diameter; y++ {
		dy := y - center
		for x := 0; x < width; x++ {
			dx := x - center
			if dx*dx+dy*dy >= r*r {
				g.Set(x, y)
			}
		}
	}
	return g, nil
}
