package universe

import (
	"fmt"

	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/region"
)

const (
	defaultWidth     = 256
	defaultHeight    = 128
	defaultHistory   = 16
	defaultFogRadius = 6
)

// BigBang is a builder for Universe: set the fields that differ from the
// defaults, register each player's writable region, then call Birth.
type BigBang struct {
	width, height int
	history       int
	fogRadius     int
	serverMode    bool
	writable      []region.Region
}

// NewBigBang returns a builder seeded with the engine's defaults.
func NewBigBang() *BigBang {
	return &BigBang{
		width:      defaultWidth,
		height:     defaultHeight,
		history:    defaultHistory,
		fogRadius:  defaultFogRadius,
		serverMode: true,
	}
}

func (b *BigBang) Width(w int) *BigBang      { b.width = w; return b }
func (b *BigBang) Height(h int) *BigBang     { b.height = h; return b }
func (b *BigBang) History(n int) *BigBang    { b.history = n; return b }
func (b *BigBang) FogRadius(r int) *BigBang  { b.fogRadius = r; return b }
func (b *BigBang) ServerMode(v bool) *BigBang { b.serverMode = v; return b }

// AddPlayer registers a new player's writable region. Player ids are
// assigned in call order, starting at 0.
func (b *BigBang) AddPlayer(writable region.Region) *BigBang {
	b.writable = append(b.writable, writable)
	return b
}

// Birth validates the builder's configuration and constructs a Universe at
// generation 1 (server mode) or with no generation yet (client mode).
func (b *BigBang) Birth() (*Universe, error) {
	if b.width <= 0 || b.width%64 != 0 {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("width must be a positive multiple of 64, got %d", b.width)}
	}
	if b.height <= 0 {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("height must be positive, got %d", b.height)}
	}
	if b.fogRadius <= 0 {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("fog radius must be positive, got %d", b.fogRadius)}
	}
	if b.history <= 0 {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("history depth must be positive, got %d", b.history)}
	}

	numPlayers := len(b.writable)
	history := make([]*GenState, b.history)
	for i := range history {
		gs, err := newGenState(b.width, b.height, numPlayers)
		if err != nil {
			return nil, err
		}
		history[i] = gs
	}

	fogCircle, err := newFogCircle(b.fogRadius)
	if err != nil {
		return nil, err
	}

	first := history[0]
	var generation OptionalGen
	if b.serverMode {
		generation = someGen(1)
		first.gen = generation
		first.known.FillAll()
	}

	for p := 0; p < numPlayers; p++ {
		first.players[p].Fog.FillAll()
		first.players[p].Fog.ApplyRegion(b.writable[p], bitgrid.OpClear)
	}

	return &Universe{
		width:      b.width,
		height:     b.height,
		fogRadius:  b.fogRadius,
		serverMode: b.serverMode,
		history:    history,
		stateIndex: 0,
		generation: generation,
		writable:   append([]region.Region(nil), b.writable...),
		fogCircle:  fogCircle,
	}, nil
}
