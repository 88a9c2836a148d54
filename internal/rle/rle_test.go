package rle

import (
	"testing"

	"github.com/lifenet/server/internal/bitgrid"
	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/region"
)

func TestFromGridToGridRoundTrip(t *testing.T) {
	g, err := bitgrid.New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	g.Set(0, 0)
	g.Set(1, 0)
	g.Set(63, 1)

	p := FromGrid(g, cell.ServerVisibility())

	out, err := bitgrid.New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ToGrid(out, cell.ServerVisibility()); err != nil {
		t.Fatal(err)
	}
	if !g.Equal(out) {
		t.Fatal("round trip through Pattern should reproduce the source grid")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g, err := bitgrid.New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	g.Set(0, 0)
	g.Set(1, 0)
	g.Set(63, 1)

	p := FromGrid(g, cell.ServerVisibility())
	encoded := Encode(p)

	decoded, err := Decode(encoded, 64, 2)
	if err != nil {
		t.Fatalf("Decode(%q): %v", encoded, err)
	}

	out, err := decoded.ToNewBitGrid(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Equal(out) {
		t.Fatal("encode/decode round trip should reproduce the source grid")
	}
}

func TestGenStatePairNoOpWhereIdentical(t *testing.T) {
	base, _ := bitgrid.New(64, 1)
	target, _ := bitgrid.New(64, 1)
	base.Set(0, 0)
	target.Set(0, 0)
	target.Set(5, 0)

	pair := GenStatePair{Base: base, Target: target}
	p := FromGrid(pair, cell.ServerVisibility())

	out, _ := bitgrid.New(64, 1)
	out.CopyFrom(base, region.New(0, 0, 64, 1))
	if err := p.ToGrid(out, cell.ServerVisibility()); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(target) {
		t.Fatal("applying a GenStatePair diff onto a copy of base should reproduce target")
	}
}

func TestDecodeRejectsWrongWidth(t *testing.T) {
	matrix := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "2ob!", false},
		{"too short", "bb!", true},
		{"missing bang", "2ob", true},
		{"invalid char", "2oz!", true},
	}
	for _, tt := range matrix {
		_, err := Decode(tt.input, 3, 1)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Decode(%q) err=%v, wantErr=%v", tt.name, tt.input, err, tt.wantErr)
		}
	}
}
