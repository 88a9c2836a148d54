package bitgrid

import (
	"testing"

	"github.com/lifenet/server/internal/region"
)

func TestNewValidatesDimensions(t *testing.T) {
	matrix := []struct {
		width, height int
		wantErr       bool
	}{
		{64, 1, false},
		{256, 128, false},
		{0, 1, true},
		{63, 1, true},
		{65, 1, true},
		{64, 0, true},
	}

	for _, tt := range matrix {
		_, err := New(tt.width, tt.height)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%d,%d): err=%v, wantErr=%v", tt.width, tt.height, err, tt.wantErr)
		}
	}
}

func TestSetGetClearToggle(t *testing.T) {
	g, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}

	if g.Get(0, 0) {
		t.Fatal("expected cell (0,0) to start clear")
	}
	g.Set(0, 0)
	if !g.Get(0, 0) {
		t.Fatal("expected cell (0,0) to be set")
	}
	g.Clear(0, 0)
	if g.Get(0, 0) {
		t.Fatal("expected cell (0,0) to be clear again")
	}
	if !g.Toggle(63, 1) {
		t.Fatal("expected Toggle to report the new (set) value")
	}
	if !g.Get(63, 1) {
		t.Fatal("expected cell (63,1) to be set after toggle")
	}
}

// Bit 63 of word 0 is the leftmost column: setting column 0 must only ever
// touch the top bit of the row's first word.
func TestLeftmostColumnIsTopBit(t *testing.T) {
	g, err := New(128, 1)
	if err != nil {
		t.Fatal(err)
	}
	g.Set(0, 0)
	if g.Word(0, 0) != 1<<63 {
		t.Fatalf("expected word 0 == 1<<63, got %#x", g.Word(0, 0))
	}
	if g.Word(0, 1) != 0 {
		t.Fatalf("expected word 1 == 0, got %#x", g.Word(0, 1))
	}
}

func TestApplyRegionClamped(t *testing.T) {
	g, err := New(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	g.ApplyRegion(region.New(-2, -2, 6, 6), OpSet)

	for row := 0; row < 4; row++ {
		for col := 0; col < 64; col++ {
			want := col < 4 && row < 4
			if g.Get(col, row) != want {
				t.Fatalf("cell (%d,%d): got %v want %v", col, row, g.Get(col, row), want)
			}
		}
	}
}

func TestOrFromAndCopyFrom(t *testing.T) {
	src, _ := New(64, 2)
	dst, _ := New(64, 2)
	src.Set(5, 0)
	src.Set(6, 1)

	dst.Set(10, 0)
	dst.OrFrom(src, region.New(0, 0, 64, 2))
	if !dst.Get(5, 0) || !dst.Get(6, 1) || !dst.Get(10, 0) {
		t.Fatal("OrFrom should preserve dst bits and add src bits")
	}

	dst2, _ := New(64, 2)
	dst2.Set(10, 0)
	dst2.CopyFrom(src, region.New(0, 0, 64, 2))
	if dst2.Get(10, 0) {
		t.Fatal("CopyFrom should overwrite, not OR")
	}
	if !dst2.Get(5, 0) || !dst2.Get(6, 1) {
		t.Fatal("CopyFrom should copy src bits")
	}
}

func TestForEachSet(t *testing.T) {
	g, _ := New(64, 2)
	g.Set(1, 0)
	g.Set(2, 1)

	var got [][2]int
	g.ForEachSet(region.New(0, 0, 64, 2), func(col, row int) {
		got = append(got, [2]int{col, row})
	})
	if len(got) != 2 || got[0] != [2]int{1, 0} || got[1] != [2]int{2, 1} {
		t.Fatalf("unexpected ForEachSet order/content: %v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g, _ := New(64, 1)
	g.Set(0, 0)
	c := g.Clone()
	c.Set(1, 0)
	if g.Get(1, 0) {
		t.Fatal("mutating clone should not affect original")
	}
	if !c.Get(0, 0) {
		t.Fatal("clone should carry over original bits")
	}
}
