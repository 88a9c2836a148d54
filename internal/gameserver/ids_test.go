package gameserver

import (
	"testing"
	"time"
)

func TestNewCookieProducesDistinctValues(t *testing.T) {
	a, err := NewCookie()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCookie()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected two freshly generated cookies to differ")
	}
}

func TestIDGeneratorUpperBitsTrackElapsedSeconds(t *testing.T) {
	start := time.Unix(1000, 0)
	g := newIDGenerator(start)

	id, err := g.next(start.Add(5 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if got := uint32(id >> 32); got != 5 {
		t.Errorf("upper 32 bits = %d, want 5", got)
	}
}

func TestIDGeneratorProducesDistinctIDsAtSameInstant(t *testing.T) {
	start := time.Unix(0, 0)
	g := newIDGenerator(start)
	a, err := g.next(start)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.next(start)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected two IDs generated at the same instant to differ in their random half")
	}
}
