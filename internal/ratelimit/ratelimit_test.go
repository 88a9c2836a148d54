package ratelimit

import "testing"

func TestAllowExhaustsBurstThenBlocks(t *testing.T) {
	p := NewPerPlayer(Limits{RequestsPerSecond: 1, Burst: 3})
	for i := 0; i < 3; i++ {
		if !p.Allow(42) {
			t.Fatalf("request %d: expected allow within burst", i)
		}
	}
	if p.Allow(42) {
		t.Error("expected fourth request to be denied once burst is exhausted")
	}
}

func TestBucketsAreIndependentPerPlayer(t *testing.T) {
	p := NewPerPlayer(Limits{RequestsPerSecond: 1, Burst: 1})
	if !p.Allow(1) {
		t.Fatal("player 1 first request should be allowed")
	}
	if p.Allow(1) {
		t.Error("player 1 second request should be denied")
	}
	if !p.Allow(2) {
		t.Error("player 2 should have its own independent bucket")
	}
}

func TestForgetDropsBucketState(t *testing.T) {
	p := NewPerPlayer(Limits{RequestsPerSecond: 1, Burst: 1})
	p.Allow(7)
	if p.Allow(7) {
		t.Fatal("expected bucket to be exhausted before Forget")
	}
	p.Forget(7)
	if !p.Allow(7) {
		t.Error("expected a fresh bucket after Forget")
	}
}
