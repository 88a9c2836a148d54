package resourceguard

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func newTestGuard(t *testing.T, cfg Config) (*Guard, *int64) {
	t.Helper()
	var players int64
	g := New(cfg, zerolog.Nop(), &players)
	return g, &players
}

func TestShouldAcceptPlayerRejectsAtMaxPlayers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 2
	cfg.MemoryLimit = 0
	g, players := newTestGuard(t, cfg)

	atomic.StoreInt64(players, 2)
	accept, reason := g.ShouldAcceptPlayer()
	if accept {
		t.Fatalf("expected rejection at max players, got accept with reason %q", reason)
	}
}

func TestShouldAcceptPlayerAllowsBelowLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 10
	cfg.MemoryLimit = 0
	g, players := newTestGuard(t, cfg)

	atomic.StoreInt64(players, 1)
	accept, reason := g.ShouldAcceptPlayer()
	if !accept {
		t.Fatalf("expected accept, got rejection: %q", reason)
	}
}

func TestShouldPauseNATSHonorsThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CPUPauseThreshold = 50
	g, _ := newTestGuard(t, cfg)

	g.currentCPU.Store(60.0)
	if !g.ShouldPauseNATS() {
		t.Error("expected NATS to pause above threshold")
	}
	g.currentCPU.Store(10.0)
	if g.ShouldPauseNATS() {
		t.Error("expected NATS not to pause below threshold")
	}
}

func TestGoroutineLimiterBlocksAtCapacity(t *testing.T) {
	gl := NewGoroutineLimiter(2)
	if !gl.Acquire() || !gl.Acquire() {
		t.Fatal("expected first two acquires to succeed")
	}
	if gl.Acquire() {
		t.Error("expected third acquire to fail at capacity")
	}
	gl.Release()
	if !gl.Acquire() {
		t.Error("expected acquire to succeed after a release")
	}
}

func TestAllowBroadcastRespectsBurst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBroadcastsPerSec = 1
	g, _ := newTestGuard(t, cfg)

	allowed := 0
	for i := 0; i < 4; i++ {
		if g.AllowBroadcast() {
			allowed++
		}
	}
	if allowed == 0 {
		t.Error("expected at least the burst allowance to succeed")
	}
	if allowed == 4 {
		t.Error("expected the rate limiter to deny at least one of four rapid broadcasts")
	}
}
