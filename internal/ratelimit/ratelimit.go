// Package ratelimit throttles inbound requests per player, distinct from the
// server-wide resource guard: one noisy player should lose packets, not slow
// down the whole room.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits bounds the sustained rate and burst size of a single player's
// inbound requests.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultLimits matches the per-tick request volume a single connected
// player is expected to generate (one action per tick plus the occasional
// burst of chat/toggle input).
func DefaultLimits() Limits {
	return Limits{RequestsPerSecond: 30, Burst: 60}
}

// PerPlayer tracks one token bucket per player ID, created lazily on first
// use and removed only by Forget.
type PerPlayer struct {
	mu      sync.Mutex
	limits  Limits
	buckets map[uint64]*rate.Limiter
}

// NewPerPlayer constructs a PerPlayer limiter using the given limits for
// every player.
func NewPerPlayer(limits Limits) *PerPlayer {
	return &PerPlayer{
		limits:  limits,
		buckets: make(map[uint64]*rate.Limiter),
	}
}

func (p *PerPlayer) bucketFor(playerID uint64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[playerID]
	if !ok {
		b = rate.NewLimiter(rate.Limit(p.limits.RequestsPerSecond), p.limits.Burst)
		p.buckets[playerID] = b
	}
	return b
}

// Allow reports whether playerID may send a request right now, consuming a
// token if so.
func (p *PerPlayer) Allow(playerID uint64) bool {
	return p.bucketFor(playerID).Allow()
}

// Forget drops a player's bucket, e.g. once the player has disconnected.
func (p *PerPlayer) Forget(playerID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buckets, playerID)
}

// Reserve delays the caller until playerID's next token is available,
// capped by maxWait, throttling the caller rather than dropping the request.
// Returns false if the wait would exceed maxWait.
func (p *PerPlayer) Reserve(playerID uint64, maxWait time.Duration) bool {
	b := p.bucketFor(playerID)
	r := b.Reserve()
	if !r.OK() {
		return false
	}
	delay := r.Delay()
	if delay > maxWait {
		r.Cancel()
		return false
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return true
}
