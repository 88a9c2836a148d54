// Package resourceguard enforces static, configured resource limits on the
// game server: a hard cap on connected players, emergency CPU/memory
// brakes, and rate limits on NATS consumption and per-tick broadcasts.
//
// It deliberately does not measure load and auto-tune limits — the server
// operator sets them, this package enforces them and logs every rejection.
package resourceguard

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/time/rate"
)

// Config is the static resource policy a Guard enforces.
type Config struct {
	MaxPlayers            int
	CPULimit              float64 // informational ceiling, logged alongside state
	CPURejectThreshold    float64 // percent CPU above which new players are rejected
	CPUPauseThreshold     float64 // percent CPU above which NATS consumption pauses
	MemoryLimit           int64   // bytes
	MaxNATSMessagesPerSec int
	MaxBroadcastsPerSec   int
	MaxGoroutines         int
}

// DefaultConfig derives MaxPlayers and MemoryLimit from the container's
// cgroup memory limit when one is detected, and otherwise uses
// conservative fixed defaults.
func DefaultConfig() Config {
	limit, _ := memoryLimit()
	return Config{
		MaxPlayers:            calculateMaxPlayers(limit),
		CPULimit:              80.0,
		CPURejectThreshold:    90.0,
		CPUPauseThreshold:     95.0,
		MemoryLimit:           limit,
		MaxNATSMessagesPerSec: 500,
		MaxBroadcastsPerSec:   1000,
		MaxGoroutines:         10000,
	}
}

// GoroutineLimiter bounds concurrent goroutines with a buffered-channel
// semaphore.
type GoroutineLimiter struct {
	sem chan struct{}
	max int
}

func NewGoroutineLimiter(max int) *GoroutineLimiter {
	return &GoroutineLimiter{sem: make(chan struct{}, max), max: max}
}

func (gl *GoroutineLimiter) Acquire() bool {
	select {
	case gl.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (gl *GoroutineLimiter) Release() { <-gl.sem }
func (gl *GoroutineLimiter) Current() int { return len(gl.sem) }
func (gl *GoroutineLimiter) Max() int      { return gl.max }

// Guard is the server-wide resource enforcement point.
type Guard struct {
	config Config
	logger zerolog.Logger

	natsLimiter      *rate.Limiter
	broadcastLimiter *rate.Limiter
	goroutineLimiter *GoroutineLimiter

	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64

	currentPlayers *int64 // atomic counter owned by the caller
}

// New constructs a Guard. currentPlayers must point at a counter the
// caller updates atomically as players join and leave.
func New(config Config, logger zerolog.Logger, currentPlayers *int64) *Guard {
	g := &Guard{
		config: config,
		logger: logger,
		natsLimiter: rate.NewLimiter(
			rate.Limit(config.MaxNATSMessagesPerSec),
			config.MaxNATSMessagesPerSec*2,
		),
		broadcastLimiter: rate.NewLimiter(
			rate.Limit(config.MaxBroadcastsPerSec),
			config.MaxBroadcastsPerSec*2,
		),
		goroutineLimiter: NewGoroutineLimiter(config.MaxGoroutines),
		currentPlayers:   currentPlayers,
	}
	g.currentCPU.Store(0.0)
	g.currentMemory.Store(int64(0))

	logger.Info().
		Float64("cpu_limit", config.CPULimit).
		Int64("memory_limit", config.MemoryLimit).
		Int("max_players", config.MaxPlayers).
		Int("max_nats_rate", config.MaxNATSMessagesPerSec).
		Int("max_broadcast_rate", config.MaxBroadcastsPerSec).
		Int("max_goroutines", config.MaxGoroutines).
		Msg("resource guard initialized")

	return g
}

// ShouldAcceptPlayer checks, in order, the hard player cap, the CPU and
// memory emergency brakes, and the goroutine limit.
func (g *Guard) ShouldAcceptPlayer() (accept bool, reason string) {
	currentPlayers := atomic.LoadInt64(g.currentPlayers)
	currentCPU := g.currentCPU.Load().(float64)
	currentMemory := g.currentMemory.Load().(int64)
	currentGoros := runtime.NumGoroutine()

	if currentPlayers >= int64(g.config.MaxPlayers) {
		g.logger.Warn().
			Int64("current_players", currentPlayers).
			Int("max_players", g.config.MaxPlayers).
			Msg("player rejected: at max players")
		return false, fmt.Sprintf("at max players (%d)", g.config.MaxPlayers)
	}

	if currentCPU > g.config.CPURejectThreshold {
		g.logger.Warn().
			Float64("current_cpu", currentCPU).
			Float64("threshold", g.config.CPURejectThreshold).
			Msg("player rejected: CPU overload")
		return false, fmt.Sprintf("CPU %.1f%% > %.1f%%", currentCPU, g.config.CPURejectThreshold)
	}

	if g.config.MemoryLimit > 0 && currentMemory > g.config.MemoryLimit {
		g.logger.Warn().
			Int64("current_memory_mb", currentMemory/(1024*1024)).
			Int64("limit_mb", g.config.MemoryLimit/(1024*1024)).
			Msg("player rejected: memory limit exceeded")
		return false, "memory limit exceeded"
	}

	if currentGoros > g.config.MaxGoroutines {
		g.logger.Warn().
			Int("current_goroutines", currentGoros).
			Int("max_goroutines", g.config.MaxGoroutines).
			Msg("player rejected: goroutine limit exceeded")
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", currentGoros, g.config.MaxGoroutines)
	}

	return true, "OK"
}

// ShouldPauseNATS reports whether NATS consumption should pause to shed
// load while CPU is critically high.
func (g *Guard) ShouldPauseNATS() bool {
	return g.currentCPU.Load().(float64) > g.config.CPUPauseThreshold
}

// AllowNATSMessage rate limits NATS message processing. If the caller
// should wait rather than drop, waitDuration reports how long.
func (g *Guard) AllowNATSMessage(ctx context.Context) (allow bool, waitDuration time.Duration) {
	reservation := g.natsLimiter.Reserve()
	if !reservation.OK() {
		return false, 0
	}
	delay := reservation.Delay()
	if delay == 0 {
		return true, 0
	}
	reservation.Cancel()
	return false, delay
}

// AllowBroadcast rate limits per-tick broadcast fan-out.
func (g *Guard) AllowBroadcast() bool {
	return g.broadcastLimiter.Allow()
}

// AcquireGoroutine reserves a goroutine slot; the caller must Release it
// when the goroutine completes.
func (g *Guard) AcquireGoroutine() bool {
	acquired := g.goroutineLimiter.Acquire()
	if !acquired {
		g.logger.Warn().
			Int("current", g.goroutineLimiter.Current()).
			Int("max", g.goroutineLimiter.Max()).
			Msg("goroutine limit reached")
	}
	return acquired
}

func (g *Guard) ReleaseGoroutine() { g.goroutineLimiter.Release() }

// UpdateResources refreshes the CPU/memory snapshot used by the checks
// above. Call periodically from a ticker, not from the hot path.
func (g *Guard) UpdateResources() {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to sample CPU usage")
	} else if len(cpuPercent) > 0 {
		g.currentCPU.Store(cpuPercent[0])
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.currentMemory.Store(int64(mem.Alloc))

	g.logger.Debug().
		Float64("cpu_percent", g.currentCPU.Load().(float64)).
		Int64("memory_mb", g.currentMemory.Load().(int64)/(1024*1024)).
		Int64("players", atomic.LoadInt64(g.currentPlayers)).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("resource state updated")
}

// StartMonitoring runs UpdateResources on interval until ctx is canceled.
func (g *Guard) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.UpdateResources()
			case <-ctx.Done():
				return
			}
		}
	}()
}
