package resourceguard

import (
	"os"
	"strconv"
	"strings"
)

// memoryLimit returns the container memory limit in bytes, checking cgroup
// v2 first and falling back to v1. Returns 0 if no limit is detected (bare
// metal, or a cgroup-less environment).
func memoryLimit() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		if limitStr != "max" {
			return strconv.ParseInt(limitStr, 10, 64)
		}
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		return strconv.ParseInt(limitStr, 10, 64)
	}

	return 0, nil
}

// calculateMaxPlayers determines a safe cap on concurrently connected
// players from the container's memory limit.
//
// Per-player memory breakdown:
//   - Player struct + per-room ownership bitplanes: ~2KB
//   - outbound Update backlog (chat/game-update ring): ~64KB
//   - generation history the player can still be diffed against: shared
//     per-universe, not counted per player
//
// Total: ~66KB/player, rounded up to 128KB to leave headroom for bursty
// RLE diffs on large universes.
func calculateMaxPlayers(memoryLimitBytes int64) int {
	if memoryLimitBytes == 0 {
		return 2000
	}

	const runtimeOverheadBytes = 128 * 1024 * 1024
	const bytesPerPlayer = 128 * 1024

	availableBytes := memoryLimitBytes - runtimeOverheadBytes
	if availableBytes < 0 {
		availableBytes = memoryLimitBytes / 2
	}

	maxPlayers := int(availableBytes / bytesPerPlayer)
	if maxPlayers < 16 {
		maxPlayers = 16
	}
	if maxPlayers > 20000 {
		maxPlayers = 20000
	}
	return maxPlayers
}
