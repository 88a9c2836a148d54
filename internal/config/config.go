// Package config loads server configuration from environment variables (and
// an optional .env file), the same layered precedence the rest of the
// corpus uses: process environment, then .env, then struct defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all runtime configuration for the game server.
type Config struct {
	// Network
	ListenHost string `env:"LIFENET_HOST" envDefault:"0.0.0.0"`
	ListenPort int    `env:"LIFENET_PORT" envDefault:"2016"`
	NATSUrl    string `env:"NATS_URL" envDefault:""`

	// Universe
	UniverseWidth  int `env:"LIFENET_UNIVERSE_WIDTH" envDefault:"256"`
	UniverseHeight int `env:"LIFENET_UNIVERSE_HEIGHT" envDefault:"128"`
	HistoryDepth   int `env:"LIFENET_HISTORY_DEPTH" envDefault:"16"`
	FogRadius      int `env:"LIFENET_FOG_RADIUS" envDefault:"6"`

	// Room/session limits
	RoomMaxPlayers     int `env:"LIFENET_ROOM_MAX_PLAYERS" envDefault:"8"`
	MaxRoomNameLen     int `env:"LIFENET_MAX_ROOM_NAME" envDefault:"32"`
	MaxChatMessages    int `env:"LIFENET_MAX_CHAT_MESSAGES" envDefault:"64"`
	MaxChatMessageLen  int `env:"LIFENET_MAX_CHAT_MESSAGE_LEN" envDefault:"256"`
	MaxAgeChatMessages time.Duration `env:"LIFENET_MAX_AGE_CHAT_MESSAGES" envDefault:"5m"`
	PlayerTimeout      time.Duration `env:"LIFENET_PLAYER_TIMEOUT" envDefault:"30s"`

	// Periodic maintenance intervals
	TickInterval      time.Duration `env:"LIFENET_TICK_INTERVAL" envDefault:"10ms"`
	NetworkInterval   time.Duration `env:"LIFENET_NETWORK_INTERVAL" envDefault:"100ms"`
	HeartbeatInterval time.Duration `env:"LIFENET_HEARTBEAT_INTERVAL" envDefault:"1s"`

	// Resource limits (mirrors resourceguard.Config, loaded from env so an
	// operator can tune it without a code change)
	MaxPlayers            int     `env:"LIFENET_MAX_PLAYERS" envDefault:"0"` // 0 = auto-calculate from cgroup memory
	CPURejectThreshold    float64 `env:"LIFENET_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	CPUPauseThreshold     float64 `env:"LIFENET_CPU_PAUSE_THRESHOLD" envDefault:"95.0"`
	MaxNATSMessagesPerSec int     `env:"LIFENET_MAX_NATS_RATE" envDefault:"500"`
	MaxBroadcastsPerSec   int     `env:"LIFENET_MAX_BROADCAST_RATE" envDefault:"1000"`
	MaxGoroutines         int     `env:"LIFENET_MAX_GOROUTINES" envDefault:"10000"`

	// Monitoring
	MetricsAddr     string        `env:"LIFENET_METRICS_ADDR" envDefault:":9096"`
	MetricsInterval time.Duration `env:"LIFENET_METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ServerName    string `env:"LIFENET_SERVER_NAME" envDefault:"lifenet"`
	ServerVersion string `env:"LIFENET_SERVER_VERSION" envDefault:"1.0.0"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and the process
// environment. logger may be nil during the earliest bootstrap, before a
// logger has been constructed.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for internally inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("LIFENET_PORT must be 1-65535, got %d", c.ListenPort)
	}
	if c.UniverseWidth%64 != 0 || c.UniverseWidth < 64 {
		return fmt.Errorf("LIFENET_UNIVERSE_WIDTH must be a positive multiple of 64, got %d", c.UniverseWidth)
	}
	if c.UniverseHeight < 1 {
		return fmt.Errorf("LIFENET_UNIVERSE_HEIGHT must be > 0, got %d", c.UniverseHeight)
	}
	if c.HistoryDepth < 1 {
		return fmt.Errorf("LIFENET_HISTORY_DEPTH must be > 0, got %d", c.HistoryDepth)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("LIFENET_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.CPUPauseThreshold < 0 || c.CPUPauseThreshold > 100 {
		return fmt.Errorf("LIFENET_CPU_PAUSE_THRESHOLD must be 0-100, got %.1f", c.CPUPauseThreshold)
	}
	if c.CPUPauseThreshold < c.CPURejectThreshold {
		return fmt.Errorf("LIFENET_CPU_PAUSE_THRESHOLD (%.1f) must be >= LIFENET_CPU_REJECT_THRESHOLD (%.1f)",
			c.CPUPauseThreshold, c.CPURejectThreshold)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// LogConfig emits the loaded configuration as one structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("listen_host", c.ListenHost).
		Int("listen_port", c.ListenPort).
		Int("universe_width", c.UniverseWidth).
		Int("universe_height", c.UniverseHeight).
		Int("history_depth", c.HistoryDepth).
		Int("fog_radius", c.FogRadius).
		Int("max_players", c.MaxPlayers).
		Dur("tick_interval", c.TickInterval).
		Dur("network_interval", c.NetworkInterval).
		Dur("heartbeat_interval", c.HeartbeatInterval).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("cpu_pause_threshold", c.CPUPauseThreshold).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("server configuration loaded")
}
