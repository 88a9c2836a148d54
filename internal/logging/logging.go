// Package logging configures the structured zerolog logger shared by every
// other package: JSON for production scraping, a console writer for local
// development, with caller and timestamp fields always on.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON   Format = "json"   // machine-readable, for log aggregation
	FormatPretty Format = "pretty" // human-readable, for local development
)

// Config controls logger construction.
type Config struct {
	Level  Level
	Format Format
}

// New builds a zerolog.Logger tagged with the "lifenet-server" service
// field, an RFC3339 timestamp, and caller info.
func New(config Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	var level zerolog.Level
	switch config.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelInfo:
		level = zerolog.InfoLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "lifenet-server").
		Logger()
}

// InitGlobal installs a logger built from config as zerolog's package-level
// default, for the handful of call sites that log before a request-scoped
// logger is available.
func InitGlobal(config Config) {
	log.Logger = New(config)
}

// Error logs err with a message and arbitrary context fields.
func Error(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Panic logs a recovered panic with its stack trace. Callers use this from
// a deferred recover() to record a goroutine crash before deciding whether
// to let the process continue.
func Panic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
