package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewSetsGlobalLevel(t *testing.T) {
	New(Config{Level: LevelError, Format: FormatJSON})
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("GlobalLevel = %v, want ErrorLevel", zerolog.GlobalLevel())
	}

	New(Config{Level: LevelDebug, Format: FormatJSON})
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("GlobalLevel = %v, want DebugLevel", zerolog.GlobalLevel())
	}
}

func TestNewDefaultsToInfoForUnknownLevel(t *testing.T) {
	New(Config{Level: Level("bogus"), Format: FormatJSON})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel = %v, want InfoLevel", zerolog.GlobalLevel())
	}
}
