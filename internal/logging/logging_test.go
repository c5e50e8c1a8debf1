package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"":      zerolog.InfoLevel,
		"INFO":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for unsupported level")
	}
}

func TestSetup_AppliesLevel(t *testing.T) {
	log, err := Setup("json", "warn")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level: got %v, want warn", log.GetLevel())
	}
}
