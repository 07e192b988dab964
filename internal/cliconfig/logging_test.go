package cliconfig

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "chatty")
	l.Debug().Msg("debug")
	l.Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, "debug") {
		t.Errorf("debug message logged at fallback level: %q", out)
	}
	if !strings.Contains(out, "info") {
		t.Errorf("info message missing: %q", out)
	}
}
