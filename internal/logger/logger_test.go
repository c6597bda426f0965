package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}

	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_WithAndLevel(t *testing.T) {
	var buf bytes.Buffer

	log := NewWithWriter(&buf, "info")
	child := log.With("run_id", "abc")

	child.Debug("hidden")
	child.Info("stage done", "rows", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}

	if !strings.Contains(out, "run_id=abc") || !strings.Contains(out, "rows=3") {
		t.Errorf("missing attributes in %q", out)
	}

	log.SetLevel("debug")
	child.Debug("now visible")

	if !strings.Contains(buf.String(), "now visible") {
		t.Error("SetLevel did not reach child logger")
	}
}
