package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)

	log.Info("evaluation complete", "backend", "mock", "reward", 1.25)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "evaluation complete" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["backend"] != "mock" {
		t.Fatalf("unexpected backend attr: %v", record["backend"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("error", &buf)

	log.Info("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("info message should be filtered at error level, got %q", buf.String())
	}

	log.Error("should appear")
	if buf.Len() == 0 {
		t.Fatalf("error message should not be filtered")
	}
}

func TestNewTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewText("debug", &buf)

	log.Debug("step", "episode", 3)
	if !strings.Contains(buf.String(), "episode=3") {
		t.Fatalf("expected text attr in output, got %q", buf.String())
	}
}
