package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("customer_id", "c-1")
	logger.Debug("hidden")
	logger.Info("processed", "lead_score", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "processed" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["customer_id"] != "c-1" {
		t.Fatalf("expected derived attribute, got %v", entry["customer_id"])
	}
	if entry["lead_score"] != float64(42) {
		t.Fatalf("unexpected lead_score: %v", entry["lead_score"])
	}
}
