package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "j1").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" || entry["job_id"] != "j1" || entry["env"] != "production" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestNewLoggerHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}
