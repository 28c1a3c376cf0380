package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.WarnLevel,
		"debug":    zerolog.DebugLevel,
		"Info":     zerolog.InfoLevel,
		" ERROR ":  zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}

	for input, want := range cases {
		t.Run("level_"+input, func(t *testing.T) {
			got, err := ParseLevel(input)
			if err != nil {
				t.Fatalf("ParseLevel(%q) returned error: %v", input, err)
			}
			if got != want {
				t.Errorf("ParseLevel(%q) = %s, want %s", input, got, want)
			}
		})
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "debug", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	log.Debug().Str("transport", "ws").Msg("dialing")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "dialing" || entry["transport"] != "ws" {
		t.Errorf("Unexpected log entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "error", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
}
