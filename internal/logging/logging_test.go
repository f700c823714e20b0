package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: Warn, Format: FormatJSON, Output: &buf})

	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warnf("shown %d", 3)
	log.With("entry", "a").Errorf("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d:\n%s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["message"] != "shown 4" || entry["entry"] != "a" || entry["level"] != "error" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNoOpLogger(t *testing.T) {
	NewNoOpLogger().Errorf("nothing %s", "happens")
}

func TestLevelString(t *testing.T) {
	if exp, act := "warn", Warn.String(); exp != act {
		t.Fatalf("expected %q, got %q", exp, act)
	}
}
