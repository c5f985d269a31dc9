package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "json", &buf)

	Debug("hidden %d", 1)
	Info("fetched %d observations for %s", 94, "CPIAUCSL")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if entry["level"] != "info" {
		t.Errorf("Unexpected level: %v", entry["level"])
	}
	if entry["message"] != "fetched 94 observations for CPIAUCSL" {
		t.Errorf("Unexpected message: %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected a timestamp")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", "json", &buf)

	Info("dropped")
	Warn("kept warn")
	Error("kept error")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "kept error") {
		t.Errorf("Expected warn and error lines, got %q", out)
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", "text", &buf)

	Debug("rolling window %d", 90)

	out := buf.String()
	if !strings.Contains(out, "rolling window 90") {
		t.Errorf("Expected message in console output, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Error("Text format should not emit JSON")
	}
}
