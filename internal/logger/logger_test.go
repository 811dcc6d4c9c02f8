package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")

	l.Info("テストメッセージ", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output should be valid JSON: %v", err)
	}
	if entry["msg"] != "テストメッセージ" {
		t.Errorf("msg = %v, want テストメッセージ", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestSetup_DebugLevelSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")

	l.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("debug log should be suppressed at info level, got %q", buf.String())
	}
}

func TestSetup_DebugLevelEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "debug")

	l.Debug("debug message")

	if buf.Len() == 0 {
		t.Error("debug log should appear at debug level")
	}
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, c := range cases {
		if got := parseLevel(c.input); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}
