package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: WarnLevel, Format: HumanFormat, Output: &buf})

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error messages should be logged, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})

	logger.Info("cache hit", map[string]interface{}{"key": "commit_history|repo1"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry["level"] != "info" {
		t.Errorf("expected level info, got %v", entry["level"])
	}
	if entry["message"] != "cache hit" {
		t.Errorf("expected message 'cache hit', got %v", entry["message"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok || fields["key"] != "commit_history|repo1" {
		t.Errorf("expected key field, got %v", entry["fields"])
	}
}

func TestHumanFormatFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: InfoLevel, Format: HumanFormat, Output: &buf})

	logger.Warn("flush failed", map[string]interface{}{"path": "/tmp/cache.gz"})

	out := buf.String()
	if !strings.Contains(out, "[warn]") {
		t.Errorf("expected level marker in output, got: %s", out)
	}
	if !strings.Contains(out, "path=/tmp/cache.gz") {
		t.Errorf("expected field rendering in output, got: %s", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Debug("noop", nil)
	logger.Info("noop", nil)
	logger.Warn("noop", nil)
	logger.Error("noop", map[string]interface{}{"k": "v"})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
