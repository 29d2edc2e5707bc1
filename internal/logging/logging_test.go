package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("login succeeded", "email", "a@x.com")

	output := buf.String()
	if !strings.Contains(output, "login succeeded") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "email=a@x.com") {
		t.Errorf("expected 'email=a@x.com' in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "JSON", &buf)

	logger.Info("session restored", "email", "a@x.com")

	output := buf.String()
	if !strings.Contains(output, `"msg":"session restored"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"email":"a@x.com"`) {
		t.Errorf("expected JSON email field in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_FormatFromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, " "+FormatJSON+"\n", &buf)

	logger.Info("ready")

	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output for padded format value, got: %s", buf.String())
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "text", &buf)

	Component(logger, "session").Debug("restore", "state", "anonymous")

	output := buf.String()
	if !strings.Contains(output, "component=session") {
		t.Errorf("expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "state=anonymous") {
		t.Errorf("expected state in output, got: %s", output)
	}
}

func TestComponent_NilParent(t *testing.T) {
	logger := Component(nil, "api")
	if logger == nil {
		t.Fatal("expected a usable logger")
	}
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
