// Package logging builds the slog loggers shared by the CLI, the web UI and
// the dashboard. Records go to stderr so command output on stdout stays
// parseable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by NewLogger. Anything else falls back to text.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger returns a stderr logger at level in the given format.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter is NewLogger with an explicit destination. The CLI
// passes the command's stderr so tests can capture it.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	return slog.New(handlerFor(format, w, &slog.HandlerOptions{Level: level}))
}

func handlerFor(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Component tags parent with component=name. Containers built without a
// logger pass nil and get a discarding one.
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		parent = Discard()
	}
	return parent.With("component", name)
}

// ParseLevel maps a config or flag value to a level. Unknown and empty
// values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
