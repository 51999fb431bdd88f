// Package logging builds the emulator's slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a structured logger writing to stderr. Format is
// "json" or "text"; verbose forces debug level regardless of level.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	lv := parseLevel(level)
	if verbose {
		lv = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stderr, format, lv))
}

// NewLoggerWithWriter is NewLogger with an explicit destination, for tests.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	return slog.New(newHandler(w, format, parseLevel(level)))
}

// SetDefault installs logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations only at debug: noise at info and above.
		AddSource: level == slog.LevelDebug,
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
