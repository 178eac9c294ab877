package app

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates the app logger. Production gets JSON output for log
// shippers; development gets the plain text handler.
func NewLogger(level string, development bool) *slog.Logger {
	lvl := parseLogLevel(level)

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if development {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		opts.AddSource = true
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
