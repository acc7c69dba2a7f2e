// Package logging builds the structured JSON logger every service and
// worker shares.
package logging

import (
	"log/slog"
	"os"
)

// New builds a JSON slog.Logger at the given level string ("debug", "info",
// "warn", "error"; unrecognized values fall back to info).
func New(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
