package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a JSON slog logger configured at the provided level, falling
// back to info when the level string is invalid.
func New(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
