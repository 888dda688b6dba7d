package testutil

import (
	"log/slog"
	"testing"
)

// NopLogger returns a logger that drops everything
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestLogger routes log records to t.Log at debug level, so they only
// show up for failing tests or under -v.
func TestLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(t.Output(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
