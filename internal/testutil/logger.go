package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Context returns a context that is cancelled when the test ends or after a few seconds,
// so a stuck command cannot hang the test binary.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
