package wtest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a *slog.Logger associated with t.
// Log lines are only printed for failed tests,
// or when running go test -v.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
