package orderbook

import (
	"fmt"
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}

// invariantViolation logs the broken invariant and panics.
// It is only reached through a bug in this package.
func invariantViolation(msg string, args ...any) {
	logger.Error("invariant violation: "+msg, args...)
	panic(fmt.Errorf("%w: %s", ErrInvariant, msg))
}
