package ports

import (
	"context"
	"time"
)

// Clock provides the current time and blocking waits (for testing).
type Clock interface {
	Now() time.Time
	// SleepContext blocks for d or until ctx is cancelled. Returns ctx.Err() if cancelled.
	SleepContext(ctx context.Context, d time.Duration) error
}

// Logger provides structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Pacer spaces out browser actions.
type Pacer interface {
	// Wait blocks until an action of the given kind may proceed.
	Wait(ctx context.Context, kind string) error
}
