package services

import (
	"context"
	"time"
)

// Clock returns the current time; tests substitute a fixed instant.
type Clock func() time.Time

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func ensureClock(clock Clock) Clock {
	if clock != nil {
		return clock
	}
	return time.Now
}
