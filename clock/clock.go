package clock

import (
	"context"
	"fmt"
	"time"
)

// Clock provides wall-clock and monotonic time plus suspend primitives.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Monotonic returns a strictly non-decreasing duration counter immune
	// to wall-clock adjustment. Only differences between two readings are
	// meaningful.
	Monotonic() time.Duration

	// Sleep suspends the calling goroutine for at least d, or until ctx is
	// done, whichever comes first. Returns nil immediately for d <= 0.
	Sleep(ctx context.Context, d time.Duration) error

	// After returns a channel that receives the current instant once d has
	// elapsed. Use it where select-based waiting is needed.
	After(d time.Duration) <-chan time.Time
}

// realClock implements Clock with the runtime clock.
type realClock struct {
	start time.Time
}

// NewReal creates the production Clock.
//
//nolint:ireturn
func NewReal() Clock {
	return &realClock{start: time.Now()}
}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func (c *realClock) Monotonic() time.Duration {
	// time.Since reads the monotonic component of c.start.
	return time.Since(c.start)
}

func (c *realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}

func (c *realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
