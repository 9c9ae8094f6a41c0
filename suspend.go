package runloop

import (
	"context"
	"fmt"
	"time"
)

// Suspension selects how a [Driver] waits between ticks. The set is closed,
// and the choice is fixed when the driver is constructed.
type Suspension uint8

const (
	// SuspendBlocking sleeps on the goroutine running the driver. Suitable
	// when the loop owns a dedicated goroutine.
	SuspendBlocking Suspension = iota
	// SuspendCooperative never blocks. Each iteration is scheduled as a
	// one-shot timer on a [Host], returning control to the host in between.
	SuspendCooperative
)

func (s Suspension) String() string {
	switch s {
	case SuspendBlocking:
		return "blocking"
	case SuspendCooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("Suspension(%d)", uint8(s))
	}
}

// Host is a single-threaded event loop, able to run a callback after a delay.
// Callbacks must run one at a time, never concurrently, and ScheduleTimer
// must not invoke fn before returning.
//
// It is implemented by hostloop.Loop.
type Host interface {
	ScheduleTimer(delay time.Duration, fn func()) error
}

// Clock abstracts time for the driver.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d, returning early with ctx.Err() if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cooperativeDelay is the delay registered with the host, for a given
// remaining time. It is never less than minimumTick, so the host always gets
// a turn before the next tick.
func cooperativeDelay(remaining, minimumTick time.Duration) time.Duration {
	return max(remaining, minimumTick, 0)
}
