// Package demo implements the application driven by the runloop CLI.
package demo

import (
	"sync/atomic"
	"time"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/joeycumines/go-runloop/internal/config"
	"github.com/joeycumines/logiface"
)

// FailureCode is the exit code requested when the counter is configured to
// fail.
const FailureCode = 3

// Counter counts ticks, optionally simulating work in each, and requests an
// exit once the configured number of ticks has been reached.
type Counter struct {
	exits    *runloop.ExitLog
	logger   *logiface.Logger[logiface.Event]
	count    atomic.Int64
	maxTicks int
	work     time.Duration
	fail     bool
}

// NewCounter returns a counter posting its exit to exits. A nil logger
// disables logging.
func NewCounter(exits *runloop.ExitLog, cfg config.Demo, logger *logiface.Logger[logiface.Event]) *Counter {
	return &Counter{
		exits:    exits,
		logger:   logger,
		maxTicks: cfg.MaxTicks,
		work:     cfg.Work,
		fail:     cfg.Fail,
	}
}

// Tick is the update function.
func (x *Counter) Tick() {
	n := x.count.Add(1)

	if x.work > 0 {
		time.Sleep(x.work)
	}

	x.logger.Debug().
		Int64(`count`, n).
		Log(`demo: tick`)

	if x.maxTicks > 0 && n >= int64(x.maxTicks) {
		exit := runloop.ExitSuccess
		if x.fail {
			exit = runloop.ExitFailure(FailureCode)
		}
		x.logger.Info().
			Int64(`count`, n).
			Stringer(`exit`, exit).
			Log(`demo: requesting exit`)
		x.exits.Send(exit)
	}
}

// Count returns the number of ticks so far.
func (x *Counter) Count() int64 {
	return x.count.Load()
}
