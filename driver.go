package runloop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Driver repeatedly invokes a tick function, according to a [RunMode],
// stopping when an [Exit] is observed on its [ExitLog].
//
// Exits are polled immediately before and immediately after every tick, and
// never interrupt a tick in progress. An exit observed before a tick causes
// that tick to be skipped.
//
// A Driver runs at most once. See [Driver.Run] and [Driver.Start].
type Driver struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	tick   func()
	reader *ExitReader
	mode   RunMode

	logger         *logiface.Logger[logiface.Event]
	host           Host
	observer       Observer
	clock          Clock
	overrunLimiter *catrate.Limiter
	minimumTick    time.Duration
	suspension     Suspension

	state stateCell
	ticks atomic.Uint64

	// mu grants exclusive access to the iteration state (reader, ctx)
	// between the call that schedules a host callback, and the callback.
	mu  sync.Mutex
	ctx context.Context

	finishOnce sync.Once
	done       chan struct{}
	outcome    Outcome
	err        error
}

// New creates a driver for tick, consuming exit requests from exits.
// If exits is nil, the driver only stops via its RunMode or a context.
func New(tick func(), exits *ExitLog, settings Settings, opts ...Option) (*Driver, error) {
	if tick == nil {
		return nil, ErrNilTick
	}
	cfg, err := resolveDriverOptions(opts)
	if err != nil {
		return nil, err
	}
	if exits == nil {
		exits = NewExitLog()
	}
	return &Driver{
		tick:           tick,
		reader:         exits.Reader(),
		mode:           settings.RunMode,
		logger:         cfg.logger,
		host:           cfg.host,
		observer:       cfg.observer,
		clock:          cfg.clock,
		overrunLimiter: cfg.overrunLimiter,
		minimumTick:    cfg.minimumTick,
		suspension:     cfg.suspension,
		done:           make(chan struct{}),
	}, nil
}

// Run drives the tick until the driver terminates, returning the outcome.
//
// Under [SuspendBlocking] everything runs on the calling goroutine. A panic
// raised by the tick is not recovered: it escapes Run, after the driver has
// been marked terminated.
//
// Under [SuspendCooperative] Run calls [Driver.Start] then waits. It must
// not be called from the host's own goroutine, as the host would never get
// to run the scheduled iterations. A tick panic is reported as a
// [*TickFault] error.
//
// Cancelling ctx stops the driver at its next poll, or during a blocking
// sleep, with ctx.Err() as the error.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	if d.suspension == SuspendCooperative {
		if err := d.Start(ctx); err != nil {
			return Outcome{}, err
		}
		return d.Wait(ctx)
	}

	if !d.state.TryTransition(StateNotStarted, StateTicking) {
		return Outcome{}, ErrAlreadyStarted
	}
	d.logStart()
	d.runBlocking(ctx)
	return d.outcome, d.err
}

// Start schedules the first iteration on the host, and returns immediately.
// Each iteration then reschedules the next, until the driver terminates,
// which may be detected using [Driver.Done] or [Driver.Wait].
//
// Start is only supported under [SuspendCooperative].
func (d *Driver) Start(ctx context.Context) error {
	if d.suspension != SuspendCooperative {
		return ErrNotCooperative
	}
	if !d.state.TryTransition(StateNotStarted, StateTicking) {
		return ErrAlreadyStarted
	}
	d.logStart()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	return d.suspend(0)
}

// Wait blocks until the driver terminates, or ctx is done.
func (d *Driver) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-d.done:
		return d.outcome, d.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Done is closed once the driver has terminated.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// State returns the current state of the driver.
func (d *Driver) State() RunState {
	return d.state.Load()
}

// Ticks returns the number of ticks started so far.
func (d *Driver) Ticks() uint64 {
	return d.ticks.Load()
}

// Mode returns the RunMode the driver was created with.
func (d *Driver) Mode() RunMode {
	return d.mode
}

// runBlocking is the SuspendBlocking main loop.
func (d *Driver) runBlocking(ctx context.Context) {
	var returned bool
	defer func() {
		if !returned {
			// tick panicked (or called runtime.Goexit): record, then let it continue
			r := recover()
			d.finish(Outcome{}, &TickFault{Value: r, Stack: debug.Stack()})
			if r != nil {
				panic(r)
			}
		}
	}()

	for {
		remaining, done := d.iterate(ctx)
		if done {
			break
		}
		if remaining <= 0 {
			continue
		}

		d.state.Store(StateAwaitingResume)
		d.observer.ObserveSuspend(remaining)
		d.logger.Trace().
			Dur(`remaining`, remaining).
			Log(`runloop: sleeping`)
		if err := d.clock.Sleep(ctx, remaining); err != nil {
			d.finish(Outcome{}, err)
			break
		}
		d.state.Store(StateTicking)
	}

	returned = true
}

// resume is the SuspendCooperative timer callback, invoked by the host.
func (d *Driver) resume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Load() == StateTerminated {
		return
	}
	d.state.Store(StateTicking)

	remaining, done := d.iterateRecover()
	if done {
		return
	}
	// failure to schedule terminates the driver, there is no caller to return to
	_ = d.suspend(remaining)
}

// suspend registers the next iteration with the host. The caller must hold mu.
func (d *Driver) suspend(remaining time.Duration) error {
	delay := cooperativeDelay(remaining, d.minimumTick)
	d.state.Store(StateAwaitingResume)
	d.observer.ObserveSuspend(delay)
	d.logger.Trace().
		Dur(`delay`, delay).
		Log(`runloop: rescheduling`)
	if err := d.host.ScheduleTimer(delay, d.resume); err != nil {
		err = fmt.Errorf("%w: %w", ErrHostRejected, err)
		d.finish(Outcome{}, err)
		return err
	}
	return nil
}

// iterateRecover is iterate, converting a tick panic into a TickFault.
func (d *Driver) iterateRecover() (remaining time.Duration, done bool) {
	defer func() {
		if r := recover(); r != nil {
			d.finish(Outcome{}, &TickFault{Value: r, Stack: debug.Stack()})
			remaining, done = 0, true
		}
	}()
	return d.iterate(d.ctx)
}

// iterate performs one pass of the per-iteration protocol. If done is false,
// remaining is the time left before the next tick may start.
func (d *Driver) iterate(ctx context.Context) (remaining time.Duration, done bool) {
	start := d.clock.Now()

	if err := ctx.Err(); err != nil {
		d.finish(Outcome{}, err)
		return 0, true
	}

	// an exit requested by a previous tick (or externally) skips this one
	if exit, ok := d.reader.Observe(); ok {
		d.finish(RequestedExit(exit), nil)
		return 0, true
	}

	d.ticks.Add(1)
	d.tick()
	end := d.clock.Now()
	elapsed := end.Sub(start)
	d.observer.ObserveTick(elapsed)

	if exit, ok := d.reader.Observe(); ok {
		d.finish(RequestedExit(exit), nil)
		return 0, true
	}

	if d.mode.Kind() == ModeOnce {
		d.finish(Completed(), nil)
		return 0, true
	}

	if wait, ok := d.mode.Wait(); ok {
		if elapsed < wait {
			return wait - elapsed, false
		}
		if elapsed > wait {
			d.warnOverrun(elapsed, wait)
		}
	}

	return 0, false
}

func (d *Driver) warnOverrun(elapsed, wait time.Duration) {
	if d.logger == nil {
		return
	}
	if d.overrunLimiter != nil {
		if _, ok := d.overrunLimiter.Allow(d); !ok {
			return
		}
	}
	d.logger.Warning().
		Dur(`elapsed`, elapsed).
		Dur(`wait`, wait).
		Uint64(`tick`, d.ticks.Load()).
		Log(`runloop: tick overran wait`)
}

// finish transitions to StateTerminated, at most once.
func (d *Driver) finish(outcome Outcome, err error) {
	d.finishOnce.Do(func() {
		d.outcome, d.err = outcome, err
		d.state.Store(StateTerminated)
		d.logFinish()
		d.observer.ObserveTermination(outcome, err)
		close(d.done)
	})
}

func (d *Driver) logStart() {
	d.logger.Info().
		Stringer(`mode`, d.mode).
		Stringer(`suspension`, d.suspension).
		Log(`runloop: started`)
}

func (d *Driver) logFinish() {
	if d.err != nil {
		d.logger.Err().
			Err(d.err).
			Uint64(`ticks`, d.ticks.Load()).
			Log(`runloop: terminated`)
		return
	}
	d.logger.Info().
		Stringer(`outcome`, d.outcome).
		Uint64(`ticks`, d.ticks.Load()).
		Log(`runloop: terminated`)
}
