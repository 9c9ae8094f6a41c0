package hostloop

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("hostloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("hostloop: loop has been terminated")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("hostloop: cannot call Run() from within the loop")
)

// Loop is a single goroutine event loop, running submitted tasks and timers
// one at a time, in order.
//
// Each turn of the loop runs expired timers, then queued tasks, then sleeps
// until the next timer is due, or a task is submitted.
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	state fastState

	// mu guards queue, timers and timerSeq
	mu       sync.Mutex
	queue    []func()
	timers   timerHeap
	timerSeq uint64

	// wake has a buffer of one, so a wake-up is never lost
	wake chan struct{}

	stopOnce sync.Once
	loopDone chan struct{}

	loopGoroutineID atomic.Uint64
	turns           atomic.Uint64
}

// timer represents a scheduled task
type timer struct {
	when time.Time
	task func()
	seq  uint64
}

// timerHeap is a min-heap of timers, ordered by deadline, then by the order
// they were scheduled.
type timerHeap []timer

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timer{}
	*h = old[:n-1]
	return x
}

// New creates a new event loop. It must be started using [Loop.Run].
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		logger:   cfg.logger,
		timers:   make(timerHeap, 0),
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}, nil
}

// Run runs the event loop and blocks until fully stopped.
//
// Run blocks until the loop terminates (via Shutdown(), Close(), or ctx cancellation).
// To run in a separate goroutine, use: `go loop.Run(ctx)`.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(l.loopDone)

	l.logger.Debug().
		Log(`hostloop: running`)

	return l.run(ctx)
}

// Shutdown gracefully shuts down the event loop.
//
// Shutdown initiates graceful shutdown that runs all queued tasks, but not
// pending timers. It blocks until termination completes or ctx expires.
func (l *Loop) Shutdown(ctx context.Context) error {
	var result error
	var called bool
	l.stopOnce.Do(func() {
		called = true
		result = l.shutdownImpl(ctx)
	})
	if !called {
		return ErrLoopTerminated
	}
	return result
}

// shutdownImpl contains the actual Shutdown implementation.
func (l *Loop) shutdownImpl(ctx context.Context) error {
	for {
		currentState := l.state.Load()
		if currentState == StateTerminated || currentState == StateTerminating {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(currentState, StateTerminating) {
			if currentState == StateAwake {
				l.state.Store(StateTerminated)
				return nil
			}
			l.signal()
			break
		}
	}

	// Wait for termination via channel, NOT polling
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately terminates the event loop without waiting for graceful shutdown.
func (l *Loop) Close() error {
	for {
		currentState := l.state.Load()
		if currentState == StateTerminated {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(currentState, StateTerminating) {
			if currentState == StateAwake {
				l.state.Store(StateTerminated)
				return nil
			}
			l.signal()
			return nil
		}
	}
}

// run is the main loop goroutine.
func (l *Loop) run(ctx context.Context) error {
	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	for {
		// Check context for external cancellation
		select {
		case <-ctx.Done():
			for {
				current := l.state.Load()
				if current == StateTerminating || current == StateTerminated {
					break
				}
				if l.state.TryTransition(current, StateTerminating) {
					break
				}
			}
			l.shutdown()
			return ctx.Err()
		default:
		}

		// Check termination
		if state := l.state.Load(); state == StateTerminating || state == StateTerminated {
			l.shutdown()
			return nil
		}

		l.tick(ctx.Done())
	}
}

// shutdown performs the shutdown sequence.
func (l *Loop) shutdown() {
	// Set state to Terminated FIRST to prevent new tasks from being accepted.
	// Submit checks the state under mu, so anything already queued is caught
	// by the drain below.
	l.mu.Lock()
	l.state.Store(StateTerminated)
	tasks := l.queue
	l.queue = nil
	dropped := len(l.timers)
	l.timers = nil
	l.mu.Unlock()

	for _, task := range tasks {
		l.safeExecute(task)
	}

	l.logger.Debug().
		Int(`drained`, len(tasks)).
		Int(`dropped_timers`, dropped).
		Uint64(`turns`, l.turns.Load()).
		Log(`hostloop: terminated`)
}

// tick is a single iteration of the event loop.
func (l *Loop) tick(ctxDone <-chan struct{}) {
	l.turns.Add(1)

	// Execute expired timers
	l.runTimers()

	// Process submitted tasks
	l.processQueue()

	l.poll(ctxDone)
}

// runTimers executes all timers expired as of the start of the call.
func (l *Loop) runTimers() {
	now := time.Now()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.mu.Unlock()
			return
		}
		t := heap.Pop(&l.timers).(timer)
		l.mu.Unlock()

		l.safeExecute(t.task)
	}
}

// processQueue runs the tasks queued as of the start of the call. Tasks
// submitted by those tasks wait for the next turn.
func (l *Loop) processQueue() {
	l.mu.Lock()
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()

	for i, task := range tasks {
		tasks[i] = nil
		l.safeExecute(task)
	}
}

// poll blocks until there may be work to do.
func (l *Loop) poll(ctxDone <-chan struct{}) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}
	defer l.state.TryTransition(StateSleeping, StateRunning)

	timeout, ok := l.calculateTimeout()
	if !ok {
		return
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-l.wake:
	case <-timerC:
	case <-ctxDone:
	}
}

// calculateTimeout determines how long to block in poll. It returns false if
// there is work ready now, and zero (no timeout) if there is nothing
// scheduled.
func (l *Loop) calculateTimeout() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) > 0 {
		return 0, false
	}

	if len(l.timers) == 0 {
		return 0, true
	}

	delay := time.Until(l.timers[0].when)
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}

// signal wakes the loop if it is sleeping, or causes the next poll to return
// immediately.
func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Submit queues fn to run on the loop goroutine. Tasks run in the order they
// were submitted. It is safe to call from any goroutine, including tasks
// running on the loop.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.state.IsTerminal() {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
	return nil
}

// ScheduleTimer schedules fn to run on the loop goroutine after delay.
// Timers sharing a deadline run in the order they were scheduled. A negative
// delay is treated as zero. The function is never invoked before
// ScheduleTimer returns.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) error {
	if delay < 0 {
		delay = 0
	}
	when := time.Now().Add(delay)

	l.mu.Lock()
	if l.state.IsTerminal() {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.timerSeq++
	heap.Push(&l.timers, timer{
		when: when,
		task: fn,
		seq:  l.timerSeq,
	})
	earliest := l.timers[0].seq == l.timerSeq
	l.mu.Unlock()

	// only a new earliest deadline changes how long the loop should sleep
	if earliest {
		l.signal()
	}
	return nil
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Turns returns the number of iterations the loop has started.
func (l *Loop) Turns() uint64 {
	return l.turns.Load()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Any(`panic`, r).
				Log(`hostloop: task panicked`)
		}
	}()

	fn()
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
