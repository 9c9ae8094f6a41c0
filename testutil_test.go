package runloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-runloop/hostloop"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// fakeClock only moves when told to. Sleep advances it by the requested
// duration, and records it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (x *fakeClock) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

func (x *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.sleeps = append(x.sleeps, d)
	x.now = x.now.Add(d)
	return nil
}

func (x *fakeClock) Advance(d time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = x.now.Add(d)
}

func (x *fakeClock) Sleeps() []time.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]time.Duration(nil), x.sleeps...)
}

// manualHost queues scheduled callbacks, which the test fires explicitly.
type manualHost struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (x *manualHost) ScheduleTimer(delay time.Duration, fn func()) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.delays = append(x.delays, delay)
	x.pending = append(x.pending, fn)
	return nil
}

// Fire runs the oldest pending callback, returning false if there was none.
func (x *manualHost) Fire() bool {
	x.mu.Lock()
	if len(x.pending) == 0 {
		x.mu.Unlock()
		return false
	}
	fn := x.pending[0]
	x.pending = x.pending[1:]
	x.mu.Unlock()
	fn()
	return true
}

func (x *manualHost) Delays() []time.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]time.Duration(nil), x.delays...)
}

func (x *manualHost) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.pending)
}

// rejectingHost fails every ScheduleTimer call.
type rejectingHost struct {
	err error
}

func (x rejectingHost) ScheduleTimer(time.Duration, func()) error {
	return x.err
}

var errHostFull = errors.New("host is full")

// startHostLoop runs a hostloop.Loop until the test completes.
func startHostLoop(t *testing.T) *hostloop.Loop {
	t.Helper()
	loop, err := hostloop.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Error("host loop didn't stop")
		}
	})
	return loop
}

// recordingObserver counts the measurements it receives.
type recordingObserver struct {
	mu           sync.Mutex
	ticks        []time.Duration
	suspends     []time.Duration
	terminations int
	outcome      Outcome
	err          error
}

func (x *recordingObserver) ObserveTick(d time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ticks = append(x.ticks, d)
}

func (x *recordingObserver) ObserveSuspend(d time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.suspends = append(x.suspends, d)
}

func (x *recordingObserver) ObserveTermination(outcome Outcome, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.terminations++
	x.outcome, x.err = outcome, err
}

// recordingLogger captures the message and level of every logged event.
type recordingLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (x *recordingLogger) Logger() *logiface.Logger[logiface.Event] {
	return logiface.New[logiface.Event](
		logiface.WithEventFactory[logiface.Event](logiface.NewEventFactoryFunc(func(level logiface.Level) logiface.Event {
			return &recordedEvent{level: level}
		})),
		logiface.WithWriter[logiface.Event](logiface.NewWriterFunc(func(event logiface.Event) error {
			e := event.(*recordedEvent)
			x.mu.Lock()
			defer x.mu.Unlock()
			x.events = append(x.events, *e)
			return nil
		})),
		logiface.WithLevel[logiface.Event](logiface.LevelTrace),
	)
}

// Count returns the number of events logged with msg.
func (x *recordingLogger) Count(msg string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	var n int
	for _, e := range x.events {
		if e.msg == msg {
			n++
		}
	}
	return n
}

type recordedEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
	msg   string
}

func (x *recordedEvent) Level() logiface.Level { return x.level }

func (x *recordedEvent) AddField(string, any) {}

func (x *recordedEvent) AddMessage(msg string) bool {
	x.msg = msg
	return true
}
