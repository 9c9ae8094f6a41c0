package hostloop

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// waitForRunning blocks until the loop has started, failing the test after
// a timeout.
func waitForRunning(t *testing.T, loop *Loop) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		switch loop.State() {
		case StateRunning, StateSleeping:
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for loop to start running")
		default:
			runtime.Gosched()
		}
	}
}

// startLoop creates and runs a loop, stopping it on test cleanup.
func startLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()
	waitForRunning(t, loop)

	t.Cleanup(func() {
		cancel()
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Error("loop didn't stop")
		}
	})
	return loop
}

// recordingWriter captures the messages and fields of logged events.
type recordingWriter struct {
	mu     sync.Mutex
	events []map[string]any
}

func (x *recordingWriter) logger() *logiface.Logger[logiface.Event] {
	return logiface.New[logiface.Event](
		logiface.WithEventFactory[logiface.Event](logiface.NewEventFactoryFunc(func(level logiface.Level) logiface.Event {
			return &recordedEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[logiface.Event](logiface.NewWriterFunc(func(event logiface.Event) error {
			e := event.(*recordedEvent)
			x.mu.Lock()
			defer x.mu.Unlock()
			x.events = append(x.events, e.fields)
			return nil
		})),
		logiface.WithLevel[logiface.Event](logiface.LevelTrace),
	)
}

func (x *recordingWriter) messages() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []string
	for _, e := range x.events {
		if msg, ok := e[`msg`].(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

type recordedEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
}

func (x *recordedEvent) Level() logiface.Level { return x.level }

func (x *recordedEvent) AddField(key string, val any) { x.fields[key] = val }

func (x *recordedEvent) AddMessage(msg string) bool {
	x.fields[`msg`] = msg
	return true
}
