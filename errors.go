package runloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrNilTick is returned by New when no tick function is provided.
	ErrNilTick = errors.New("runloop: tick function is nil")

	// ErrNoHost is returned by New when SuspendCooperative is selected without a Host.
	ErrNoHost = errors.New("runloop: cooperative suspension requires a host")

	// ErrAlreadyStarted is returned when Run or Start is called more than once.
	ErrAlreadyStarted = errors.New("runloop: driver has already been started")

	// ErrNotCooperative is returned by Start on a driver using SuspendBlocking.
	ErrNotCooperative = errors.New("runloop: start requires cooperative suspension")

	// ErrHostRejected wraps errors returned by Host.ScheduleTimer.
	ErrHostRejected = errors.New("runloop: host rejected timer")
)

// TickFault reports a panic raised by the tick function, recovered within a
// host callback under [SuspendCooperative]. Under [SuspendBlocking] the panic
// is not recovered, and escapes [Driver.Run] as-is.
type TickFault struct {
	// Value is the value passed to panic.
	Value any
	// Stack is the stack trace of the panicking goroutine.
	Stack []byte
}

// Error implements the error interface.
func (e *TickFault) Error() string {
	return fmt.Sprintf("runloop: tick panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *TickFault) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
