package exitcode

import (
	"context"
	"errors"

	runloop "github.com/joeycumines/go-runloop"
)

// Exit codes for the runloop CLI
// These codes form the operational contract with scripts and operators
const (
	Success       = 0   // Completed, or a normal exit was requested
	Failure       = 1   // Generic failure, or a failure exit without a usable code
	InvalidConfig = 2   // Configuration file or flags invalid
	TickFault     = 4   // The tick panicked
	RuntimeError  = 5   // The driver stopped with any other error
	Interrupted   = 130 // Forced stop, before an exit was observed
)

// FromResult maps the result of running a driver to a process exit code. A
// requested failure uses its own code, clamped to the portable range 1-255.
func FromResult(outcome runloop.Outcome, err error) int {
	var fault *runloop.TickFault
	switch {
	case errors.As(err, &fault):
		return TickFault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Interrupted
	case err != nil:
		return RuntimeError
	case outcome.Success():
		return Success
	}
	if code := outcome.ExitCode(); code > 0 && code <= 255 {
		return code
	}
	return Failure
}
