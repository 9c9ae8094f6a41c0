package runloop

import (
	"time"
)

// Observer receives measurements from a [Driver]. Methods are called
// synchronously on the goroutine running the driver, and must not block.
type Observer interface {
	// ObserveTick is called after each tick, with its execution time.
	ObserveTick(d time.Duration)
	// ObserveSuspend is called each time the driver suspends, with the
	// delay it will wait before the next iteration.
	ObserveSuspend(d time.Duration)
	// ObserveTermination is called once, when the driver terminates.
	ObserveTermination(outcome Outcome, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveTick(time.Duration)         {}
func (nopObserver) ObserveSuspend(time.Duration)      {}
func (nopObserver) ObserveTermination(Outcome, error) {}
