// Package hostloop provides a minimal single goroutine event loop, able to
// host cooperative work such as a runloop.Driver configured with
// runloop.SuspendCooperative.
//
// # Execution Model
//
// Each turn of the [Loop] runs, in order:
//  1. Timer callbacks whose deadline has passed (earliest deadline first,
//     then in scheduling order)
//  2. Tasks queued via [Loop.Submit], as of the start of the turn
//  3. A poll, sleeping until the next timer is due or a task is submitted
//
// Callbacks never run concurrently, and a panicking callback is recovered
// and logged, leaving the loop running.
//
// # Thread Safety
//
// [Loop.Submit] and [Loop.ScheduleTimer] are safe to call from any
// goroutine, including from callbacks running on the loop.
//
// # Usage
//
//	loop, err := hostloop.New(hostloop.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	go loop.Run(ctx)
//	defer loop.Shutdown(context.Background())
//
//	_ = loop.ScheduleTimer(50*time.Millisecond, func() {
//	    // runs on the loop goroutine
//	})
package hostloop
