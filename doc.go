// Package runloop drives an application's update function (the tick)
// repeatedly, until the application asks to stop.
//
// # Run Modes
//
// A [RunMode] is either [Once], ticking a single time, or [Loop], ticking
// until an [Exit] is requested. A loop may specify a minimum interval
// between the start of consecutive ticks. A tick that takes longer than the
// interval is followed immediately by the next, without catch-up.
//
// # Exit Requests
//
// Exits are appended to an [ExitLog], by the tick or by any other goroutine.
// The driver checks for new requests immediately before and immediately
// after every tick, and the most recent request wins. A tick in progress is
// never interrupted.
//
// # Suspension
//
// Between ticks the driver waits according to a [Suspension]:
//   - [SuspendBlocking] sleeps on the goroutine that called [Driver.Run]
//   - [SuspendCooperative] schedules each iteration as a timer on a [Host],
//     such as a hostloop.Loop, leaving the host free to run other work
//
// # Usage
//
//	exits := runloop.NewExitLog()
//	d, err := runloop.New(func() {
//	    if done() {
//	        exits.Send(runloop.ExitSuccess)
//	    }
//	}, exits, runloop.RunLoop(16*time.Millisecond))
//	if err != nil {
//	    return err
//	}
//	outcome, err := d.Run(ctx)
package runloop
