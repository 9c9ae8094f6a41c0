package runloop

import (
	"fmt"
	"strings"
	"time"
)

// ModeKind identifies the variant held by a [RunMode].
type ModeKind uint8

const (
	// ModeLoop runs the tick repeatedly, until an exit is requested.
	// It is the zero value, see [RunMode].
	ModeLoop ModeKind = iota
	// ModeOnce runs the tick a single time.
	ModeOnce
)

// String returns the lower-case name of the kind.
func (k ModeKind) String() string {
	switch k {
	case ModeLoop:
		return "loop"
	case ModeOnce:
		return "once"
	default:
		return fmt.Sprintf("ModeKind(%d)", uint8(k))
	}
}

// RunMode determines how the [Driver] repeats the tick.
//
// The zero value is a loop with no minimum interval, i.e. ticks run as fast
// as the suspension strategy allows. RunMode is an immutable value, and is
// copied into the driver when it is constructed.
type RunMode struct {
	wait time.Duration
	kind ModeKind
}

// Once returns a RunMode that ticks exactly one time.
func Once() RunMode {
	return RunMode{kind: ModeOnce}
}

// Loop returns a RunMode that ticks repeatedly, such that the start of
// consecutive ticks is never closer than wait. A wait that is zero or negative
// is treated as no minimum interval.
func Loop(wait time.Duration) RunMode {
	if wait <= 0 {
		return LoopUnbounded()
	}
	return RunMode{kind: ModeLoop, wait: wait}
}

// LoopUnbounded returns a RunMode that ticks repeatedly, with no minimum
// interval. It is equivalent to the zero value.
func LoopUnbounded() RunMode {
	return RunMode{kind: ModeLoop}
}

// Kind returns the variant of the mode.
func (m RunMode) Kind() ModeKind {
	return m.kind
}

// Wait returns the minimum interval between the start of consecutive ticks,
// and true, if the mode is a loop with an interval configured.
func (m RunMode) Wait() (time.Duration, bool) {
	if m.kind != ModeLoop || m.wait <= 0 {
		return 0, false
	}
	return m.wait, true
}

// String renders the mode as e.g. "once", "loop" or "loop(50ms)".
func (m RunMode) String() string {
	if wait, ok := m.Wait(); ok {
		return fmt.Sprintf("loop(%s)", wait)
	}
	return m.kind.String()
}

// ParseRunMode builds a RunMode from its configuration vocabulary. The mode
// is case-insensitive, and must be "once" or "loop". The wait is ignored for
// "once", and follows the semantics of [Loop] otherwise.
func ParseRunMode(mode string, wait time.Duration) (RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "once":
		return Once(), nil
	case "loop", "":
		return Loop(wait), nil
	default:
		return RunMode{}, fmt.Errorf("runloop: unknown run mode %q", mode)
	}
}

// Settings is the configuration consumed by [New].
type Settings struct {
	// RunMode determines whether the tick runs once or repeatedly.
	RunMode RunMode
}

// RunOnce returns Settings using [Once].
func RunOnce() Settings {
	return Settings{RunMode: Once()}
}

// RunLoop returns Settings using [Loop] with the given wait.
func RunLoop(wait time.Duration) Settings {
	return Settings{RunMode: Loop(wait)}
}
