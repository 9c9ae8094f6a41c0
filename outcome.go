package runloop

// OutcomeKind distinguishes the ordinary ways a [Driver] terminates.
type OutcomeKind uint8

const (
	// OutcomeCompleted means the mode was [Once], and the single tick
	// finished without an exit being requested.
	OutcomeCompleted OutcomeKind = iota + 1
	// OutcomeRequestedExit means an [Exit] was observed, see Outcome.Exit.
	OutcomeRequestedExit
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRequestedExit:
		return "requested_exit"
	default:
		return "none"
	}
}

// Outcome is the normal (non-error) result of running a [Driver].
type Outcome struct {
	// Exit is the observed request, valid only for OutcomeRequestedExit.
	Exit Exit
	Kind OutcomeKind
}

// Completed returns the outcome of a [Once] run that was not asked to exit.
func Completed() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

// RequestedExit returns the outcome of observing exit.
func RequestedExit(exit Exit) Outcome {
	return Outcome{Kind: OutcomeRequestedExit, Exit: exit}
}

// Success reports whether a hosting process should treat the outcome as a
// success, i.e. completed, or a normal exit.
func (o Outcome) Success() bool {
	switch o.Kind {
	case OutcomeCompleted:
		return true
	case OutcomeRequestedExit:
		return o.Exit.Success()
	default:
		return false
	}
}

// ExitCode translates the outcome into a process exit code: 0 on success,
// otherwise the requested exit's code (or 1 if the outcome is unset).
func (o Outcome) ExitCode() int {
	switch {
	case o.Success():
		return 0
	case o.Kind == OutcomeRequestedExit:
		return o.Exit.Code
	default:
		return 1
	}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeRequestedExit {
		return o.Kind.String() + "(" + o.Exit.String() + ")"
	}
	return o.Kind.String()
}
