package runloop

import (
	"sync/atomic"
)

// RunState represents the lifecycle of a [Driver].
//
// State Machine:
//
//	StateNotStarted → StateTicking              [Run / Start]
//	StateTicking → StateAwaitingResume          [tick finished early, suspending]
//	StateAwaitingResume → StateTicking          [suspension resumed]
//	StateTicking → StateTerminated              [exit observed, Once done, fault]
//	StateAwaitingResume → StateTerminated       [cancelled while suspended]
//	StateTerminated → (terminal)
type RunState uint32

const (
	// StateNotStarted indicates the driver has been created but not run.
	StateNotStarted RunState = iota
	// StateTicking indicates the driver is polling for exits or ticking.
	StateTicking
	// StateAwaitingResume indicates the driver is suspended between ticks.
	StateAwaitingResume
	// StateTerminated indicates no further ticks will occur.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateTicking:
		return "Ticking"
	case StateAwaitingResume:
		return "AwaitingResume"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// stateCell is a lock-free holder for RunState, readable from any goroutine,
// including from within the tick itself.
type stateCell struct {
	v atomic.Uint32
}

func (s *stateCell) Load() RunState {
	return RunState(s.v.Load())
}

func (s *stateCell) Store(state RunState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically move from one state to another.
func (s *stateCell) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
