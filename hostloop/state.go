package hostloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)          [Run()]
//	StateRunning (3) → StateSleeping (2)       [poll() via CAS]
//	StateRunning (3) → StateTerminating (4)    [Shutdown()]
//	StateSleeping (2) → StateRunning (3)       [poll() wake via CAS]
//	StateSleeping (2) → StateTerminating (4)   [Shutdown()]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateAwake (0) → StateTerminated (1)       [Shutdown() before Run()]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary states (Running, Sleeping), and
// Store only for the irreversible one (Terminated).
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been stopped and is fully shut down.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked waiting for tasks or timers.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v atomic.Uint64
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the current state is Terminated.
func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
