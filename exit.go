package runloop

import (
	"strconv"
	"sync"
)

// Exit is a request for the driver to stop. A zero Code is a normal exit,
// any other value indicates failure.
type Exit struct {
	Code int
}

// ExitSuccess requests a normal exit.
var ExitSuccess = Exit{}

// ExitFailure requests an exit indicating failure. A code of 0 is replaced
// with 1, so the request is never mistaken for success.
func ExitFailure(code int) Exit {
	if code == 0 {
		code = 1
	}
	return Exit{Code: code}
}

// Success reports whether the exit is a normal one.
func (x Exit) Success() bool {
	return x.Code == 0
}

func (x Exit) String() string {
	if x.Success() {
		return "success"
	}
	return "failure(" + strconv.Itoa(x.Code) + ")"
}

// ExitLog is an append-only log of exit requests. Any goroutine may call
// Send. Entries are never removed, so any number of [ExitReader] values may
// consume the log independently.
type ExitLog struct {
	entries []Exit
	mu      sync.RWMutex
}

// NewExitLog returns an empty log.
func NewExitLog() *ExitLog {
	return new(ExitLog)
}

// Send appends an exit request.
func (x *ExitLog) Send(exit Exit) {
	x.mu.Lock()
	x.entries = append(x.entries, exit)
	x.mu.Unlock()
}

// Len returns the number of requests ever sent.
func (x *ExitLog) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Reader returns a new reader, with its cursor at the start of the log.
// Requests sent before the reader was created are therefore observed.
func (x *ExitLog) Reader() *ExitReader {
	return &ExitReader{log: x}
}

// ExitReader tracks how much of an [ExitLog] one consumer has seen. It is
// not safe for concurrent use; each consumer owns its own reader.
type ExitReader struct {
	log    *ExitLog
	cursor int
}

// Observe returns the most recent request sent since the previous call,
// discarding any earlier ones, and advances the cursor past all of them.
// The bool is false if nothing new was sent.
func (x *ExitReader) Observe() (exit Exit, ok bool) {
	x.log.mu.RLock()
	defer x.log.mu.RUnlock()
	if n := len(x.log.entries); n > x.cursor {
		exit, ok = x.log.entries[n-1], true
		x.cursor = n
	}
	return
}

// Cursor returns the number of entries consumed by this reader.
func (x *ExitReader) Cursor() int {
	return x.cursor
}
