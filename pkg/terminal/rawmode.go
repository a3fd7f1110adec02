package terminal

import (
	"sync"

	"golang.org/x/term"
)

// RawModeController switches the local terminal into raw mode for the
// lifetime of a session and puts it back afterwards.
type RawModeController interface {
	Acquire() error
	Release() error
}

// RawMode is the RawModeController for a terminal file descriptor.
//
// Release restores the state captured by Acquire at most once, no matter
// how many goroutines call it; later calls return the first result.
type RawMode struct {
	fd int

	mu         sync.Mutex
	state      *term.State
	released   bool
	releaseErr error

	isTerminal func(fd int) bool
	makeRaw    func(fd int) (*term.State, error)
	restore    func(fd int, state *term.State) error
}

// NewRawMode returns a RawMode for fd (typically os.Stdin.Fd())
func NewRawMode(fd int) *RawMode {
	return &RawMode{
		fd:         fd,
		isTerminal: term.IsTerminal,
		makeRaw:    term.MakeRaw,
		restore:    term.Restore,
	}
}

// Acquire saves the current terminal mode and switches to raw mode: no
// line buffering, no echo, no signal generation. Calling it again while
// acquired is a no-op.
func (r *RawMode) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil && !r.released {
		return nil
	}
	if !r.isTerminal(r.fd) {
		return &LocalIOError{Op: "enter raw mode", Err: ErrNotTerminal}
	}

	state, err := r.makeRaw(r.fd)
	if err != nil {
		return &LocalIOError{Op: "enter raw mode", Err: err}
	}

	r.state = state
	r.released = false
	r.releaseErr = nil
	return nil
}

// Release restores the mode saved by Acquire. It is safe to call from any
// goroutine and any number of times.
func (r *RawMode) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil || r.released {
		return r.releaseErr
	}
	r.released = true

	if err := r.restore(r.fd, r.state); err != nil {
		r.releaseErr = &LocalIOError{Op: "restore terminal", Err: err}
	}
	return r.releaseErr
}

// Active reports whether the terminal is currently in raw mode
func (r *RawMode) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != nil && !r.released
}
