package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTerminal is returned when raw mode is requested on something
	// that is not a TTY (e.g., input is piped).
	ErrNotTerminal = errors.New("not a terminal")

	// ErrAlreadyStarted is returned by Start on a bridge that is running
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrClosed is returned by Start on a bridge that has terminated
	ErrClosed = errors.New("bridge closed")

	// ErrStopped is returned by Start when Stop was called while the
	// session was still being opened.
	ErrStopped = errors.New("bridge stopped before the session was established")
)

// LocalIOError wraps a failure of the local side: raw mode handling or
// reading and writing the local streams.
type LocalIOError struct {
	Op  string
	Err error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// IsLocalIOError checks if an error is a LocalIOError
func IsLocalIOError(err error) bool {
	var e *LocalIOError
	return errors.As(err, &e)
}
