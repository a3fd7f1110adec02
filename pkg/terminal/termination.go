package terminal

import (
	"sync"

	"github.com/rs/zerolog/log"

	"sibterm/pkg/shellinabox"
)

// termination is the shared stop signal of a bridge. The first call to
// Terminate wins: its error becomes the cause and done is closed, which
// wakes every worker blocked in a select. Errors reported afterwards are
// dropped.
type termination struct {
	mu         sync.Mutex
	terminated bool
	cause      error
	done       chan struct{}
}

func newTermination() *termination {
	return &termination{done: make(chan struct{})}
}

// Terminate records err (nil for a clean stop) and reports whether this
// call was the one that terminated.
func (t *termination) Terminate(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		if err != nil {
			log.Debug().Err(err).Msg("Dropping error reported after termination")
		}
		return false
	}

	t.terminated = true
	t.cause = err
	close(t.done)
	return true
}

func (t *termination) Done() <-chan struct{} {
	return t.done
}

func (t *termination) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// Cause returns the recorded error as reported
func (t *termination) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Err returns the error the session ends with. A 400/500 answer is how
// ShellInABox reports that the remote shell has exited, so it counts as a
// clean end.
func (t *termination) Err() error {
	cause := t.Cause()
	if shellinabox.IsSessionClosed(cause) {
		return nil
	}
	return cause
}
