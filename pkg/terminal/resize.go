package terminal

import (
	"sync"

	"golang.org/x/term"

	"sibterm/pkg/shellinabox"
)

// SizeFunc reports the current size of the local terminal
type SizeFunc func() (shellinabox.Dimensions, error)

// TerminalSize returns a SizeFunc reading the window size of fd
func TerminalSize(fd int) SizeFunc {
	return func() (shellinabox.Dimensions, error) {
		width, height, err := term.GetSize(fd)
		if err != nil {
			return shellinabox.Dimensions{}, &LocalIOError{Op: "get terminal size", Err: err}
		}
		return shellinabox.Dimensions{Width: width, Height: height}, nil
	}
}

// sharedDimensions is written by the resize watcher and read by the poll
// and dispatch workers before each request.
type sharedDimensions struct {
	mu   sync.RWMutex
	dims shellinabox.Dimensions
}

func (s *sharedDimensions) Get() shellinabox.Dimensions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

func (s *sharedDimensions) Set(dims shellinabox.Dimensions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims = dims
}

// resizeWatcher turns window-change notifications into dimension updates
type resizeWatcher struct {
	source <-chan struct{}
	size   SizeFunc
	dims   *sharedDimensions
}

// run handles notifications until done is closed or source is closed.
// After every update nudge is called so the new size reaches the server
// without waiting for the next keystroke.
func (w *resizeWatcher) run(done <-chan struct{}, nudge func()) error {
	for {
		select {
		case <-done:
			return nil
		case _, ok := <-w.source:
			if !ok {
				return nil
			}
			if w.size != nil {
				dims, err := w.size()
				if err != nil {
					return err
				}
				if dims.Valid() {
					w.dims.Set(dims)
				}
			}
			nudge()
		}
	}
}
