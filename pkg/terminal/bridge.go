package terminal

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"sibterm/pkg/shellinabox"
)

const (
	// readChunk is the largest slice of local input captured per read
	readChunk = 128

	// defaultQueueSize bounds both queues; a full queue applies
	// backpressure and never drops data.
	defaultQueueSize = 256
)

// Remote is the session protocol the bridge drives. *shellinabox.Client
// implements it.
type Remote interface {
	Open(ctx context.Context, dims shellinabox.Dimensions) (string, error)
	Poll(ctx context.Context, session string, dims shellinabox.Dimensions) (string, error)
	Send(ctx context.Context, session string, dims shellinabox.Dimensions, keys []byte) error
}

// State is the lifecycle position of a Bridge
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures the local side of a Bridge
type Options struct {
	// Input is the local keystroke source (typically a cancelreader over
	// os.Stdin). Inputs implementing Cancel() bool or SetReadDeadline are
	// interrupted on termination; others are abandoned in their blocking
	// read. A nil Input disables input capture.
	Input io.Reader

	// Output receives remote terminal output. If it implements
	// Flush() error, it is flushed after every write. Nil discards output.
	Output io.Writer

	// RawMode, if set, is acquired before the session is opened and
	// released once every worker has exited.
	RawMode RawModeController

	// Resize delivers window-change notifications, Size reports the new
	// dimensions. Either may be nil.
	Resize <-chan struct{}
	Size   SizeFunc

	// TranslateNewline rewrites LF to CR in captured input, which is what
	// the Enter key of a raw terminal produces.
	TranslateNewline bool

	// ExitSequence makes Ctrl+] followed by q stop the bridge locally. The
	// q is not sent.
	ExitSequence bool

	// QueueSize bounds the input and output queues (default 256)
	QueueSize int
}

// Bridge connects a local terminal to one remote ShellInABox session.
//
// Four goroutines do the work once Start succeeds:
//   - captureInput: local input -> input queue
//   - dispatchInput: input queue -> Send, coalescing everything queued
//   - pollOutput: Poll -> output queue, in arrival order
//   - emitOutput: output queue -> local output
//
// Any of them failing, Stop, or cancellation of the Start context
// terminates the bridge; Wait then returns the first error.
type Bridge struct {
	remote Remote
	opts   Options

	mu       sync.Mutex
	state    State
	session  string
	startErr error

	dims     sharedDimensions
	input    chan []byte
	output   chan string
	term     *termination
	finished chan struct{}
}

// NewBridge creates an idle bridge for remote
func NewBridge(remote Remote, opts Options) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Bridge{
		remote:   remote,
		opts:     opts,
		input:    make(chan []byte, opts.QueueSize),
		output:   make(chan string, opts.QueueSize),
		term:     newTermination(),
		finished: make(chan struct{}),
	}
}

// Start acquires raw mode, opens the session and starts the workers. If
// any of that fails, no worker is started, raw mode is released and the
// error is returned. Start returns as soon as the session is running.
func (b *Bridge) Start(ctx context.Context, dims shellinabox.Dimensions) error {
	b.mu.Lock()
	switch b.state {
	case StateIdle:
	case StateTerminated:
		b.mu.Unlock()
		return ErrClosed
	default:
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.state = StateConnecting
	b.mu.Unlock()

	if !dims.Valid() {
		dims = shellinabox.DefaultDimensions()
	}
	b.dims.Set(dims)

	// ctx is cancelled on termination, aborting in-flight requests
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.watchContext(ctx, cancel)
	}()

	if b.opts.RawMode != nil {
		if err := b.opts.RawMode.Acquire(); err != nil {
			b.abort(err, false)
			return err
		}
	}

	session, err := b.remote.Open(ctx, dims)
	if err != nil {
		if b.stopped() {
			err = ErrStopped
		}
		b.abort(err, true)
		return err
	}

	b.mu.Lock()
	b.session = session
	b.state = StateRunning
	b.mu.Unlock()

	log.Debug().
		Str("session", session).
		Int("width", dims.Width).
		Int("height", dims.Height).
		Msg("ShellInABox session opened")

	b.spawn(&wg, "dispatch", func() { b.dispatchInput(ctx, session) })
	b.spawn(&wg, "poll", func() { b.pollOutput(ctx, session) })
	b.spawn(&wg, "emit", b.emitOutput)
	if b.opts.Resize != nil {
		watcher := &resizeWatcher{source: b.opts.Resize, size: b.opts.Size, dims: &b.dims}
		b.spawn(&wg, "resize", func() {
			if err := watcher.run(b.term.Done(), b.nudge); err != nil {
				b.term.Terminate(err)
			}
		})
	}

	captured := make(chan struct{})
	if b.opts.Input != nil {
		go b.captureInput(captured)
	} else {
		close(captured)
	}

	go b.drain(&wg, captured)
	return nil
}

// Stop terminates the bridge without an error. It is safe to call from
// any goroutine, any number of times, in any state.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.state == StateIdle {
		b.state = StateTerminated
		close(b.finished)
	}
	b.mu.Unlock()

	b.term.Terminate(nil)
}

// Wait blocks until the bridge has terminated and every worker has exited.
// It may be called before Start, from any goroutine; an idle bridge is
// waited on until it is started and ends, or until Stop. It returns nil for
// a clean end (Stop, or the remote session closing) and the first error
// otherwise.
func (b *Bridge) Wait() error {
	<-b.finished

	if b.startErr != nil {
		if errors.Is(b.startErr, ErrStopped) {
			return nil
		}
		return b.startErr
	}
	return b.term.Err()
}

// State returns the current lifecycle state
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Session returns the remote session id, empty until Start succeeds
func (b *Bridge) Session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Dimensions returns the size currently reported to the server
func (b *Bridge) Dimensions() shellinabox.Dimensions {
	return b.dims.Get()
}

// Done is closed once the bridge has reached StateTerminated
func (b *Bridge) Done() <-chan struct{} {
	return b.finished
}

func (b *Bridge) spawn(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
		log.Debug().Str("worker", name).Msg("Worker exited")
	}()
}

// watchContext turns parent cancellation into termination and cancels the
// shared context once terminated.
func (b *Bridge) watchContext(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	select {
	case <-ctx.Done():
		b.term.Terminate(ctx.Err())
	case <-b.term.Done():
	}
}

func (b *Bridge) stopped() bool {
	return b.term.Terminated() && b.term.Cause() == nil
}

// abort ends a Start that failed before any worker ran
func (b *Bridge) abort(err error, releaseRawMode bool) {
	b.term.Terminate(err)
	if releaseRawMode {
		b.releaseRawMode()
	}

	b.mu.Lock()
	b.startErr = err
	b.state = StateTerminated
	b.mu.Unlock()
	close(b.finished)

	log.Debug().Err(err).Msg("Bridge failed to start")
}

// drain waits for the workers after termination, then restores the
// terminal. Raw mode is released here and nowhere else once running.
func (b *Bridge) drain(wg *sync.WaitGroup, captured <-chan struct{}) {
	<-b.term.Done()

	b.mu.Lock()
	b.state = StateDraining
	b.mu.Unlock()

	interrupted := b.interruptInput()
	wg.Wait()
	if interrupted {
		<-captured
	}

	b.releaseRawMode()

	b.mu.Lock()
	b.state = StateTerminated
	b.mu.Unlock()
	close(b.finished)

	log.Debug().Err(b.term.Cause()).Msg("Bridge terminated")
}

func (b *Bridge) releaseRawMode() {
	if b.opts.RawMode == nil {
		return
	}
	if err := b.opts.RawMode.Release(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore terminal mode")
	}
}

// interruptInput unblocks a capture worker stuck in Read, if the input
// supports it.
func (b *Bridge) interruptInput() bool {
	switch in := b.opts.Input.(type) {
	case nil:
		return false
	case interface{ Cancel() bool }:
		return in.Cancel()
	case interface{ SetReadDeadline(time.Time) error }:
		return in.SetReadDeadline(time.Now()) == nil
	default:
		return false
	}
}

// nudge queues an empty batch so dispatch reports fresh dimensions
func (b *Bridge) nudge() {
	select {
	case b.input <- []byte{}:
	case <-b.term.Done():
	}
}

// captureInput reads local input and queues it unchanged, in order
func (b *Bridge) captureInput(captured chan<- struct{}) {
	defer close(captured)

	var exit exitDetector
	buf := make([]byte, readChunk)
	for {
		n, err := b.opts.Input.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if b.opts.ExitSequence && exit.detect(chunk) {
				log.Debug().Msg("Exit sequence pressed")
				b.term.Terminate(nil)
				return
			}
			if b.opts.TranslateNewline {
				translateNewlines(chunk)
			}

			select {
			case b.input <- chunk:
			case <-b.term.Done():
				return
			}
		}
		if err != nil {
			switch {
			case b.term.Terminated():
			case errors.Is(err, io.EOF):
				log.Debug().Msg("Local input closed")
			default:
				b.term.Terminate(&LocalIOError{Op: "read input", Err: err})
			}
			return
		}
	}
}

// dispatchInput waits for queued input, takes everything queued at that
// moment as one batch and sends it. Batches are unbounded: under a paste
// this keeps the request count low without reordering bytes.
func (b *Bridge) dispatchInput(ctx context.Context, session string) {
	for {
		var batch []byte
		select {
		case <-b.term.Done():
			return
		case keys := <-b.input:
			batch = append(batch, keys...)
		}

	coalesce:
		for {
			select {
			case keys := <-b.input:
				batch = append(batch, keys...)
			default:
				break coalesce
			}
		}

		if err := b.remote.Send(ctx, session, b.dims.Get(), batch); err != nil {
			b.term.Terminate(err)
			return
		}
	}
}

// pollOutput keeps exactly one poll outstanding and queues each result
func (b *Bridge) pollOutput(ctx context.Context, session string) {
	for {
		select {
		case <-b.term.Done():
			return
		default:
		}

		data, err := b.remote.Poll(ctx, session, b.dims.Get())
		if err != nil {
			b.term.Terminate(err)
			return
		}

		select {
		case b.output <- data:
		case <-b.term.Done():
			return
		}
	}
}

// emitOutput writes queued output in order. Output already queued when
// the bridge terminates is still written.
func (b *Bridge) emitOutput() {
	for {
		select {
		case data := <-b.output:
			if err := b.write(data); err != nil {
				b.term.Terminate(&LocalIOError{Op: "write output", Err: err})
				return
			}
		case <-b.term.Done():
			for {
				select {
				case data := <-b.output:
					if err := b.write(data); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) write(data string) error {
	if data == "" {
		return nil
	}
	if _, err := io.WriteString(b.opts.Output, data); err != nil {
		return err
	}
	if f, ok := b.opts.Output.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func translateNewlines(chunk []byte) {
	for i, c := range chunk {
		if c == '\n' {
			chunk[i] = '\r'
		}
	}
}

const (
	exitPrefix = 0x1D // Ctrl+]
	exitKey    = 'q'
)

// exitDetector finds Ctrl+] q, also when the two keys arrive in separate
// reads.
type exitDetector struct {
	armed bool
}

func (d *exitDetector) detect(chunk []byte) bool {
	for _, c := range chunk {
		if d.armed && c == exitKey {
			return true
		}
		d.armed = c == exitPrefix
	}
	return false
}
