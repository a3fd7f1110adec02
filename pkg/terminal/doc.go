// Package terminal bridges a local terminal to a remote ShellInABox
// session.
//
// # ARCHITECTURE
//
//	stdin  -> captureInput  -> [input queue]  -> dispatchInput -> Send
//	stdout <- emitOutput    <- [output queue] <- pollOutput    <- Poll
//
// Each stage is its own goroutine. Dispatch coalesces everything queued
// into one Send, so a paste costs few requests and the byte order is kept.
// Poll keeps exactly one long-poll request outstanding at all times.
//
// # USAGE
//
//	client := shellinabox.NewClient(url, shellinabox.DefaultOptions())
//	defer client.Close()
//
//	stdin, err := cancelreader.NewReader(os.Stdin)
//	if err != nil {
//	    return err
//	}
//	resize, stopResize := terminal.NotifyResize()
//	defer stopResize()
//
//	fd := int(os.Stdin.Fd())
//	bridge := terminal.NewBridge(client, terminal.Options{
//	    Input:   stdin,
//	    Output:  os.Stdout,
//	    RawMode: terminal.NewRawMode(fd),
//	    Resize:  resize,
//	    Size:    terminal.TerminalSize(fd),
//	})
//	if err := bridge.Start(ctx, shellinabox.DefaultDimensions()); err != nil {
//	    return err
//	}
//	return bridge.Wait()
//
// # LIFECYCLE
//
//	Idle -> Connecting -> Running -> Draining -> Terminated
//
// Start moves to Connecting, acquires raw mode and opens the session. If
// either step fails Start returns the error and the bridge goes straight
// to Terminated without starting a worker.
//
// The first worker error, Stop, or cancellation of the Start context moves
// the bridge to Draining. Every worker selects on the same termination
// channel and in-flight requests share a context that is cancelled at that
// point, so nothing waits out a poll. Once the workers have exited, raw
// mode is restored (once) and the bridge is Terminated. Wait can be called
// in any state and returns once Terminated is reached.
//
// # ERRORS
//
// Only the first error is kept. ShellInABox answers 400 or 500 when the
// remote shell has exited; Wait reports that as a clean end. Local stream
// and raw mode failures are *LocalIOError, protocol failures are the
// error types of package shellinabox.
//
// # WINDOW SIZE
//
// The size sent with every request lives behind a lock. On each
// notification from Options.Resize the watcher re-reads the size and
// queues an empty batch, so the server learns about it without waiting for
// the next keystroke. NotifyResize provides a SIGWINCH-backed source on
// unix.
package terminal
