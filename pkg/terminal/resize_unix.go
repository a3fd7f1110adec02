//go:build unix

package terminal

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// NotifyResize returns a channel that fires when the controlling terminal
// changes size (SIGWINCH) and a function that stops delivery. Bursts of
// signals collapse into one pending notification.
func NotifyResize() (<-chan struct{}, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)

	notify := make(chan struct{}, 1)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-sigCh:
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return notify, func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(stop)
		})
	}
}
