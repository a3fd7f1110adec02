//go:build !unix

package terminal

// NotifyResize returns a channel that never fires: there is no window
// change signal on this platform.
func NotifyResize() (<-chan struct{}, func()) {
	return make(chan struct{}), func() {}
}
