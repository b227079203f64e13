// Package window is the windowing collaborator of the renderer: drawable
// size, event pumping, close requests and resize notifications.
package window

// Size is a drawable size in pixels.
type Size struct {
	Width, Height int
}

// Window is what the renderer needs from a window system.
type Window interface {
	DrawableSize() (width, height int)
	// PumpEvents drains pending events without blocking.
	PumpEvents()
	// WaitEvents blocks until at least one event arrives or a short timeout
	// elapses, then drains the queue.
	WaitEvents()
	CloseRequested() bool
	// Resizes delivers drawable size changes. Notifications are coalesced;
	// only the latest pending size is kept.
	Resizes() <-chan Size
	Destroy()
}

// resizeNotifier keeps at most one undelivered notification, replacing it
// with the newest size.
type resizeNotifier struct {
	ch chan Size
}

func newResizeNotifier() *resizeNotifier {
	return &resizeNotifier{ch: make(chan Size, 1)}
}

func (n *resizeNotifier) notify(size Size) {
	for {
		select {
		case n.ch <- size:
			return
		default:
		}

		select {
		case <-n.ch:
		default:
		}
	}
}
