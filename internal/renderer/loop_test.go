package renderer

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/swapchain"
	"github.com/vkngwrapper/meshviewer/internal/window"
)

type fakeWindow struct {
	pumps     int
	closeAt   int
	resizes   chan window.Size
	resizeAt  map[int]window.Size
	destroyed bool
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{resizes: make(chan window.Size, 1), resizeAt: map[int]window.Size{}}
}

func (w *fakeWindow) DrawableSize() (int, int) { return 800, 600 }

func (w *fakeWindow) PumpEvents() {
	w.pumps++
	if size, ok := w.resizeAt[w.pumps]; ok {
		w.resizes <- size
	}
}

func (w *fakeWindow) WaitEvents() {}

func (w *fakeWindow) CloseRequested() bool {
	return w.closeAt > 0 && w.pumps >= w.closeAt
}

func (w *fakeWindow) Resizes() <-chan window.Size { return w.resizes }

func (w *fakeWindow) Destroy() { w.destroyed = true }

type fakeDrawer struct {
	frames        uint64
	resizes       int
	resizedFrames []uint64
	failAt        uint64
	err           error
	cancel        func()
	cancelAt      uint64
}

func (d *fakeDrawer) DrawFrame() error {
	if d.err != nil && d.frames == d.failAt {
		return d.err
	}
	d.frames++
	if d.cancel != nil && d.frames == d.cancelAt {
		d.cancel()
	}
	return nil
}

func (d *fakeDrawer) NotifyResize() {
	d.resizes++
	d.resizedFrames = append(d.resizedFrames, d.frames)
}

func (d *fakeDrawer) FrameCounter() uint64 { return d.frames }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoopStopsAtFrameBudget(t *testing.T) {
	win := newFakeWindow()
	frames := &fakeDrawer{}

	err := loop(context.Background(), win, frames, 5, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames.frames != 5 {
		t.Errorf("expected 5 frames, got %d", frames.frames)
	}
}

func TestLoopStopsOnClose(t *testing.T) {
	win := newFakeWindow()
	win.closeAt = 4
	frames := &fakeDrawer{}

	err := loop(context.Background(), win, frames, 0, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames.frames != 3 {
		t.Errorf("expected 3 frames before the close was seen, got %d", frames.frames)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := &fakeDrawer{cancel: cancel, cancelAt: 2}

	err := loop(ctx, newFakeWindow(), frames, 0, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames.frames != 2 {
		t.Errorf("expected 2 frames, got %d", frames.frames)
	}
}

func TestLoopForwardsResizes(t *testing.T) {
	win := newFakeWindow()
	win.resizeAt[3] = window.Size{Width: 1024, Height: 768}
	frames := &fakeDrawer{}

	err := loop(context.Background(), win, frames, 5, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames.resizes != 1 {
		t.Fatalf("expected one resize notification, got %d", frames.resizes)
	}
	if frames.resizedFrames[0] != 2 {
		t.Errorf("resize should be forwarded before the third frame, got after frame %d", frames.resizedFrames[0])
	}
}

func TestLoopErrors(t *testing.T) {
	closed := &fakeDrawer{err: errors.Wrap(swapchain.ErrWindowClosed, "rebuild"), failAt: 1}
	if err := loop(context.Background(), newFakeWindow(), closed, 0, discardLogger()); err != nil {
		t.Errorf("closing while minimized should be a clean exit, got %v", err)
	}

	lost := errors.New("device lost")
	failing := &fakeDrawer{err: lost, failAt: 2}
	err := loop(context.Background(), newFakeWindow(), failing, 0, discardLogger())
	if !errors.Is(err, lost) {
		t.Errorf("expected the frame error, got %v", err)
	}
}
