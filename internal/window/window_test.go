package window

import "testing"

func TestResizeNotifierKeepsLatest(t *testing.T) {
	n := newResizeNotifier()

	n.notify(Size{Width: 640, Height: 480})
	n.notify(Size{Width: 0, Height: 0})
	n.notify(Size{Width: 1024, Height: 768})

	select {
	case size := <-n.ch:
		if size != (Size{Width: 1024, Height: 768}) {
			t.Errorf("expected the latest size, got %+v", size)
		}
	default:
		t.Fatal("expected a pending notification")
	}

	select {
	case size := <-n.ch:
		t.Errorf("expected a single coalesced notification, got another %+v", size)
	default:
	}
}

func TestResizeNotifierNeverBlocks(t *testing.T) {
	n := newResizeNotifier()
	for i := 0; i < 1000; i++ {
		n.notify(Size{Width: i, Height: i})
	}
	if size := <-n.ch; size.Width != 999 {
		t.Errorf("expected the last notification, got %+v", size)
	}
}
