package swapchain

import (
	"io"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
)

func capabilities(current core1_0.Extent2D) *khr_surface.SurfaceCapabilities {
	return &khr_surface.SurfaceCapabilities{
		MinImageCount:  2,
		MaxImageCount:  8,
		CurrentExtent:  current,
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}
}

func defaultSupport(current core1_0.Extent2D) Support {
	return Support{
		Capabilities: capabilities(current),
		Formats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox},
	}
}

func TestNegotiateDrawableMatchesSurface(t *testing.T) {
	config, err := Negotiate(defaultSupport(core1_0.Extent2D{Width: 800, Height: 600}), 800, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Extent.Width != 800 || config.Extent.Height != 600 {
		t.Errorf("expected 800x600, got %dx%d", config.Extent.Width, config.Extent.Height)
	}
	if config.Format.Format != core1_0.FormatB8G8R8A8SRGB {
		t.Errorf("expected the sRGB format to be preferred, got %s", config.Format.Format)
	}
	if config.PresentMode != khr_surface.PresentModeMailbox {
		t.Errorf("expected mailbox, got %v", config.PresentMode)
	}
	if config.ImageCount != 3 {
		t.Errorf("expected min+1 = 3 images, got %d", config.ImageCount)
	}
}

func TestNegotiateUndefinedExtent(t *testing.T) {
	undefined := []core1_0.Extent2D{
		{Width: -1, Height: -1},
		{Width: math.MaxUint32, Height: math.MaxUint32},
	}

	for _, current := range undefined {
		config, err := Negotiate(defaultSupport(current), 1024, 768)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Extent.Width != 1024 || config.Extent.Height != 768 {
			t.Errorf("current %v: expected 1024x768, got %dx%d", current, config.Extent.Width, config.Extent.Height)
		}
	}

	config, err := Negotiate(defaultSupport(core1_0.Extent2D{Width: -1, Height: -1}), 10000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Extent.Width != 4096 || config.Extent.Height != 1 {
		t.Errorf("expected the drawable to be clamped to 4096x1, got %dx%d", config.Extent.Width, config.Extent.Height)
	}
}

func TestNegotiateIsIdempotent(t *testing.T) {
	support := defaultSupport(core1_0.Extent2D{Width: 640, Height: 480})
	first, err := Negotiate(support, 640, 480)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Negotiate(support, 640, 480)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("negotiation is not stable: %+v vs %+v", first, second)
	}
}

func TestNegotiateFallbacks(t *testing.T) {
	support := Support{
		Capabilities: capabilities(core1_0.Extent2D{Width: 320, Height: 200}),
		Formats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeImmediate},
	}

	config, err := Negotiate(support, 320, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Format.Format != core1_0.FormatR8G8B8A8UnsignedNormalized {
		t.Errorf("expected the first format, got %s", config.Format.Format)
	}
	if config.PresentMode != khr_surface.PresentModeFIFO {
		t.Errorf("expected FIFO, got %v", config.PresentMode)
	}

	support.Formats = nil
	_, err = Negotiate(support, 320, 200)
	if !errors.Is(err, gpu.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max int
		want     int
	}{
		{2, 8, 3},
		{2, 2, 2},
		{3, 0, 4},
		{1, 0, 2},
	}

	for _, tt := range tests {
		got := ChooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max})
		if got != tt.want {
			t.Errorf("min %d max %d: expected %d, got %d", tt.min, tt.max, tt.want, got)
		}
	}
}

type fakeWindow struct {
	sizes  [][2]int
	waits  int
	closed bool
}

func (w *fakeWindow) DrawableSize() (int, int) {
	size := w.sizes[0]
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
	return size[0], size[1]
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}

func (w *fakeWindow) CloseRequested() bool {
	return w.closed
}

type fakeSurfaceDevice struct {
	support Support
	calls   []string
	live    int
}

func (d *fakeSurfaceDevice) querySupport() (Support, error) {
	return d.support, nil
}

func (d *fakeSurfaceDevice) waitIdle() error {
	d.calls = append(d.calls, "waitIdle")
	return nil
}

func (d *fakeSurfaceDevice) createChain(config Config, support Support, renderPass core1_0.RenderPass) (*chain, error) {
	d.calls = append(d.calls, "create")
	d.live++
	return &chain{framebuffers: make([]core1_0.Framebuffer, config.ImageCount)}, nil
}

func (d *fakeSurfaceDevice) destroyChain(c *chain) {
	d.calls = append(d.calls, "destroy")
	d.live--
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerLifecycle(t *testing.T) {
	device := &fakeSurfaceDevice{support: defaultSupport(core1_0.Extent2D{Width: 800, Height: 600})}
	window := &fakeWindow{sizes: [][2]int{{800, 600}}}
	manager := newManager(device, window, discardLogger())

	if manager.State() != Absent {
		t.Fatalf("expected Absent, got %s", manager.State())
	}

	err := manager.Build(core1_0.RenderPass{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.State() != Active || manager.ImageCount() != 3 {
		t.Fatalf("expected Active with 3 images, got %s with %d", manager.State(), manager.ImageCount())
	}

	if manager.Build(core1_0.RenderPass{}) == nil {
		t.Error("building an active swapchain should fail")
	}

	config := manager.Config()
	imageCount := manager.ImageCount()

	manager.Invalidate()
	if manager.State() != Invalid {
		t.Fatalf("expected Invalid, got %s", manager.State())
	}

	err = manager.Rebuild()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.State() != Active {
		t.Fatalf("expected Active after rebuild, got %s", manager.State())
	}
	if manager.Config() != config {
		t.Errorf("rebuild on an unchanged surface changed the config: %+v, want %+v", manager.Config(), config)
	}
	if manager.ImageCount() != imageCount {
		t.Errorf("rebuild on an unchanged surface changed the image count: %d, want %d", manager.ImageCount(), imageCount)
	}

	manager.Destroy()
	if manager.State() != Absent || device.live != 0 {
		t.Fatalf("expected Absent with nothing live, got %s with %d", manager.State(), device.live)
	}

	want := []string{"create", "waitIdle", "destroy", "create", "destroy"}
	if len(device.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, device.calls)
	}
	for i := range want {
		if device.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, device.calls)
		}
	}
}

func TestRebuildWaitsForDrawable(t *testing.T) {
	device := &fakeSurfaceDevice{support: defaultSupport(core1_0.Extent2D{Width: -1, Height: -1})}
	window := &fakeWindow{sizes: [][2]int{{800, 600}}}
	manager := newManager(device, window, discardLogger())

	err := manager.Build(core1_0.RenderPass{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	window.sizes = [][2]int{{0, 0}, {0, 0}, {0, 0}, {1024, 768}}
	manager.Invalidate()
	err = manager.Rebuild()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if window.waits != 3 {
		t.Errorf("expected 3 event waits while minimized, got %d", window.waits)
	}
	if device.live != 1 {
		t.Errorf("expected exactly one live chain, got %d", device.live)
	}
	if manager.Extent().Width != 1024 || manager.Extent().Height != 768 {
		t.Errorf("expected 1024x768 after restore, got %dx%d", manager.Extent().Width, manager.Extent().Height)
	}
}

func TestRebuildStopsWhenClosed(t *testing.T) {
	device := &fakeSurfaceDevice{support: defaultSupport(core1_0.Extent2D{Width: 800, Height: 600})}
	window := &fakeWindow{sizes: [][2]int{{800, 600}}}
	manager := newManager(device, window, discardLogger())

	err := manager.Build(core1_0.RenderPass{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	window.sizes = [][2]int{{0, 0}}
	window.closed = true
	err = manager.Rebuild()
	if !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
	if device.live != 1 {
		t.Errorf("nothing should be torn down before the drawable returns, %d live", device.live)
	}
}

func TestRebuildRejectsFormatChange(t *testing.T) {
	device := &fakeSurfaceDevice{support: defaultSupport(core1_0.Extent2D{Width: 800, Height: 600})}
	window := &fakeWindow{sizes: [][2]int{{800, 600}}}
	manager := newManager(device, window, discardLogger())

	err := manager.Build(core1_0.RenderPass{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	device.support.Formats = []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	err = manager.Rebuild()
	if !errors.Is(err, gpu.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
