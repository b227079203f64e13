package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"golang.org/x/exp/slog"
)

// waitTimeout bounds WaitEvents so a close request is noticed promptly.
const waitTimeout = 100

type Options struct {
	Title         string
	Width, Height int
}

// SDLWindow is a resizable SDL2 window with Vulkan support. All methods must
// be called from the thread that created it.
type SDLWindow struct {
	logger *slog.Logger
	window *sdl.Window

	closeRequested bool
	resizes        *resizeNotifier
}

func NewSDLWindow(options Options, logger *slog.Logger) (*SDLWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize SDL video")
	}

	window, err := sdl.CreateWindow(options.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(options.Width), int32(options.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	w := &SDLWindow{
		logger:  logger,
		window:  window,
		resizes: newResizeNotifier(),
	}

	width, height := w.DrawableSize()
	logger.Info("window created",
		slog.String("title", options.Title),
		slog.Int("drawableWidth", width),
		slog.Int("drawableHeight", height))
	return w, nil
}

// LoadDriver loads the Vulkan loader SDL found for this window.
func (w *SDLWindow) LoadDriver() (core1_0.GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load Vulkan driver")
	}
	return driver, nil
}

func (w *SDLWindow) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *SDLWindow) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, surfaceExtension, w.window)
}

func (w *SDLWindow) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *SDLWindow) PumpEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

func (w *SDLWindow) WaitEvents() {
	if event := sdl.WaitEventTimeout(waitTimeout); event != nil {
		w.handle(event)
	}
	w.PumpEvents()
}

func (w *SDLWindow) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closeRequested = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.closeRequested = true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
			width, height := w.DrawableSize()
			w.logger.Debug("window resized", slog.Int("width", width), slog.Int("height", height))
			w.resizes.notify(Size{Width: width, Height: height})
		}
	}
}

func (w *SDLWindow) CloseRequested() bool {
	return w.closeRequested
}

func (w *SDLWindow) Resizes() <-chan Size {
	return w.resizes.ch
}

func (w *SDLWindow) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
