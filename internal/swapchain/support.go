package swapchain

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
)

// Support is what the surface offers the selected device right now.
type Support struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Config is the negotiated shape of a swapchain.
type Config struct {
	Format      khr_surface.SurfaceFormat
	PresentMode khr_surface.PresentMode
	Extent      core1_0.Extent2D
	ImageCount  int
}

// Negotiate picks the swapchain configuration for the given surface support
// and window drawable size.
func Negotiate(support Support, drawableWidth, drawableHeight int) (Config, error) {
	if support.Capabilities == nil {
		return Config{}, errors.New("surface capabilities are missing")
	}
	if len(support.Formats) == 0 {
		return Config{}, errors.Mark(errors.New("surface offers no formats"), gpu.ErrUnsupportedFormat)
	}

	return Config{
		Format:      ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, drawableWidth, drawableHeight),
		ImageCount:  ChooseImageCount(support.Capabilities),
	}, nil
}

func ChooseSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// implementation must support.
func ChoosePresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// ChooseExtent returns the surface's current extent unless the surface leaves
// it to the application, in which case the drawable size is clamped to the
// supported range.
func ChooseExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if !extentUndefined(capabilities.CurrentExtent) {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(drawableWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(drawableHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func ChooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// The undefined extent is 0xFFFFFFFF, which some bindings surface as -1.
func extentUndefined(extent core1_0.Extent2D) bool {
	return extent.Width < 0 || uint64(extent.Width) == math.MaxUint32
}

func clamp(value, lower, upper int) int {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}
