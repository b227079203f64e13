package gpu

import (
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// DeviceExtensions lists the device extensions every candidate must offer.
var DeviceExtensions = []string{khr_swapchain.ExtensionName}

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Unique returns the distinct family indices, graphics first.
func (i *QueueFamilyIndices) Unique() []int {
	families := []int{*i.GraphicsFamily}
	if *i.PresentFamily != *i.GraphicsFamily {
		families = append(families, *i.PresentFamily)
	}
	return families
}

type Features struct {
	SamplerAnisotropy bool
	GeometryShader    bool
}

// PhysicalDeviceCandidate is a capability snapshot of one physical device,
// taken during selection only.
type PhysicalDeviceCandidate struct {
	Handle            core1_0.PhysicalDevice
	Name              string
	Discrete          bool
	PipelineCacheUUID uuid.UUID

	MaxImageDimension2D int
	ColorSampleCounts   core1_0.SampleCountFlags
	DepthSampleCounts   core1_0.SampleCountFlags

	QueueFamilies  QueueFamilyIndices
	Extensions     map[string]struct{}
	SurfaceFormats []khr_surface.SurfaceFormat
	PresentModes   []khr_surface.PresentMode
	Features       Features
}

func (c *PhysicalDeviceCandidate) SupportsExtensions(names []string) bool {
	for _, name := range names {
		if _, ok := c.Extensions[name]; !ok {
			return false
		}
	}
	return true
}

// Suitable reports whether the device can run the renderer at all.
func (c *PhysicalDeviceCandidate) Suitable() bool {
	if !c.QueueFamilies.IsComplete() {
		return false
	}
	if !c.SupportsExtensions(DeviceExtensions) {
		return false
	}
	if len(c.SurfaceFormats) == 0 || len(c.PresentModes) == 0 {
		return false
	}
	return c.Features.SamplerAnisotropy
}

// Score is an informational ranking. Selection does not use it: the first
// suitable device wins.
func (c *PhysicalDeviceCandidate) Score() int {
	if !c.Features.GeometryShader {
		return 0
	}

	score := c.MaxImageDimension2D
	if c.Discrete {
		score += 1000
	}
	return score
}

// SelectFirstSuitable returns the index of the first suitable candidate in
// enumeration order.
func SelectFirstSuitable(candidates []*PhysicalDeviceCandidate) (int, error) {
	for i, candidate := range candidates {
		if candidate.Suitable() {
			return i, nil
		}
	}
	return -1, ErrNoSuitableDevice
}

// MaxUsableSampleCount picks the highest sample count supported by both the
// color and the depth attachments.
func MaxUsableSampleCount(colorCounts, depthCounts core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	counts := colorCounts & depthCounts

	for _, samples := range []core1_0.SampleCountFlags{
		core1_0.Samples64,
		core1_0.Samples32,
		core1_0.Samples16,
		core1_0.Samples8,
		core1_0.Samples4,
		core1_0.Samples2,
	} {
		if counts&samples != 0 {
			return samples
		}
	}
	return core1_0.Samples1
}
