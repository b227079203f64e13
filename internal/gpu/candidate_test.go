package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func intPtr(i int) *int {
	return &i
}

func suitableCandidate(name string) *PhysicalDeviceCandidate {
	return &PhysicalDeviceCandidate{
		Name:              name,
		PipelineCacheUUID: uuid.New(),
		QueueFamilies: QueueFamilyIndices{
			GraphicsFamily: intPtr(0),
			PresentFamily:  intPtr(0),
		},
		Extensions: map[string]struct{}{
			khr_swapchain.ExtensionName: {},
		},
		SurfaceFormats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
		Features: Features{
			SamplerAnisotropy: true,
		},
	}
}

func TestSuitable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PhysicalDeviceCandidate)
		want   bool
	}{
		{name: "complete", mutate: func(c *PhysicalDeviceCandidate) {}, want: true},
		{name: "no graphics family", mutate: func(c *PhysicalDeviceCandidate) { c.QueueFamilies.GraphicsFamily = nil }},
		{name: "no present family", mutate: func(c *PhysicalDeviceCandidate) { c.QueueFamilies.PresentFamily = nil }},
		{name: "separate families", mutate: func(c *PhysicalDeviceCandidate) { c.QueueFamilies.PresentFamily = intPtr(1) }, want: true},
		{name: "no swapchain extension", mutate: func(c *PhysicalDeviceCandidate) { c.Extensions = map[string]struct{}{} }},
		{name: "no surface formats", mutate: func(c *PhysicalDeviceCandidate) { c.SurfaceFormats = nil }},
		{name: "no present modes", mutate: func(c *PhysicalDeviceCandidate) { c.PresentModes = nil }},
		{name: "no anisotropy", mutate: func(c *PhysicalDeviceCandidate) { c.Features.SamplerAnisotropy = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := suitableCandidate(tt.name)
			tt.mutate(c)
			if got := c.Suitable(); got != tt.want {
				t.Errorf("Suitable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectFirstSuitableIgnoresScore(t *testing.T) {
	integrated := suitableCandidate("integrated")
	integrated.MaxImageDimension2D = 8192
	integrated.Features.GeometryShader = true

	discrete := suitableCandidate("discrete")
	discrete.Discrete = true
	discrete.MaxImageDimension2D = 32768
	discrete.Features.GeometryShader = true

	unsuitable := suitableCandidate("software")
	unsuitable.Features.SamplerAnisotropy = false

	candidates := []*PhysicalDeviceCandidate{unsuitable, integrated, discrete}
	if discrete.Score() <= integrated.Score() {
		t.Fatalf("test setup: discrete score %d should beat integrated %d", discrete.Score(), integrated.Score())
	}

	got, err := SelectFirstSuitable(candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[got] != integrated {
		t.Errorf("expected the first suitable device, got %s", candidates[got].Name)
	}
}

func TestSelectFirstSuitableNone(t *testing.T) {
	c := suitableCandidate("broken")
	c.PresentModes = nil

	_, err := SelectFirstSuitable([]*PhysicalDeviceCandidate{c})
	if !errors.Is(err, ErrNoSuitableDevice) {
		t.Errorf("expected ErrNoSuitableDevice, got %v", err)
	}

	_, err = SelectFirstSuitable(nil)
	if !errors.Is(err, ErrNoSuitableDevice) {
		t.Errorf("expected ErrNoSuitableDevice for no devices, got %v", err)
	}
}

func TestScore(t *testing.T) {
	c := suitableCandidate("gpu")
	c.MaxImageDimension2D = 16384
	if c.Score() != 0 {
		t.Errorf("devices without geometry shaders score 0, got %d", c.Score())
	}

	c.Features.GeometryShader = true
	if c.Score() != 16384 {
		t.Errorf("expected 16384, got %d", c.Score())
	}

	c.Discrete = true
	if c.Score() != 17384 {
		t.Errorf("expected 17384, got %d", c.Score())
	}
}

func TestUniqueQueueFamilies(t *testing.T) {
	shared := QueueFamilyIndices{GraphicsFamily: intPtr(2), PresentFamily: intPtr(2)}
	if got := shared.Unique(); len(got) != 1 || got[0] != 2 {
		t.Errorf("expected [2], got %v", got)
	}

	split := QueueFamilyIndices{GraphicsFamily: intPtr(0), PresentFamily: intPtr(1)}
	if got := split.Unique(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("expected [0 1], got %v", got)
	}
}

func TestMaxUsableSampleCount(t *testing.T) {
	tests := []struct {
		color, depth core1_0.SampleCountFlags
		want         core1_0.SampleCountFlags
	}{
		{core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4 | core1_0.Samples8, core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4, core1_0.Samples4},
		{core1_0.Samples1 | core1_0.Samples64, core1_0.Samples1 | core1_0.Samples64, core1_0.Samples64},
		{core1_0.Samples1 | core1_0.Samples8, core1_0.Samples1 | core1_0.Samples2, core1_0.Samples1},
		{core1_0.Samples1, core1_0.Samples1, core1_0.Samples1},
	}

	for _, tt := range tests {
		if got := MaxUsableSampleCount(tt.color, tt.depth); got != tt.want {
			t.Errorf("MaxUsableSampleCount(%v, %v) = %v, want %v", tt.color, tt.depth, got, tt.want)
		}
	}
}

func TestApplyProperties(t *testing.T) {
	cacheUUID := uuid.New()
	candidate := &PhysicalDeviceCandidate{}
	candidate.applyProperties(&core1_0.PhysicalDeviceProperties{
		DriverName:        "Test GPU",
		DriverType:        core1_0.PhysicalDeviceTypeDiscreteGPU,
		PipelineCacheUUID: cacheUUID,
		Limits: &core1_0.PhysicalDeviceLimits{
			MaxImageDimension2D:          16384,
			FramebufferColorSampleCounts: core1_0.Samples1 | core1_0.Samples4,
			FramebufferDepthSampleCounts: core1_0.Samples1 | core1_0.Samples2,
		},
	})

	if candidate.Name != "Test GPU" {
		t.Errorf("unexpected name %q", candidate.Name)
	}
	if !candidate.Discrete {
		t.Error("expected a discrete device")
	}
	if candidate.PipelineCacheUUID != cacheUUID {
		t.Errorf("pipeline cache uuid = %s, want %s", candidate.PipelineCacheUUID, cacheUUID)
	}
	if candidate.MaxImageDimension2D != 16384 {
		t.Errorf("max image dimension = %d, want 16384", candidate.MaxImageDimension2D)
	}
	if got := MaxUsableSampleCount(candidate.ColorSampleCounts, candidate.DepthSampleCounts); got != core1_0.Samples2 {
		t.Errorf("usable sample count = %v, want %v", got, core1_0.Samples2)
	}

	integrated := &PhysicalDeviceCandidate{}
	integrated.applyProperties(&core1_0.PhysicalDeviceProperties{
		DriverName: "Integrated",
		DriverType: core1_0.PhysicalDeviceTypeIntegratedGPU,
	})
	if integrated.Discrete {
		t.Error("integrated device reported as discrete")
	}
	if integrated.MaxImageDimension2D != 0 {
		t.Errorf("expected no limits without a limits block, got %d", integrated.MaxImageDimension2D)
	}
}
