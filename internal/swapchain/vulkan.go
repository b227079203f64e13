package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
)

type vulkanDevice struct {
	device    *gpu.Device
	allocator *gpu.Allocator
	driver    core1_0.CoreDeviceDriver
	ext       khr_swapchain.ExtensionDriver

	surface     khr_surface.Surface
	depthFormat core1_0.Format
}

func newVulkanDevice(device *gpu.Device, allocator *gpu.Allocator) (*vulkanDevice, error) {
	depthFormat, err := device.FindDepthFormat()
	if err != nil {
		return nil, err
	}

	return &vulkanDevice{
		device:      device,
		allocator:   allocator,
		driver:      device.Driver(),
		ext:         khr_swapchain.CreateExtensionDriverFromCoreDriver(device.Driver()),
		surface:     device.Instance().Surface(),
		depthFormat: depthFormat,
	}, nil
}

func (d *vulkanDevice) querySupport() (Support, error) {
	capabilities, formats, presentModes, err := d.device.QuerySurfaceSupport()
	if err != nil {
		return Support{}, err
	}

	return Support{
		Capabilities: capabilities,
		Formats:      formats,
		PresentModes: presentModes,
	}, nil
}

func (d *vulkanDevice) waitIdle() error {
	return d.device.WaitIdle()
}

func (d *vulkanDevice) createChain(config Config, support Support, renderPass core1_0.RenderPass) (_ *chain, err error) {
	c := &chain{}
	defer func() {
		if err != nil {
			d.destroyChain(c)
		}
	}()

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices := d.device.QueueFamilies()
	if *indices.GraphicsFamily != *indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	swapchain, res, err := d.ext.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.surface,

		MinImageCount:    config.ImageCount,
		ImageFormat:      config.Format.Format,
		ImageColorSpace:  config.Format.ColorSpace,
		ImageExtent:      config.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    config.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, gpu.Classify(res, err, "create swapchain")
	}
	c.swapchain = swapchain

	c.images, res, err = d.ext.GetSwapchainImages(swapchain)
	if err != nil {
		return nil, gpu.Classify(res, err, "get swapchain images")
	}
	if len(c.images) == 0 {
		return nil, errors.New("swapchain has no images")
	}

	for _, image := range c.images {
		view, err := d.allocator.CreateImageView(image, config.Format.Format, core1_0.ImageAspectColor, 1)
		if err != nil {
			return nil, err
		}
		c.views = append(c.views, view)
	}

	samples := d.device.MSAASamples()
	c.color, err = d.allocator.CreateImage(gpu.ImageSpec{
		Width:            config.Extent.Width,
		Height:           config.Extent.Height,
		MipLevels:        1,
		Samples:          samples,
		Format:           config.Format.Format,
		Tiling:           core1_0.ImageTilingOptimal,
		Usage:            core1_0.ImageUsageTransientAttachment | core1_0.ImageUsageColorAttachment,
		MemoryProperties: core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create color target")
	}

	c.colorView, err = d.allocator.CreateImageView(c.color.Handle, config.Format.Format, core1_0.ImageAspectColor, 1)
	if err != nil {
		return nil, err
	}

	c.depth, err = d.allocator.CreateImage(gpu.ImageSpec{
		Width:            config.Extent.Width,
		Height:           config.Extent.Height,
		MipLevels:        1,
		Samples:          samples,
		Format:           d.depthFormat,
		Tiling:           core1_0.ImageTilingOptimal,
		Usage:            core1_0.ImageUsageDepthStencilAttachment,
		MemoryProperties: core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create depth target")
	}

	c.depthView, err = d.allocator.CreateImageView(c.depth.Handle, d.depthFormat, core1_0.ImageAspectDepth, 1)
	if err != nil {
		return nil, err
	}

	for _, imageView := range c.views {
		framebuffer, res, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				c.colorView,
				c.depthView,
				imageView,
			},
			Width:  config.Extent.Width,
			Height: config.Extent.Height,
		})
		if err != nil {
			return nil, gpu.Classify(res, err, "create framebuffer")
		}

		c.framebuffers = append(c.framebuffers, framebuffer)
	}

	return c, nil
}

func (d *vulkanDevice) destroyChain(c *chain) {
	for _, framebuffer := range c.framebuffers {
		d.driver.DestroyFramebuffer(framebuffer, nil)
	}
	c.framebuffers = nil

	d.allocator.DestroyImageView(c.depthView)
	c.depthView = core1_0.ImageView{}
	if c.depth != nil {
		c.depth.Destroy()
		c.depth = nil
	}

	d.allocator.DestroyImageView(c.colorView)
	c.colorView = core1_0.ImageView{}
	if c.color != nil {
		c.color.Destroy()
		c.color = nil
	}

	for _, imageView := range c.views {
		d.allocator.DestroyImageView(imageView)
	}
	c.views = nil
	c.images = nil

	if c.swapchain.Initialized() {
		d.ext.DestroySwapchain(c.swapchain, nil)
		c.swapchain = khr_swapchain.Swapchain{}
	}
}
