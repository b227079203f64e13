// Package renderer wires the GPU components into a running viewer.
package renderer

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/assets"
	"github.com/vkngwrapper/meshviewer/internal/descriptor"
	"github.com/vkngwrapper/meshviewer/internal/frame"
	"github.com/vkngwrapper/meshviewer/internal/gpu"
	"github.com/vkngwrapper/meshviewer/internal/pipeline"
	"github.com/vkngwrapper/meshviewer/internal/swapchain"
	"github.com/vkngwrapper/meshviewer/internal/window"
)

type Options struct {
	ApplicationName string
	Validation      bool
	// MaxFrames ends Run after that many frames; zero means no limit.
	MaxFrames uint64
}

// Renderer owns every GPU object. Objects are released in the reverse order
// they were created.
type Renderer struct {
	logger  *slog.Logger
	options Options
	window  window.Window

	arena     gpu.Arena
	device    *gpu.Device
	scheduler *frame.Scheduler
}

func New(win *window.SDLWindow, loaded *assets.Assets, options Options, logger *slog.Logger) (_ *Renderer, err error) {
	r := &Renderer{
		logger:  logger,
		options: options,
		window:  win,
	}
	defer func() {
		if err != nil {
			r.arena.Release()
		}
	}()

	globalDriver, err := win.LoadDriver()
	if err != nil {
		return nil, err
	}

	instance, err := gpu.NewInstance(globalDriver, gpu.InstanceOptions{
		ApplicationName:  options.ApplicationName,
		Validation:       options.Validation,
		WindowExtensions: win.InstanceExtensions(),
		CreateSurface:    win.CreateSurface,
	}, logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(instance.Destroy)

	device, err := gpu.NewDevice(instance, logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(device.Destroy)
	r.device = device
	driver := device.Driver()

	allocator := gpu.NewAllocator(device, logger)

	transferPool, err := device.CreateCommandPool()
	if err != nil {
		return nil, err
	}
	r.arena.Defer(func() { driver.DestroyCommandPool(transferPool, nil) })

	uploader := gpu.NewUploader(device, allocator, gpu.NewSingleTimeCommands(device, transferPool), logger)

	geometry, err := r.uploadMesh(uploader, loaded)
	if err != nil {
		return nil, err
	}

	texture, err := uploader.CreateTexture(loaded.Texture.Pixels, loaded.Texture.Width, loaded.Texture.Height)
	if err != nil {
		return nil, errors.Wrap(err, "upload texture")
	}
	r.arena.Defer(texture.Destroy)

	swapchains, err := swapchain.NewManager(device, allocator, win, logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(swapchains.Destroy)

	initial, err := swapchains.Query()
	if err != nil {
		return nil, err
	}

	renderPass, err := pipeline.CreateRenderPass(device, initial.Format.Format, swapchains.DepthFormat())
	if err != nil {
		return nil, err
	}
	r.arena.Defer(func() { driver.DestroyRenderPass(renderPass, nil) })

	vertexCode, err := loaded.Shaders.Stage("vertex")
	if err != nil {
		return nil, err
	}
	fragmentCode, err := loaded.Shaders.Stage("fragment")
	if err != nil {
		return nil, err
	}

	graphics, err := pipeline.Build(device, renderPass, vertexCode, fragmentCode, logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(graphics.Destroy)

	err = swapchains.Build(renderPass)
	if err != nil {
		return nil, err
	}

	descriptors, err := descriptor.New(device, allocator, graphics.SetLayout, texture,
		frame.MaxFramesInFlight, binary.Size(frame.UniformFrameData{}), logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(descriptors.Destroy)

	clock := &frame.Clock{}
	backend, err := frame.NewVulkanBackend(frame.BackendOptions{
		Device:      device,
		Swapchain:   swapchains,
		RenderPass:  renderPass,
		Pipeline:    graphics,
		Descriptors: descriptors,
		Geometry:    geometry,
		Clock:       clock,
	}, logger)
	if err != nil {
		return nil, err
	}
	r.arena.Defer(backend.Destroy)

	r.scheduler = frame.NewScheduler(backend, logger)
	clock.Start()

	logger.Info("renderer ready", slog.Int("resources", r.arena.Len()))
	return r, nil
}

func (r *Renderer) uploadMesh(uploader *gpu.Uploader, loaded *assets.Assets) (frame.Geometry, error) {
	vertexBuffer, err := uploader.UploadBuffer(loaded.Mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return frame.Geometry{}, errors.Wrap(err, "upload vertices")
	}
	r.arena.Defer(vertexBuffer.Destroy)

	indexBuffer, err := uploader.UploadBuffer(loaded.Mesh.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return frame.Geometry{}, errors.Wrap(err, "upload indices")
	}
	r.arena.Defer(indexBuffer.Destroy)

	return frame.Geometry{
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		IndexCount:   loaded.Mesh.IndexCount(),
	}, nil
}

// Run draws frames until the window closes, ctx is cancelled or the frame
// budget is spent, then waits for the device to go idle.
func (r *Renderer) Run(ctx context.Context) error {
	err := loop(ctx, r.window, r.scheduler, r.options.MaxFrames, r.logger)

	if waitErr := r.device.WaitIdle(); waitErr != nil && err == nil {
		err = waitErr
	}
	return err
}

// Close waits for outstanding GPU work and releases everything New created.
func (r *Renderer) Close() {
	if r.device != nil {
		if err := r.device.WaitIdle(); err != nil {
			r.logger.Error("wait for device idle before release", slog.Any("error", err))
		}
	}
	r.arena.Release()
}
