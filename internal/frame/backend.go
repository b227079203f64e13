package frame

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/descriptor"
	"github.com/vkngwrapper/meshviewer/internal/gpu"
	"github.com/vkngwrapper/meshviewer/internal/pipeline"
	"github.com/vkngwrapper/meshviewer/internal/swapchain"
)

// Slot is the set of objects owned by one frame in flight.
type Slot struct {
	ImageAvailable core1_0.Semaphore
	RenderFinished core1_0.Semaphore
	InFlight       core1_0.Fence
	CommandBuffer  core1_0.CommandBuffer
	DescriptorSet  core1_0.DescriptorSet
	Uniform        *gpu.Mapping
}

// Geometry is the uploaded mesh.
type Geometry struct {
	VertexBuffer *gpu.Buffer
	IndexBuffer  *gpu.Buffer
	IndexCount   int
}

type BackendOptions struct {
	Device      *gpu.Device
	Swapchain   *swapchain.Manager
	RenderPass  core1_0.RenderPass
	Pipeline    *pipeline.Pipeline
	Descriptors *descriptor.Manager
	Geometry    Geometry
	Clock       *Clock
}

// VulkanBackend records and submits frames against a real device.
type VulkanBackend struct {
	logger  *slog.Logger
	options BackendOptions
	driver  core1_0.CoreDeviceDriver

	commandPool core1_0.CommandPool
	slots       [MaxFramesInFlight]Slot
}

// FenceInfo creates frame fences signaled so the first wait on every slot
// returns immediately.
func FenceInfo() core1_0.FenceCreateInfo {
	return core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	}
}

func NewVulkanBackend(options BackendOptions, logger *slog.Logger) (_ *VulkanBackend, err error) {
	if options.Descriptors.Frames() != MaxFramesInFlight {
		return nil, errors.Newf("descriptor manager holds %d frames, expected %d", options.Descriptors.Frames(), MaxFramesInFlight)
	}

	b := &VulkanBackend{
		logger:  logger,
		options: options,
		driver:  options.Device.Driver(),
	}
	defer func() {
		if err != nil {
			b.Destroy()
		}
	}()

	b.commandPool, err = options.Device.CreateCommandPool()
	if err != nil {
		return nil, err
	}

	buffers, res, err := b.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        b.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: MaxFramesInFlight,
	})
	if err != nil {
		return nil, gpu.Classify(res, err, "allocate frame command buffers")
	}

	for i := range b.slots {
		slot := &b.slots[i]
		slot.CommandBuffer = buffers[i]
		slot.DescriptorSet = options.Descriptors.Set(i)
		slot.Uniform = options.Descriptors.Uniform(i)

		slot.ImageAvailable, res, err = b.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return nil, gpu.Classify(res, err, "create image-available semaphore")
		}

		slot.RenderFinished, res, err = b.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return nil, gpu.Classify(res, err, "create render-finished semaphore")
		}

		slot.InFlight, res, err = b.driver.CreateFence(nil, FenceInfo())
		if err != nil {
			return nil, gpu.Classify(res, err, "create frame fence")
		}
	}

	logger.Debug("frame slots created", slog.Int("slots", MaxFramesInFlight))
	return b, nil
}

func (b *VulkanBackend) WaitForSlot(slot int) error {
	res, err := b.driver.WaitForFences(true, common.NoTimeout, b.slots[slot].InFlight)
	return gpu.Classify(res, err, "wait for frame fence")
}

func (b *VulkanBackend) Acquire(slot int) (int, AcquireResult, error) {
	sc := b.options.Swapchain
	imageIndex, res, err := sc.Extension().AcquireNextImage(sc.Swapchain(), common.NoTimeout, &b.slots[slot].ImageAvailable, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, AcquireOutOfDate, nil
	} else if err != nil {
		return 0, AcquireOK, gpu.Classify(res, err, "acquire next image")
	}

	if res == khr_swapchain.VKSuboptimal {
		return imageIndex, AcquireSuboptimal, nil
	}
	return imageIndex, AcquireOK, nil
}

func (b *VulkanBackend) WriteUniforms(slot int) error {
	data := ComputeUniforms(b.options.Clock.ElapsedSeconds(), b.options.Swapchain.Extent())
	return b.slots[slot].Uniform.Write(0, &data)
}

func (b *VulkanBackend) Record(slot, imageIndex int) error {
	s := &b.slots[slot]
	extent := b.options.Swapchain.Extent()

	res, err := b.driver.ResetFences(s.InFlight)
	if err != nil {
		return gpu.Classify(res, err, "reset frame fence")
	}

	res, err = b.driver.ResetCommandBuffer(s.CommandBuffer, 0)
	if err != nil {
		return gpu.Classify(res, err, "reset frame command buffer")
	}

	res, err = b.driver.BeginCommandBuffer(s.CommandBuffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return gpu.Classify(res, err, "begin frame command buffer")
	}

	err = b.driver.CmdBeginRenderPass(s.CommandBuffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  b.options.RenderPass,
			Framebuffer: b.options.Swapchain.Framebuffer(imageIndex),
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	geometry := b.options.Geometry
	b.driver.CmdBindPipeline(s.CommandBuffer, core1_0.PipelineBindPointGraphics, b.options.Pipeline.Pipeline)
	b.driver.CmdSetViewport(s.CommandBuffer, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	b.driver.CmdSetScissor(s.CommandBuffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})
	b.driver.CmdBindVertexBuffers(s.CommandBuffer, 0, []core1_0.Buffer{geometry.VertexBuffer.Handle}, []int{0})
	b.driver.CmdBindIndexBuffer(s.CommandBuffer, geometry.IndexBuffer.Handle, 0, core1_0.IndexTypeUInt32)
	b.driver.CmdBindDescriptorSets(s.CommandBuffer, core1_0.PipelineBindPointGraphics, b.options.Pipeline.Layout, 0, []core1_0.DescriptorSet{
		s.DescriptorSet,
	}, nil)
	b.driver.CmdDrawIndexed(s.CommandBuffer, geometry.IndexCount, 1, 0, 0, 0)
	b.driver.CmdEndRenderPass(s.CommandBuffer)

	res, err = b.driver.EndCommandBuffer(s.CommandBuffer)
	return gpu.Classify(res, err, "end frame command buffer")
}

func (b *VulkanBackend) Submit(slot int) error {
	s := &b.slots[slot]
	res, err := b.driver.QueueSubmit(b.options.Device.GraphicsQueue(), &s.InFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{s.ImageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{s.CommandBuffer},
			SignalSemaphores: []core1_0.Semaphore{s.RenderFinished},
		},
	)
	return gpu.Classify(res, err, "submit frame")
}

func (b *VulkanBackend) Present(slot, imageIndex int) (bool, error) {
	sc := b.options.Swapchain
	res, err := sc.Extension().QueuePresent(b.options.Device.PresentQueue(), khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{b.slots[slot].RenderFinished},
		Swapchains:     []khr_swapchain.Swapchain{sc.Swapchain()},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return true, nil
	} else if err != nil {
		return false, gpu.Classify(res, err, "present frame")
	}
	return false, nil
}

func (b *VulkanBackend) Rebuild() error {
	b.options.Swapchain.Invalidate()
	return b.options.Swapchain.Rebuild()
}

// Destroy releases the slots. The device must be idle.
func (b *VulkanBackend) Destroy() {
	for i := range b.slots {
		slot := &b.slots[i]
		if slot.InFlight.Initialized() {
			b.driver.DestroyFence(slot.InFlight, nil)
			slot.InFlight = core1_0.Fence{}
		}
		if slot.RenderFinished.Initialized() {
			b.driver.DestroySemaphore(slot.RenderFinished, nil)
			slot.RenderFinished = core1_0.Semaphore{}
		}
		if slot.ImageAvailable.Initialized() {
			b.driver.DestroySemaphore(slot.ImageAvailable, nil)
			slot.ImageAvailable = core1_0.Semaphore{}
		}
		slot.CommandBuffer = core1_0.CommandBuffer{}
	}

	if b.commandPool.Initialized() {
		// frees the slot command buffers with it
		b.driver.DestroyCommandPool(b.commandPool, nil)
		b.commandPool = core1_0.CommandPool{}
	}
}
