package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// commandQueue is the slice of device functionality single-time commands
// need.
type commandQueue interface {
	allocate() (core1_0.CommandBuffer, error)
	begin(buffer core1_0.CommandBuffer) error
	end(buffer core1_0.CommandBuffer) error
	submitAndWait(buffer core1_0.CommandBuffer) error
	free(buffer core1_0.CommandBuffer)
}

// SingleTimeCommands records work into a throwaway primary command buffer,
// submits it to the graphics queue and blocks until the queue is idle. It is
// only meant for load-time transfers.
type SingleTimeCommands struct {
	queue commandQueue
}

func NewSingleTimeCommands(device *Device, pool core1_0.CommandPool) *SingleTimeCommands {
	return &SingleTimeCommands{
		queue: &deviceQueue{
			driver: device.Driver(),
			pool:   pool,
			queue:  device.GraphicsQueue(),
		},
	}
}

// Record runs fn against a fresh command buffer. The buffer is ended and
// freed on every exit path. It is submitted only when fn succeeds, and Record
// returns after the queue has drained.
func (s *SingleTimeCommands) Record(fn func(buffer core1_0.CommandBuffer) error) (err error) {
	buffer, err := s.queue.allocate()
	if err != nil {
		return err
	}
	defer s.queue.free(buffer)

	err = s.queue.begin(buffer)
	if err != nil {
		return err
	}

	recorded := false
	defer func() {
		if recorded {
			return
		}
		endErr := s.queue.end(buffer)
		if err == nil {
			err = endErr
		}
	}()

	err = fn(buffer)
	if err != nil {
		return errors.Wrap(err, "record single-time commands")
	}

	recorded = true
	err = s.queue.end(buffer)
	if err != nil {
		return err
	}

	return s.queue.submitAndWait(buffer)
}

type deviceQueue struct {
	driver core1_0.CoreDeviceDriver
	pool   core1_0.CommandPool
	queue  core1_0.Queue
}

func (q *deviceQueue) allocate() (core1_0.CommandBuffer, error) {
	buffers, res, err := q.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        q.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, Classify(res, err, "allocate single-time command buffer")
	}
	return buffers[0], nil
}

func (q *deviceQueue) begin(buffer core1_0.CommandBuffer) error {
	res, err := q.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return Classify(res, err, "begin single-time command buffer")
}

func (q *deviceQueue) end(buffer core1_0.CommandBuffer) error {
	res, err := q.driver.EndCommandBuffer(buffer)
	return Classify(res, err, "end single-time command buffer")
}

func (q *deviceQueue) submitAndWait(buffer core1_0.CommandBuffer) error {
	res, err := q.driver.QueueSubmit(q.queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return Classify(res, err, "submit single-time command buffer")
	}

	res, err = q.driver.QueueWaitIdle(q.queue)
	return Classify(res, err, "wait for graphics queue idle")
}

func (q *deviceQueue) free(buffer core1_0.CommandBuffer) {
	q.driver.FreeCommandBuffers(buffer)
}
