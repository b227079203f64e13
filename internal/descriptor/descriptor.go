// Package descriptor owns the per-frame uniform buffers and the descriptor
// sets that bind them, together with the texture, to the pipeline.
package descriptor

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
	"github.com/vkngwrapper/meshviewer/internal/pipeline"
)

// Manager holds one uniform buffer and one descriptor set per frame in
// flight. Sets are written once at creation and never updated afterwards.
type Manager struct {
	driver core1_0.CoreDeviceDriver

	pool     core1_0.DescriptorPool
	sets     []core1_0.DescriptorSet
	uniforms []*gpu.Buffer
	mappings []*gpu.Mapping
}

// New creates frames uniform buffers of uniformSize bytes, a pool sized for
// exactly frames sets, and the sets themselves.
func New(device *gpu.Device, allocator *gpu.Allocator, layout core1_0.DescriptorSetLayout, texture *gpu.Texture, frames, uniformSize int, logger *slog.Logger) (_ *Manager, err error) {
	if frames <= 0 {
		return nil, errors.Newf("invalid frame count %d", frames)
	}

	m := &Manager{driver: device.Driver()}
	defer func() {
		if err != nil {
			m.Destroy()
		}
	}()

	for i := 0; i < frames; i++ {
		buffer, err := allocator.CreateBuffer(uniformSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return nil, errors.Wrapf(err, "create uniform buffer %d", i)
		}
		m.uniforms = append(m.uniforms, buffer)

		mapping, err := allocator.MapPersistent(buffer)
		if err != nil {
			return nil, err
		}
		m.mappings = append(m.mappings, mapping)
	}

	var res common.VkResult
	m.pool, res, err = m.driver.CreateDescriptorPool(nil, PoolInfo(frames))
	if err != nil {
		return nil, gpu.Classify(res, err, "create descriptor pool")
	}

	var allocLayouts []core1_0.DescriptorSetLayout
	for i := 0; i < frames; i++ {
		allocLayouts = append(allocLayouts, layout)
	}

	m.sets, res, err = m.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: m.pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return nil, gpu.Classify(res, err, "allocate descriptor sets")
	}

	for i, set := range m.sets {
		err = m.driver.UpdateDescriptorSets(Writes(set, m.uniforms[i].Handle, uniformSize, texture.View, texture.Sampler), nil)
		if err != nil {
			return nil, errors.Wrapf(err, "write descriptor set %d", i)
		}
	}

	logger.Debug("descriptor sets written", slog.Int("frames", frames), slog.Int("uniformSize", uniformSize))
	return m, nil
}

// PoolInfo sizes a pool for frames sets of one uniform buffer and one
// combined image sampler each.
func PoolInfo(frames int) core1_0.DescriptorPoolCreateInfo {
	return core1_0.DescriptorPoolCreateInfo{
		MaxSets: frames,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: frames,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: frames,
			},
		},
	}
}

func Writes(set core1_0.DescriptorSet, uniform core1_0.Buffer, uniformSize int, view core1_0.ImageView, sampler core1_0.Sampler) []core1_0.WriteDescriptorSet {
	return []core1_0.WriteDescriptorSet{
		{
			DstSet:          set,
			DstBinding:      pipeline.UniformBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeUniformBuffer,

			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: uniform,
					Offset: 0,
					Range:  uniformSize,
				},
			},
		},
		{
			DstSet:          set,
			DstBinding:      pipeline.SamplerBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   view,
					Sampler:     sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}
}

func (m *Manager) Frames() int {
	return len(m.sets)
}

func (m *Manager) Set(frame int) core1_0.DescriptorSet {
	return m.sets[frame]
}

// Uniform is the persistently mapped memory of the frame's uniform buffer.
func (m *Manager) Uniform(frame int) *gpu.Mapping {
	return m.mappings[frame]
}

// Destroy frees the pool, which releases the sets, then the uniform buffers.
func (m *Manager) Destroy() {
	if m.pool.Initialized() {
		m.driver.DestroyDescriptorPool(m.pool, nil)
		m.pool = core1_0.DescriptorPool{}
	}
	m.sets = nil

	for _, buffer := range m.uniforms {
		buffer.Destroy()
	}
	m.uniforms = nil
	m.mappings = nil
}
