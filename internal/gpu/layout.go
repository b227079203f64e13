package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Transition holds the access masks and pipeline stages of one image layout
// transition barrier.
type Transition struct {
	SrcAccess core1_0.AccessFlags
	DstAccess core1_0.AccessFlags
	SrcStage  core1_0.PipelineStageFlags
	DstStage  core1_0.PipelineStageFlags
}

// TransitionMasks returns the barrier parameters for the layout transitions
// the upload path performs.
func TransitionMasks(oldLayout, newLayout core1_0.ImageLayout) (Transition, error) {
	switch {
	case oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal:
		return Transition{
			SrcAccess: 0,
			DstAccess: core1_0.AccessTransferWrite,
			SrcStage:  core1_0.PipelineStageTopOfPipe,
			DstStage:  core1_0.PipelineStageTransfer,
		}, nil
	case oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal:
		return Transition{
			SrcAccess: core1_0.AccessTransferWrite,
			DstAccess: core1_0.AccessShaderRead,
			SrcStage:  core1_0.PipelineStageTransfer,
			DstStage:  core1_0.PipelineStageFragmentShader,
		}, nil
	case oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutTransferSrcOptimal:
		return Transition{
			SrcAccess: core1_0.AccessTransferWrite,
			DstAccess: core1_0.AccessTransferRead,
			SrcStage:  core1_0.PipelineStageTransfer,
			DstStage:  core1_0.PipelineStageTransfer,
		}, nil
	case oldLayout == core1_0.ImageLayoutTransferSrcOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal:
		return Transition{
			SrcAccess: core1_0.AccessTransferRead,
			DstAccess: core1_0.AccessShaderRead,
			SrcStage:  core1_0.PipelineStageTransfer,
			DstStage:  core1_0.PipelineStageFragmentShader,
		}, nil
	}

	return Transition{}, errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
}

// colorBarrier builds a barrier for a range of mip levels of a color image.
func colorBarrier(image core1_0.Image, oldLayout, newLayout core1_0.ImageLayout, baseMipLevel, levelCount int) (core1_0.ImageMemoryBarrier, Transition, error) {
	transition, err := TransitionMasks(oldLayout, newLayout)
	if err != nil {
		return core1_0.ImageMemoryBarrier{}, Transition{}, err
	}

	return core1_0.ImageMemoryBarrier{
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   baseMipLevel,
			LevelCount:     levelCount,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: transition.SrcAccess,
		DstAccessMask: transition.DstAccess,
	}, transition, nil
}

// recordTransition records a single layout transition barrier.
func recordTransition(driver core1_0.CoreDeviceDriver, buffer core1_0.CommandBuffer, image core1_0.Image, oldLayout, newLayout core1_0.ImageLayout, baseMipLevel, levelCount int) error {
	barrier, transition, err := colorBarrier(image, oldLayout, newLayout, baseMipLevel, levelCount)
	if err != nil {
		return err
	}

	return driver.CmdPipelineBarrier(buffer, transition.SrcStage, transition.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
}
