package gpu

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// MipLevels returns floor(log2(max(width, height))) + 1.
func MipLevels(width, height int) int {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if maxDim < 1 {
		return 1
	}
	return bits.Len(uint(maxDim))
}

// MipBlit describes one step of mip chain generation: level SrcLevel of size
// SrcWidth x SrcHeight is blitted into level SrcLevel+1.
type MipBlit struct {
	SrcLevel            int
	SrcWidth, SrcHeight int
	DstWidth, DstHeight int
}

// MipChain lists the blits that fill levels 1..mipLevels-1 from level 0.
func MipChain(width, height, mipLevels int) []MipBlit {
	var chain []MipBlit

	mipWidth := width
	mipHeight := height
	for i := 1; i < mipLevels; i++ {
		nextMipWidth := mipWidth
		nextMipHeight := mipHeight

		if nextMipWidth > 1 {
			nextMipWidth /= 2
		}
		if nextMipHeight > 1 {
			nextMipHeight /= 2
		}

		chain = append(chain, MipBlit{
			SrcLevel:  i - 1,
			SrcWidth:  mipWidth,
			SrcHeight: mipHeight,
			DstWidth:  nextMipWidth,
			DstHeight: nextMipHeight,
		})

		mipWidth = nextMipWidth
		mipHeight = nextMipHeight
	}

	return chain
}

// GenerateMipmaps fills the mip chain of an image whose every level is in
// transfer-dst layout and whose level 0 holds the source pixels. Every level
// ends up shader-read-only. All blits share one command buffer; the barrier
// on level i-1 orders its last write before the blit that reads it.
func (u *Uploader) GenerateMipmaps(image core1_0.Image, format core1_0.Format, width, height, mipLevels int) error {
	if !u.device.SupportsLinearBlit(format) {
		return errors.Mark(
			errors.Newf("texture image format %s does not support linear blitting", format),
			ErrUnsupportedFormat,
		)
	}

	return u.commands.Record(func(buffer core1_0.CommandBuffer) error {
		return recordMipmaps(u.driver, buffer, image, width, height, mipLevels)
	})
}

func recordMipmaps(driver core1_0.CoreDeviceDriver, buffer core1_0.CommandBuffer, image core1_0.Image, width, height, mipLevels int) error {
	for _, blit := range MipChain(width, height, mipLevels) {
		err := recordTransition(driver, buffer, image,
			core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutTransferSrcOptimal,
			blit.SrcLevel, 1)
		if err != nil {
			return err
		}

		err = driver.CmdBlitImage(buffer, image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       blit.SrcLevel,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: blit.SrcWidth, Y: blit.SrcHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       blit.SrcLevel + 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: blit.DstWidth, Y: blit.DstHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		err = recordTransition(driver, buffer, image,
			core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal,
			blit.SrcLevel, 1)
		if err != nil {
			return err
		}
	}

	// The last level was only ever written.
	return recordTransition(driver, buffer, image,
		core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal,
		mipLevels-1, 1)
}
