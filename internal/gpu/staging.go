package gpu

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"
)

// TextureFormat is the format of every uploaded texture: 8-bit RGBA, sRGB.
const TextureFormat = core1_0.FormatR8G8B8A8SRGB

// Uploader moves host data into device-local buffers and images through
// temporary staging buffers. Every upload blocks until the transfer is done.
type Uploader struct {
	logger    *slog.Logger
	device    *Device
	driver    core1_0.CoreDeviceDriver
	allocator *Allocator
	commands  *SingleTimeCommands
}

func NewUploader(device *Device, allocator *Allocator, commands *SingleTimeCommands, logger *slog.Logger) *Uploader {
	return &Uploader{
		logger:    logger,
		device:    device,
		driver:    device.Driver(),
		allocator: allocator,
		commands:  commands,
	}
}

func (u *Uploader) createStaging(data any) (*Buffer, error) {
	bufferSize := binary.Size(data)
	if bufferSize <= 0 {
		return nil, errors.Newf("cannot stage %T", data)
	}

	staging, err := u.allocator.CreateBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	err = writeData(u.driver, staging.Memory, 0, data)
	if err != nil {
		staging.Destroy()
		return nil, err
	}

	return staging, nil
}

// UploadBuffer creates a device-local buffer with the given usage (plus
// transfer-dst) holding data.
func (u *Uploader) UploadBuffer(data any, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	staging, err := u.createStaging(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	buffer, err := u.allocator.CreateBuffer(staging.Size, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	err = u.commands.Record(func(cmd core1_0.CommandBuffer) error {
		return u.driver.CmdCopyBuffer(cmd, staging.Handle, buffer.Handle,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      staging.Size,
			},
		)
	})
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	u.logger.Debug("uploaded buffer", slog.Int("size", staging.Size), slog.Any("usage", usage))
	return buffer, nil
}

// UploadImage creates a sampled, device-local RGBA8 image of the given size
// with a full mip chain and fills level 0 from pixels. When more than one
// level exists the image is left in transfer-dst layout for GenerateMipmaps;
// otherwise it is transitioned to shader-read-only.
func (u *Uploader) UploadImage(pixels []byte, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("invalid texture size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return nil, errors.Newf("texture payload is %d bytes, expected %d for %dx%d RGBA8", len(pixels), width*height*4, width, height)
	}

	mipLevels := MipLevels(width, height)
	if mipLevels > 1 && !u.device.SupportsLinearBlit(TextureFormat) {
		return nil, errors.Mark(
			errors.Newf("texture image format %s does not support linear blitting", TextureFormat),
			ErrUnsupportedFormat,
		)
	}

	staging, err := u.createStaging(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	image, err := u.allocator.CreateImage(ImageSpec{
		Width:            width,
		Height:           height,
		MipLevels:        mipLevels,
		Samples:          core1_0.Samples1,
		Format:           TextureFormat,
		Tiling:           core1_0.ImageTilingOptimal,
		Usage:            core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		MemoryProperties: core1_0.MemoryPropertyDeviceLocal,
	})
	if err != nil {
		return nil, err
	}

	err = u.commands.Record(func(cmd core1_0.CommandBuffer) error {
		err := recordTransition(u.driver, cmd, image.Handle,
			core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal,
			0, mipLevels)
		if err != nil {
			return err
		}

		err = u.driver.CmdCopyBufferToImage(cmd, staging.Handle, image.Handle, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,

				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		)
		if err != nil {
			return err
		}

		if mipLevels > 1 {
			return nil
		}
		return recordTransition(u.driver, cmd, image.Handle,
			core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal,
			0, 1)
	})
	if err != nil {
		image.Destroy()
		return nil, err
	}

	return image, nil
}
