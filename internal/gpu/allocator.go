package gpu

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"
)

// Buffer is a buffer handle and the memory bound to it. Both live and die
// together.
type Buffer struct {
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int

	driver core1_0.CoreDeviceDriver
}

func (b *Buffer) Destroy() {
	if b.Handle.Initialized() {
		b.driver.DestroyBuffer(b.Handle, nil)
		b.Handle = core1_0.Buffer{}
	}

	if b.Memory.Initialized() {
		b.driver.FreeMemory(b.Memory, nil)
		b.Memory = core1_0.DeviceMemory{}
	}
}

// Image is an image handle and the memory bound to it.
type Image struct {
	Handle core1_0.Image
	Memory core1_0.DeviceMemory
	Spec   ImageSpec

	driver core1_0.CoreDeviceDriver
}

func (i *Image) Destroy() {
	if i.Handle.Initialized() {
		i.driver.DestroyImage(i.Handle, nil)
		i.Handle = core1_0.Image{}
	}

	if i.Memory.Initialized() {
		i.driver.FreeMemory(i.Memory, nil)
		i.Memory = core1_0.DeviceMemory{}
	}
}

type ImageSpec struct {
	Width, Height    int
	MipLevels        int
	Samples          core1_0.SampleCountFlags
	Format           core1_0.Format
	Tiling           core1_0.ImageTiling
	Usage            core1_0.ImageUsageFlags
	MemoryProperties core1_0.MemoryPropertyFlags
}

// Allocator creates buffers and images with dedicated, immediately bound
// memory.
type Allocator struct {
	logger      *slog.Logger
	driver      core1_0.CoreDeviceDriver
	memoryTypes []core1_0.MemoryType
}

func NewAllocator(device *Device, logger *slog.Logger) *Allocator {
	return &Allocator{
		logger:      logger,
		driver:      device.Driver(),
		memoryTypes: device.MemoryTypes(),
	}
}

func (a *Allocator) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	buffer := &Buffer{Size: size, driver: a.driver}

	var err error
	var res common.VkResult
	buffer.Handle, res, err = a.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, Classify(res, err, "create buffer of %d bytes", size)
	}

	memRequirements := a.driver.GetBufferMemoryRequirements(buffer.Handle)
	buffer.Memory, err = a.allocate(memRequirements.Size, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	res, err = a.driver.BindBufferMemory(buffer.Handle, buffer.Memory, 0)
	if err != nil {
		buffer.Destroy()
		return nil, Classify(res, err, "bind buffer memory")
	}

	a.logger.Debug("created buffer", slog.Int("size", size), slog.Any("usage", usage))
	return buffer, nil
}

func (a *Allocator) CreateImage(spec ImageSpec) (*Image, error) {
	image := &Image{Spec: spec, driver: a.driver}

	var err error
	var res common.VkResult
	image.Handle, res, err = a.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   1,
		Format:        spec.Format,
		Tiling:        spec.Tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         spec.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       spec.Samples,
	})
	if err != nil {
		return nil, Classify(res, err, "create %dx%d image with format %s", spec.Width, spec.Height, spec.Format)
	}

	memReqs := a.driver.GetImageMemoryRequirements(image.Handle)
	image.Memory, err = a.allocate(memReqs.Size, memReqs.MemoryTypeBits, spec.MemoryProperties)
	if err != nil {
		image.Destroy()
		return nil, err
	}

	res, err = a.driver.BindImageMemory(image.Handle, image.Memory, 0)
	if err != nil {
		image.Destroy()
		return nil, Classify(res, err, "bind image memory")
	}

	a.logger.Debug("created image",
		slog.Int("width", spec.Width),
		slog.Int("height", spec.Height),
		slog.Int("mipLevels", spec.MipLevels),
		slog.Any("format", spec.Format))
	return image, nil
}

func (a *Allocator) allocate(size int, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryTypeIndex, err := FindMemoryType(a.memoryTypes, typeFilter, properties)
	if err != nil {
		return core1_0.DeviceMemory{}, err
	}

	memory, res, err := a.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return core1_0.DeviceMemory{}, Classify(res, err, "allocate %d bytes from memory type %d", size, memoryTypeIndex)
	}
	return memory, nil
}

func (a *Allocator) CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels int) (core1_0.ImageView, error) {
	imageView, res, err := a.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return core1_0.ImageView{}, Classify(res, err, "create image view")
	}
	return imageView, nil
}

func (a *Allocator) DestroyImageView(view core1_0.ImageView) {
	if view.Initialized() {
		a.driver.DestroyImageView(view, nil)
	}
}

// Mapping is a persistently mapped range of host-visible memory.
type Mapping struct {
	bytes []byte
}

// MapPersistent maps the whole buffer and keeps it mapped until the buffer
// is destroyed.
func (a *Allocator) MapPersistent(buffer *Buffer) (*Mapping, error) {
	memoryPtr, res, err := a.driver.MapMemory(buffer.Memory, 0, buffer.Size, 0)
	if err != nil {
		return nil, Classify(res, err, "map buffer memory")
	}

	return &Mapping{bytes: unsafe.Slice((*byte)(memoryPtr), buffer.Size)}, nil
}

// Write encodes data at offset in the mapped range.
func (m *Mapping) Write(offset int, data any) error {
	return encodeInto(m.bytes[offset:], data)
}

func (m *Mapping) Bytes() []byte {
	return m.bytes
}

func writeData(driver core1_0.CoreDeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)
	if bufferSize < 0 {
		return errors.Newf("cannot encode %T", data)
	}

	memoryPtr, res, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return Classify(res, err, "map staging memory")
	}
	defer driver.UnmapMemory(memory)

	return encodeInto(unsafe.Slice((*byte)(memoryPtr), bufferSize), data)
}

func encodeInto(dst []byte, data any) error {
	size := binary.Size(data)
	if size < 0 {
		return errors.Newf("cannot encode %T", data)
	}
	if size > len(dst) {
		return errors.Newf("%d bytes do not fit into a %d byte mapping", size, len(dst))
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "encode data")
	}

	copy(dst, buf.Bytes())
	return nil
}
