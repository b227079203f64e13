package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"golang.org/x/exp/slog"
)

// Device is the selected physical device, its logical device and queues.
type Device struct {
	logger   *slog.Logger
	instance *Instance

	physicalDevice core1_0.PhysicalDevice
	driver         core1_0.CoreDeviceDriver
	queueFamilies  QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	msaaSamples          core1_0.SampleCountFlags
	maxSamplerAnisotropy float32
	memoryTypes          []core1_0.MemoryType
}

// NewDevice selects the first suitable physical device and opens a logical
// device on it.
func NewDevice(instance *Instance, logger *slog.Logger) (*Device, error) {
	physicalDevices, _, err := instance.Driver().EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	var candidates []*PhysicalDeviceCandidate
	for _, physicalDevice := range physicalDevices {
		candidate, err := QueryCandidate(instance, physicalDevice)
		if err != nil {
			logger.Warn("could not pull physical device capabilities", slog.Any("error", err))
			continue
		}

		logger.Info("physical device candidate",
			slog.String("name", candidate.Name),
			slog.Bool("suitable", candidate.Suitable()),
			slog.Int("score", candidate.Score()))
		candidates = append(candidates, candidate)
	}

	selected, err := SelectFirstSuitable(candidates)
	if err != nil {
		return nil, err
	}
	candidate := candidates[selected]

	d := &Device{
		logger:         logger,
		instance:       instance,
		physicalDevice: candidate.Handle,
		queueFamilies:  candidate.QueueFamilies,
		msaaSamples:    MaxUsableSampleCount(candidate.ColorSampleCounts, candidate.DepthSampleCounts),
	}

	logger.Info("selected physical device",
		slog.String("name", candidate.Name),
		slog.String("pipelineCacheUUID", candidate.PipelineCacheUUID.String()),
		slog.Int("graphicsFamily", *candidate.QueueFamilies.GraphicsFamily),
		slog.Int("presentFamily", *candidate.QueueFamilies.PresentFamily),
		slog.Any("msaaSamples", d.msaaSamples))
	logger.Debug("selected physical device features",
		slog.Bool("samplerAnisotropy", candidate.Features.SamplerAnisotropy),
		slog.Bool("geometryShader", candidate.Features.GeometryShader),
		slog.Bool("discrete", candidate.Discrete),
		slog.Int("maxImageDimension2D", candidate.MaxImageDimension2D))

	properties, err := instance.Driver().GetPhysicalDeviceProperties(d.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "get physical device properties")
	}
	d.maxSamplerAnisotropy = properties.Limits.MaxSamplerAnisotropy

	memProperties := instance.Driver().GetPhysicalDeviceMemoryProperties(d.physicalDevice)
	d.memoryTypes = memProperties.MemoryTypes

	err = d.createLogicalDevice(candidate)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// QueryCandidate takes a fresh capability snapshot of a physical device.
func QueryCandidate(instance *Instance, device core1_0.PhysicalDevice) (*PhysicalDeviceCandidate, error) {
	driver := instance.Driver()
	candidate := &PhysicalDeviceCandidate{
		Handle:     device,
		Extensions: make(map[string]struct{}),
	}

	properties, err := driver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return nil, errors.Wrap(err, "get physical device properties")
	}
	candidate.applyProperties(properties)

	features := driver.GetPhysicalDeviceFeatures(device)
	candidate.Features = Features{
		SamplerAnisotropy: features.SamplerAnisotropy,
		GeometryShader:    features.GeometryShader,
	}

	candidate.QueueFamilies, err = findQueueFamilies(instance, device)
	if err != nil {
		return nil, err
	}

	extensions, _, err := driver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	for name := range extensions {
		candidate.Extensions[name] = struct{}{}
	}

	if candidate.SupportsExtensions(DeviceExtensions) {
		candidate.SurfaceFormats, _, err = instance.SurfaceExtension().GetPhysicalDeviceSurfaceFormats(instance.Surface(), device)
		if err != nil {
			return nil, errors.Wrap(err, "get surface formats")
		}

		candidate.PresentModes, _, err = instance.SurfaceExtension().GetPhysicalDeviceSurfacePresentModes(instance.Surface(), device)
		if err != nil {
			return nil, errors.Wrap(err, "get surface present modes")
		}
	}

	return candidate, nil
}

func (c *PhysicalDeviceCandidate) applyProperties(properties *core1_0.PhysicalDeviceProperties) {
	c.Name = properties.DriverName
	c.Discrete = properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU
	c.PipelineCacheUUID = properties.PipelineCacheUUID
	if properties.Limits != nil {
		c.MaxImageDimension2D = properties.Limits.MaxImageDimension2D
		c.ColorSampleCounts = properties.Limits.FramebufferColorSampleCounts
		c.DepthSampleCounts = properties.Limits.FramebufferDepthSampleCounts
	}
}

func findQueueFamilies(instance *Instance, device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := instance.Driver().GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, _, err := instance.SurfaceExtension().GetPhysicalDeviceSurfaceSupport(instance.Surface(), device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrap(err, "get surface support")
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

func (d *Device) createLogicalDevice(candidate *PhysicalDeviceCandidate) error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range d.queueFamilies.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, DeviceExtensions...)

	// Required on portability implementations such as MoltenVK.
	if _, supported := candidate.Extensions[khr_portability_subset.ExtensionName]; supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, res, err := d.instance.Driver().CreateDevice(d.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return Classify(res, err, "create logical device")
	}

	d.driver, err = d.instance.Driver().BuildDeviceDriver(device)
	if err != nil {
		return errors.Wrap(err, "build device driver")
	}

	d.graphicsQueue = d.driver.GetQueue(*d.queueFamilies.GraphicsFamily, 0)
	d.presentQueue = d.driver.GetQueue(*d.queueFamilies.PresentFamily, 0)
	return nil
}

func (d *Device) Driver() core1_0.CoreDeviceDriver {
	return d.driver
}

func (d *Device) Instance() *Instance {
	return d.instance
}

func (d *Device) PhysicalDevice() core1_0.PhysicalDevice {
	return d.physicalDevice
}

func (d *Device) QueueFamilies() QueueFamilyIndices {
	return d.queueFamilies
}

func (d *Device) GraphicsQueue() core1_0.Queue {
	return d.graphicsQueue
}

func (d *Device) PresentQueue() core1_0.Queue {
	return d.presentQueue
}

func (d *Device) MSAASamples() core1_0.SampleCountFlags {
	return d.msaaSamples
}

func (d *Device) MaxSamplerAnisotropy() float32 {
	return d.maxSamplerAnisotropy
}

func (d *Device) MemoryTypes() []core1_0.MemoryType {
	return d.memoryTypes
}

// QuerySurfaceSupport reads the current surface capabilities, formats and
// present modes for the selected device.
func (d *Device) QuerySurfaceSupport() (*khr_surface.SurfaceCapabilities, []khr_surface.SurfaceFormat, []khr_surface.PresentMode, error) {
	ext := d.instance.SurfaceExtension()
	surface := d.instance.Surface()

	capabilities, _, err := ext.GetPhysicalDeviceSurfaceCapabilities(surface, d.physicalDevice)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "get surface capabilities")
	}

	formats, _, err := ext.GetPhysicalDeviceSurfaceFormats(surface, d.physicalDevice)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "get surface formats")
	}

	presentModes, _, err := ext.GetPhysicalDeviceSurfacePresentModes(surface, d.physicalDevice)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "get surface present modes")
	}

	return capabilities, formats, presentModes, nil
}

func (d *Device) FindSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.instance.Driver().GetPhysicalDeviceFormatProperties(d.physicalDevice, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Mark(
		errors.Newf("failed to find supported format for tiling %s, featureset %s", tiling, features),
		ErrUnsupportedFormat,
	)
}

func (d *Device) FindDepthFormat() (core1_0.Format, error) {
	return d.FindSupportedFormat([]core1_0.Format{core1_0.FormatD32SignedFloat, core1_0.FormatD32SignedFloatS8UnsignedInt, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}

// SupportsLinearBlit reports whether optimal-tiling images of format can be
// sampled with linear filtering, which mipmap blits require.
func (d *Device) SupportsLinearBlit(format core1_0.Format) bool {
	properties := d.instance.Driver().GetPhysicalDeviceFormatProperties(d.physicalDevice, format)
	return (properties.OptimalTilingFeatures & core1_0.FormatFeatureSampledImageFilterLinear) != 0
}

// CreateCommandPool creates a pool on the graphics family whose buffers may
// be reset individually.
func (d *Device) CreateCommandPool() (core1_0.CommandPool, error) {
	pool, res, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *d.queueFamilies.GraphicsFamily,
	})
	if err != nil {
		return core1_0.CommandPool{}, Classify(res, err, "create command pool")
	}
	return pool, nil
}

func (d *Device) WaitIdle() error {
	res, err := d.driver.DeviceWaitIdle()
	return Classify(res, err, "wait for device idle")
}

func (d *Device) Destroy() {
	if d.driver != nil {
		d.driver.DestroyDevice(nil)
		d.driver = nil
	}
}
