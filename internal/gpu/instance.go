package gpu

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"golang.org/x/exp/slog"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// SurfaceFactory creates the presentation surface for a freshly created
// instance. The windowing layer supplies it.
type SurfaceFactory func(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)

type InstanceOptions struct {
	ApplicationName string
	Validation      bool

	// WindowExtensions are the instance extensions the window system needs.
	WindowExtensions []string
	CreateSurface    SurfaceFactory
}

// Instance owns the Vulkan instance, the optional debug messenger and the
// presentation surface.
type Instance struct {
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
}

func NewInstance(globalDriver core1_0.GlobalDriver, options InstanceOptions, logger *slog.Logger) (*Instance, error) {
	i := &Instance{
		logger:       logger,
		globalDriver: globalDriver,
	}

	err := i.createInstance(options)
	if err != nil {
		i.Destroy()
		return nil, err
	}

	if options.Validation {
		i.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
		i.debugMessenger, _, err = i.debugDriver.CreateDebugUtilsMessenger(nil, i.debugMessengerOptions())
		if err != nil {
			i.Destroy()
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	i.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
	i.surface, err = options.CreateSurface(i.instanceDriver.Instance(), i.surfaceExtension)
	if err != nil {
		i.Destroy()
		return nil, errors.Wrap(err, "create surface")
	}

	return i, nil
}

func (i *Instance) createInstance(options InstanceOptions) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    options.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := i.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	for _, ext := range options.WindowExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("createinstance: cannot initialize window: missing extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if options.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if options.Validation {
		layers, _, err := i.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("createinstance: cannot add validation layer %s: not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = i.debugMessengerOptions()
	}

	instance, res, err := i.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return Classify(res, err, "create instance")
	}

	i.instanceDriver, err = i.globalDriver.BuildInstanceDriver(instance)
	if err != nil {
		return errors.Wrap(err, "build instance driver")
	}

	return nil
}

func (i *Instance) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    i.logDebug,
	}
}

func (i *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}

	i.logger.Log(context.Background(), level, data.Message,
		slog.Any("type", msgType),
		slog.Any("severity", severity))
	return false
}

func (i *Instance) Driver() core1_0.CoreInstanceDriver {
	return i.instanceDriver
}

func (i *Instance) SurfaceExtension() khr_surface.ExtensionDriver {
	return i.surfaceExtension
}

func (i *Instance) Surface() khr_surface.Surface {
	return i.surface
}

// Destroy releases the surface, the debug messenger and the instance. It is
// safe on a partially constructed Instance.
func (i *Instance) Destroy() {
	if i.surface.Initialized() {
		i.surfaceExtension.DestroySurface(i.surface, nil)
		i.surface = khr_surface.Surface{}
	}

	if i.debugMessenger.Initialized() {
		i.debugDriver.DestroyDebugUtilsMessenger(i.debugMessenger, nil)
		i.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if i.instanceDriver != nil {
		i.instanceDriver.DestroyInstance(nil)
		i.instanceDriver = nil
	}
}
