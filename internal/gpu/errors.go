package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Error kinds. Every load-time failure returned by this package is marked
// with one of these so callers can classify it with errors.Is.
var (
	ErrNoSuitableDevice  = errors.New("failed to find a suitable GPU")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrPipelineCreation  = errors.New("pipeline creation failed")
	ErrDeviceLost        = errors.New("device lost")
)

// Classify wraps a driver failure and marks it with the error kind implied by
// the returned VkResult.
func Classify(res common.VkResult, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	wrapped := errors.Wrapf(err, format, args...)
	switch res {
	case core1_0.VKErrorOutOfHostMemory, core1_0.VKErrorOutOfDeviceMemory:
		return errors.Mark(wrapped, ErrOutOfMemory)
	case core1_0.VKErrorFormatNotSupported:
		return errors.Mark(wrapped, ErrUnsupportedFormat)
	case core1_0.VKErrorDeviceLost:
		return errors.Mark(wrapped, ErrDeviceLost)
	}
	return wrapped
}
