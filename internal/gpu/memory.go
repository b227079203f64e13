package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// FindMemoryType returns the lowest memory type index allowed by typeFilter
// whose property flags contain every requested flag.
func FindMemoryType(memoryTypes []core1_0.MemoryType, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Mark(
		errors.Newf("could not find a memory type matching type request %x with flags %s", typeFilter, properties),
		ErrOutOfMemory,
	)
}
