package pipeline

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const spirvMagic = 0x07230203

// Bytecode reinterprets a little-endian SPIR-V blob as the words the driver
// consumes.
func Bytecode(blob []byte) ([]uint32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, errors.Newf("SPIR-V blob length %d is not a positive multiple of 4", len(blob))
	}

	byteCode := make([]uint32, len(blob)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad SPIR-V magic number %#08x", byteCode[0])
	}

	return byteCode, nil
}
