package wasmhost

import (
	"errors"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
)

var errMemoryAccess = errors.New("wasmhost: guest memory access out of bounds")

// readMemory copies length bytes at offset out of guest memory.
func readMemory(mem api.Memory, offset, length uint32) ([]byte, error) {
	if offset > math.MaxUint32-length {
		return nil, fmt.Errorf("%w: offset=%d length=%d overflows", errMemoryAccess, offset, length)
	}
	data, ok := mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("%w: read offset=%d length=%d memory_size=%d", errMemoryAccess, offset, length, mem.Size())
	}
	// Read returns a view; the guest may overwrite it
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func writeMemory(mem api.Memory, offset uint32, data []byte) error {
	if offset > math.MaxUint32-uint32(len(data)) {
		return fmt.Errorf("%w: offset=%d length=%d overflows", errMemoryAccess, offset, len(data))
	}
	if !mem.Write(offset, data) {
		return fmt.Errorf("%w: write offset=%d length=%d memory_size=%d", errMemoryAccess, offset, len(data), mem.Size())
	}
	return nil
}

func readUint32(mem api.Memory, offset uint32) (uint32, error) {
	v, ok := mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("%w: read u32 at %d", errMemoryAccess, offset)
	}
	return v, nil
}

func writeUint32(mem api.Memory, offset, v uint32) error {
	if !mem.WriteUint32Le(offset, v) {
		return fmt.Errorf("%w: write u32 at %d", errMemoryAccess, offset)
	}
	return nil
}
