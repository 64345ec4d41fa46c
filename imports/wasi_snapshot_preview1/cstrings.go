package wasi_snapshot_preview1

import (
	"encoding/binary"

	"github.com/golang-wasm/zigvm/internal/cstring"
	"github.com/golang-wasm/zigvm/internal/vm"
)

// writeOffsetsAndValues writes, for each of strs's null-terminated
// values, its uint32 little-endian offset into the array at
// offsetsOffset and the value itself into the buffer at valuesOffset:
// the layout args_get and environ_get both use.
func writeOffsetsAndValues(mem *vm.Memory, strs *cstring.NullTerminatedStrings, offsetsOffset, valuesOffset uint32) Errno {
	pos := valuesOffset
	for _, s := range strs.NullTerminatedValues {
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], pos)
		if !mem.Write(offsetsOffset, off[:]) {
			return ErrnoFault
		}
		offsetsOffset += 4
		if !mem.Write(pos, s) {
			return ErrnoFault
		}
		pos += uint32(len(s))
	}
	return ErrnoSuccess
}

// writeSizes writes the count of strs's values and the total size of
// their packed null-terminated buffer.
func writeSizes(mem *vm.Memory, strs *cstring.NullTerminatedStrings, countOffset, bufLenOffset uint32) Errno {
	if !mem.PutUint32(countOffset, uint32(len(strs.NullTerminatedValues))) {
		return ErrnoFault
	}
	if !mem.PutUint32(bufLenOffset, strs.TotalBufSize) {
		return ErrnoFault
	}
	return ErrnoSuccess
}
