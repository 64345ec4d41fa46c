package wasi_snapshot_preview1

import "github.com/golang-wasm/zigvm/internal/vm"

// environGet writes the guest's environment the same way argsGet writes
// argv: a buffer of null-terminated "key=value" strings plus a parallel
// array of uint32 little-endian offsets into it.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#environ_get
func (f *Functions) environGet(v *vm.VM) error {
	environBuf := v.PopU32()
	environ := v.PopU32()
	v.PushU32(writeOffsetsAndValues(v.Memory, f.environ, environ, environBuf))
	return nil
}

// environSizesGet writes the environment variable count and the total
// size of the null-terminated buffer environGet would produce.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#environ_sizes_get
func (f *Functions) environSizesGet(v *vm.VM) error {
	resultEnvironvLen := v.PopU32()
	resultEnvironc := v.PopU32()
	v.PushU32(writeSizes(v.Memory, f.environ, resultEnvironc, resultEnvironvLen))
	return nil
}
