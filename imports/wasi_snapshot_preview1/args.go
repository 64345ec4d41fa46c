package wasi_snapshot_preview1

import "github.com/golang-wasm/zigvm/internal/vm"

// argsGet writes the guest's argv as a buffer of null-terminated
// strings plus a parallel array of uint32 little-endian offsets into
// that buffer.
//
// # Parameters
//
//   - argv: offset to write argc uint32 little-endian offsets into argv_buf
//   - argv_buf: offset to write the null-terminated argument strings
//
// Result (Errno): ErrnoSuccess, or ErrnoFault if either region falls
// outside linear memory.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#args_get
func (f *Functions) argsGet(v *vm.VM) error {
	argvBuf := v.PopU32()
	argv := v.PopU32()
	v.PushU32(writeOffsetsAndValues(v.Memory, f.args, argv, argvBuf))
	return nil
}

// argsSizesGet writes the argument count and the total size of the
// null-terminated argument buffer argsGet would produce.
//
// # Parameters
//
//   - result.argc: offset to write the uint32 little-endian argument count
//   - result.argv_len: offset to write the uint32 little-endian buffer size
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#args_sizes_get
func (f *Functions) argsSizesGet(v *vm.VM) error {
	resultArgvLen := v.PopU32()
	resultArgc := v.PopU32()
	v.PushU32(writeSizes(v.Memory, f.args, resultArgc, resultArgvLen))
	return nil
}
