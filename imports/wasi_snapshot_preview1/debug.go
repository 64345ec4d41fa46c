package wasi_snapshot_preview1

import (
	"go.uber.org/zap"

	"github.com/golang-wasm/zigvm/internal/vm"
)

// debug and debug_slice are the two host-defined extensions original §1
// and §6 mention alongside the WASI surface proper: trace hooks the
// intended producer's toolchain calls directly, with no WASI errno
// result, logged at Debug level through internal/zlog the way
// wippyai/wasm-runtime forwards guest trace output through zap.

// debug(ptr, len i32) logs the UTF-8 string at linear memory [ptr, ptr+len)
// as a single debug line. Invalid UTF-8 is logged as raw bytes rather
// than rejected, since this is a trace aid, not a fault condition.
func (f *Functions) debug(v *vm.VM) error {
	length := v.PopU32()
	ptr := v.PopU32()

	b, ok := v.Memory.Read(ptr, length)
	if !ok {
		f.log.Debug("debug: out-of-bounds message", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return nil
	}
	f.log.Debug(string(b))
	return nil
}

// debugSlice(ptr, len, elemSize i32) logs a raw memory region that
// isn't a UTF-8 string (e.g. a table or array the toolchain wants to
// inspect mid-run) as one debug entry carrying ptr, elemSize and the
// region's bytes as a single binary field; the bytes are not split into
// elemSize-sized entries.
func (f *Functions) debugSlice(v *vm.VM) error {
	elemSize := v.PopU32()
	length := v.PopU32()
	ptr := v.PopU32()

	b, ok := v.Memory.Read(ptr, length)
	if !ok {
		f.log.Debug("debug_slice: out-of-bounds slice", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return nil
	}
	f.log.Debug("debug_slice",
		zap.Uint32("ptr", ptr),
		zap.Uint32("elem_size", elemSize),
		zap.Binary("data", b),
	)
	return nil
}
