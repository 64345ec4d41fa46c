package wasi_snapshot_preview1

import (
	"crypto/rand"

	"github.com/golang-wasm/zigvm/internal/vm"
)

// randomGet fills buf_len bytes at buf with cryptographically random
// data, backing Zig's std.crypto.random on this host.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#random_get
func (f *Functions) randomGet(v *vm.VM) error {
	bufLen := v.PopU32()
	buf := v.PopU32()

	b, ok := v.Memory.Read(buf, bufLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	if _, err := rand.Read(b); err != nil {
		v.PushU32(ErrnoIo)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}
