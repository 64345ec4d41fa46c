package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golang-wasm/zigvm/internal/vm"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

type nopHost struct{}

func (nopHost) Resolve(string) (vm.HostFunc, bool) { return nil, false }

// testVM returns a bare VM with a one-page memory and no functions,
// enough to exercise a host function directly: push its WASI
// parameters, call the resolved HostFunc, then pop its errno result.
func testVM(t *testing.T) *vm.VM {
	t.Helper()
	mod := &wasm.Module{Memory: &wasm.Limits{Min: 1}}
	return vm.New(mod, nil, nopHost{}, nil, "test")
}

// call resolves name against f, invokes it against v (whose stack must
// already hold the call's parameters, pushed in declaration order), and
// returns the errno it pushes.
func call(t *testing.T, f *Functions, v *vm.VM, name string) Errno {
	t.Helper()
	fn, ok := f.Resolve(name)
	require.True(t, ok, "no host binding for %q", name)
	require.NoError(t, fn(v))
	return v.PopU32()
}
