package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golang-wasm/zigvm/internal/sys"
)

func TestProcExit_Panics(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)
	v.PushU32(42)

	fn, ok := f.Resolve("proc_exit")
	require.True(t, ok)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		exitErr, ok := r.(*sys.ExitError)
		require.True(t, ok)
		require.Equal(t, uint32(42), exitErr.ExitCode())
	}()
	_ = fn(v)
	t.Fatal("proc_exit did not panic")
}
