package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFunctions(t *testing.T, argv, env []string) *Functions {
	t.Helper()
	libDir := t.TempDir()
	cacheDir := t.TempDir() + "/cache"
	f, err := New(argv, env, libDir, cacheDir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestArgsSizesGet(t *testing.T) {
	f := newTestFunctions(t, []string{"a", "bc"}, nil)
	v := testVM(t)

	const resultArgc, resultArgvLen = 0, 4
	v.PushU32(resultArgc)
	v.PushU32(resultArgvLen)
	errno := call(t, f, v, "args_sizes_get")
	require.Equal(t, ErrnoSuccess, errno)

	argc, ok := v.Memory.Uint32(resultArgc)
	require.True(t, ok)
	require.Equal(t, uint32(2), argc)

	argvLen, ok := v.Memory.Uint32(resultArgvLen)
	require.True(t, ok)
	require.Equal(t, uint32(len("a\x00")+len("bc\x00")), argvLen)
}

func TestArgsGet(t *testing.T) {
	f := newTestFunctions(t, []string{"a", "bc"}, nil)
	v := testVM(t)

	const argv, argvBuf = 0, 16
	v.PushU32(argv)
	v.PushU32(argvBuf)
	errno := call(t, f, v, "args_get")
	require.Equal(t, ErrnoSuccess, errno)

	off0, ok := v.Memory.Uint32(argv)
	require.True(t, ok)
	require.Equal(t, uint32(argvBuf), off0)

	off1, ok := v.Memory.Uint32(argv + 4)
	require.True(t, ok)
	require.Equal(t, uint32(argvBuf+2), off1) // "a\x00" is 2 bytes

	b, ok := v.Memory.Read(argvBuf, 5)
	require.True(t, ok)
	require.Equal(t, []byte("a\x00bc\x00"), b)
}

func TestArgsGet_Fault(t *testing.T) {
	f := newTestFunctions(t, []string{"a"}, nil)
	v := testVM(t)

	v.PushU32(v.Memory.Len()) // out of bounds
	v.PushU32(0)
	require.Equal(t, ErrnoFault, call(t, f, v, "args_get"))
}
