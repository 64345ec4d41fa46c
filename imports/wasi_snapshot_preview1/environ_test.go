package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvironGet(t *testing.T) {
	f := newTestFunctions(t, nil, []string{"a=b", "b=cd"})
	v := testVM(t)

	const environ, environBuf = 0, 16
	v.PushU32(environ)
	v.PushU32(environBuf)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "environ_get"))

	b, ok := v.Memory.Read(environBuf, len("a=b\x00b=cd\x00"))
	require.True(t, ok)
	require.Equal(t, []byte("a=b\x00b=cd\x00"), b)
}

func TestEnvironSizesGet(t *testing.T) {
	f := newTestFunctions(t, nil, []string{"a=b", "b=cd"})
	v := testVM(t)

	const resultEnvironc, resultEnvironvLen = 0, 4
	v.PushU32(resultEnvironc)
	v.PushU32(resultEnvironvLen)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "environ_sizes_get"))

	count, ok := v.Memory.Uint32(resultEnvironc)
	require.True(t, ok)
	require.Equal(t, uint32(2), count)

	size, ok := v.Memory.Uint32(resultEnvironvLen)
	require.True(t, ok)
	require.Equal(t, uint32(len("a=b\x00")+len("b=cd\x00")), size)
}
