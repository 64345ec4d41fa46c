package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomGet(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	const buf, bufLen = 0, 16
	v.PushU32(buf)
	v.PushU32(bufLen)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "random_get"))

	b, ok := v.Memory.Read(buf, bufLen)
	require.True(t, ok)
	require.Len(t, b, bufLen)
}

func TestRandomGet_Fault(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	v.PushU32(v.Memory.Len() + 1)
	v.PushU32(4)
	require.Equal(t, ErrnoFault, call(t, f, v, "random_get"))
}
