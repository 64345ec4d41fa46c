package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClockTimeGet_Realtime(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	const resultTimestamp = 0
	v.PushU32(clockIDRealtime)
	v.PushU64(0) // precision, unused
	v.PushU32(resultTimestamp)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "clock_time_get"))

	ts, ok := v.Memory.Uint64(resultTimestamp)
	require.True(t, ok)
	require.Greater(t, ts, uint64(0))
}

func TestClockTimeGet_InvalidID(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	v.PushU32(99)
	v.PushU64(0)
	v.PushU32(0)
	require.Equal(t, ErrnoInval, call(t, f, v, "clock_time_get"))
}
