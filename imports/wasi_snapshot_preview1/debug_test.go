package wasi_snapshot_preview1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedFunctions(t *testing.T) (*Functions, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	libDir := t.TempDir()
	cacheDir := t.TempDir() + "/cache"
	f, err := New(nil, nil, libDir, cacheDir, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f, logs
}

func TestDebug_LogsMessage(t *testing.T) {
	f, logs := newObservedFunctions(t)
	v := testVM(t)

	msg := []byte("hello from the guest")
	require.True(t, v.Memory.Write(0, msg))

	v.PushU32(0)
	v.PushU32(uint32(len(msg)))
	fn, ok := f.Resolve("debug")
	require.True(t, ok)
	require.NoError(t, fn(v))

	require.Equal(t, 1, logs.Len())
	require.Equal(t, string(msg), logs.All()[0].Message)
}

func TestDebugSlice_LogsOneEntry(t *testing.T) {
	f, logs := newObservedFunctions(t)
	v := testVM(t)

	data := []byte{1, 2, 3, 4}
	require.True(t, v.Memory.Write(0, data))

	v.PushU32(0)
	v.PushU32(uint32(len(data)))
	v.PushU32(4)
	fn, ok := f.Resolve("debug_slice")
	require.True(t, ok)
	require.NoError(t, fn(v))

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "debug_slice", logs.All()[0].Message)
}
