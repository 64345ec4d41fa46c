package wasi_snapshot_preview1

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFdPrestatGetAndDirName(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	v.PushU32(4) // fd 4 is "/cache"
	v.PushU32(0)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "fd_prestat_get"))

	nameLen, ok := v.Memory.Uint32(4)
	require.True(t, ok)
	require.Equal(t, uint32(len("/cache")), nameLen)

	v.PushU32(4)
	v.PushU32(64)
	v.PushU32(nameLen)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "fd_prestat_dir_name"))

	name, ok := v.Memory.Read(64, nameLen)
	require.True(t, ok)
	require.Equal(t, "/cache", string(name))
}

func TestFdPrestatGet_NotPreopen(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	v.PushU32(99)
	v.PushU32(0)
	require.Equal(t, ErrnoBadf, call(t, f, v, "fd_prestat_get"))
}

// pathOpenCreateWriteRead exercises the create->write->read round trip a
// build toolchain staging output files would perform: path_open with
// O_CREAT into the cache preopen, fd_write, fd_close, then path_open
// again without oflags and fd_read back the same bytes.
func TestPathOpenCreateWriteRead(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	pathStr := "out.txt"
	require.True(t, v.Memory.Write(0, []byte(pathStr)))

	const resultFD = 64
	v.PushU32(4) // dirfd: /cache
	v.PushU32(0) // dirflags
	v.PushU32(0) // path ptr
	v.PushU32(uint32(len(pathStr)))
	v.PushU32(oflagsCreat | oflagsTrunc)
	v.PushU64(0) // rights_base
	v.PushU64(0) // rights_inheriting
	v.PushU32(0) // fdflags
	v.PushU32(resultFD)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "path_open"))

	newFD, ok := v.Memory.Uint32(resultFD)
	require.True(t, ok)
	require.Equal(t, uint32(6), newFD)

	payload := []byte("hi\n")
	require.True(t, v.Memory.Write(100, payload))
	// iovec at offset 200: {buf: 100, buf_len: len(payload)}
	require.True(t, v.Memory.PutUint32(200, 100))
	require.True(t, v.Memory.PutUint32(204, uint32(len(payload))))

	v.PushU32(newFD)
	v.PushU32(200) // iovs
	v.PushU32(1)   // iovs_len
	v.PushU32(208) // result.nwritten
	require.Equal(t, ErrnoSuccess, call(t, f, v, "fd_write"))

	nwritten, ok := v.Memory.Uint32(208)
	require.True(t, ok)
	require.Equal(t, uint32(len(payload)), nwritten)

	v.PushU32(newFD)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "fd_close"))

	// Re-open without oflags and read it back.
	v.PushU32(4)
	v.PushU32(0)
	v.PushU32(0)
	v.PushU32(uint32(len(pathStr)))
	v.PushU32(0) // no oflags
	v.PushU64(0)
	v.PushU64(0)
	v.PushU32(0)
	v.PushU32(resultFD)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "path_open"))

	readFD, ok := v.Memory.Uint32(resultFD)
	require.True(t, ok)

	require.True(t, v.Memory.PutUint32(200, 300))
	require.True(t, v.Memory.PutUint32(204, 16))
	v.PushU32(readFD)
	v.PushU32(200)
	v.PushU32(1)
	v.PushU32(208)
	require.Equal(t, ErrnoSuccess, call(t, f, v, "fd_read"))

	nread, ok := v.Memory.Uint32(208)
	require.True(t, ok)
	require.Equal(t, uint32(len(payload)), nread)

	got, ok := v.Memory.Read(300, nread)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestPathCreateAndRemoveDirectory(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	name := "subdir"
	require.True(t, v.Memory.Write(0, []byte(name)))

	v.PushU32(4)
	v.PushU32(0)
	v.PushU32(uint32(len(name)))
	require.Equal(t, ErrnoSuccess, call(t, f, v, "path_create_directory"))

	cacheDir := f.fds[4].file.Name()
	fi, err := os.Stat(filepath.Join(cacheDir, name))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	v.PushU32(4)
	v.PushU32(0)
	v.PushU32(uint32(len(name)))
	require.Equal(t, ErrnoSuccess, call(t, f, v, "path_remove_directory"))

	_, err = os.Stat(filepath.Join(cacheDir, name))
	require.True(t, os.IsNotExist(err))
}

func TestFdClose_BadFD(t *testing.T) {
	f := newTestFunctions(t, nil, nil)
	v := testVM(t)

	v.PushU32(123)
	require.Equal(t, ErrnoBadf, call(t, f, v, "fd_close"))
}
