package wasi_snapshot_preview1

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/golang-wasm/zigvm/internal/cstring"
	"github.com/golang-wasm/zigvm/internal/vm"
)

// ModuleName is the single host module every recognized import is drawn
// from (original §6). debug/debug_slice are host-defined extensions of
// the same closed set, not part of the WASI spec proper.
const ModuleName = "wasi_snapshot_preview1"

// preopen is one entry of the six-row table original §6 fixes at guest
// fd numbers 0-5: either a stream (stdio) or a directory opened once at
// startup and shared read-only with the guest for the life of the run.
type preopen struct {
	name string
	file *os.File
	dir  bool
}

// Functions is the vm.Host implementation binding the 25 WASI preview-1
// names plus debug/debug_slice to the process's filesystem and a small
// preopen table, per original §6's "Preopened file descriptors". It
// owns every open *os.File the guest can reach and is the only part of
// this interpreter that talks to the real OS.
type Functions struct {
	fds    map[uint32]*preopen
	nextFD uint32

	args    *cstring.NullTerminatedStrings
	environ *cstring.NullTerminatedStrings

	log *zap.Logger

	dirCursor map[uint32][]fs.DirEntry // fd_readdir's per-fd listing, re-read when cookie is 0
}

// New builds the host adaptor. argv is the guest's full argv (original
// §6: "beginning at argv[3] and including the wasm file path itself");
// env is a list of "key=value" strings. zigCacheDir is created if
// absent, matching the source's preopen setup.
func New(argv, env []string, zigLibDir, zigCacheDir string, log *zap.Logger) (*Functions, error) {
	if log == nil {
		log = zap.NewNop()
	}
	args, err := cstring.NewNullTerminatedStrings(1<<32-1, "arg", argv...)
	if err != nil {
		return nil, err
	}
	environ, err := cstring.NewNullTerminatedStrings(1<<32-1, "environ", env...)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(zigCacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("wasi: create zig cache dir: %w", err)
	}

	cwd, err := os.Open(".")
	if err != nil {
		return nil, fmt.Errorf("wasi: preopen \".\": %w", err)
	}
	cache, err := os.Open(zigCacheDir)
	if err != nil {
		return nil, fmt.Errorf("wasi: preopen %q: %w", zigCacheDir, err)
	}
	lib, err := os.Open(zigLibDir)
	if err != nil {
		return nil, fmt.Errorf("wasi: preopen %q: %w", zigLibDir, err)
	}

	f := &Functions{
		log:       log,
		args:      args,
		environ:   environ,
		nextFD:    6,
		dirCursor: map[uint32][]fs.DirEntry{},
		fds: map[uint32]*preopen{
			0: {name: "stdin", file: os.Stdin},
			1: {name: "stdout", file: os.Stdout},
			2: {name: "stderr", file: os.Stderr},
			3: {name: ".", file: cwd, dir: true},
			4: {name: "/cache", file: cache, dir: true},
			5: {name: "/lib", file: lib, dir: true},
		},
	}
	return f, nil
}

// Close releases every file descriptor still in the table: the
// directory preopens and any fd the guest opened via path_open and has
// not closed with fd_close. The stdio streams are left open.
func (f *Functions) Close() {
	for _, p := range f.fds {
		if p.file != os.Stdin && p.file != os.Stdout && p.file != os.Stderr {
			_ = p.file.Close()
		}
	}
}

// Resolve implements vm.Host.
func (f *Functions) Resolve(name string) (vm.HostFunc, bool) {
	fn, ok := hostFuncs[name]
	if !ok {
		return nil, false
	}
	return func(v *vm.VM) error { return fn(f, v) }, true
}

// hostFunc is a method on Functions bound against a *vm.VM; every
// entry pops its WASI parameters off the stack in reverse declaration
// order (the decoder's call lowering leaves them there exactly as a
// module-defined callee would see its own parameters). Each WASI entry
// pushes one i32 errno result; debug and debug_slice push nothing, and
// proc_exit never returns.
type hostFunc func(f *Functions, v *vm.VM) error

var hostFuncs = map[string]hostFunc{
	"args_get":              (*Functions).argsGet,
	"args_sizes_get":        (*Functions).argsSizesGet,
	"environ_get":           (*Functions).environGet,
	"environ_sizes_get":     (*Functions).environSizesGet,
	"clock_time_get":        (*Functions).clockTimeGet,
	"random_get":            (*Functions).randomGet,
	"proc_exit":             (*Functions).procExit,
	"fd_close":              (*Functions).fdClose,
	"fd_fdstat_get":         (*Functions).fdFdstatGet,
	"fd_filestat_get":       (*Functions).fdFilestatGet,
	"fd_filestat_set_size":  (*Functions).fdFilestatSetSize,
	"fd_filestat_set_times": (*Functions).fdFilestatSetTimes,
	"fd_pread":              (*Functions).fdPread,
	"fd_prestat_dir_name":   (*Functions).fdPrestatDirName,
	"fd_prestat_get":        (*Functions).fdPrestatGet,
	"fd_pwrite":             (*Functions).fdPwrite,
	"fd_read":               (*Functions).fdRead,
	"fd_readdir":            (*Functions).fdReaddir,
	"fd_write":              (*Functions).fdWrite,
	"path_create_directory": (*Functions).pathCreateDirectory,
	"path_filestat_get":     (*Functions).pathFilestatGet,
	"path_open":             (*Functions).pathOpen,
	"path_remove_directory": (*Functions).pathRemoveDirectory,
	"path_rename":           (*Functions).pathRename,
	"path_unlink_file":      (*Functions).pathUnlinkFile,
	"debug":                 (*Functions).debug,
	"debug_slice":           (*Functions).debugSlice,
}

// resolvePath joins a preopen's real host directory with a guest-
// relative path. The guest is the intended producer's own trusted
// toolchain (original §1 Non-goals), so this does not sandbox against
// ".." escaping the preopen the way a hostile-input-safe implementation
// would have to.
func (f *Functions) resolvePath(dirFD uint32, rel string) (string, Errno, bool) {
	p, ok := f.fds[dirFD]
	if !ok || !p.dir {
		return "", ErrnoBadf, false
	}
	return filepath.Join(p.file.Name(), rel), ErrnoSuccess, true
}

// errnoFromErr maps a filesystem error to the closest WASI errno,
// grounded on wazero's platform errno-translation tables but reduced to
// the handful of conditions this interpreter's trusted-producer
// filesystem calls can actually hit.
func errnoFromErr(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrnoNoent
	case errors.Is(err, fs.ErrExist):
		return ErrnoExist
	case errors.Is(err, fs.ErrPermission):
		return ErrnoAcces
	case errors.Is(err, syscall.ENOTDIR):
		return ErrnoNotdir
	case errors.Is(err, syscall.EISDIR):
		return ErrnoIsdir
	case errors.Is(err, syscall.ENOTEMPTY):
		return ErrnoNotempty
	case errors.Is(err, syscall.EBADF):
		return ErrnoBadf
	case errors.Is(err, syscall.EINVAL):
		return ErrnoInval
	default:
		return ErrnoIo
	}
}
