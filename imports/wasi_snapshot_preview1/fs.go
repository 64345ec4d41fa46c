package wasi_snapshot_preview1

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/golang-wasm/zigvm/internal/vm"
)

// WASI filetype values (the subset this host ever reports).
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#-filetype-enumu8
const (
	filetypeUnknown        = 0
	filetypeDirectory      = 3
	filetypeRegularFile    = 4
	filetypeCharacterDevice = 2
)

// oflags bits accepted by path_open.
const (
	oflagsCreat     = 1 << 0
	oflagsDirectory = 1 << 1
	oflagsExcl      = 1 << 2
	oflagsTrunc     = 1 << 3
)

// fdflags bits accepted by path_open.
const (
	fdflagsAppend = 1 << 0
)

func (f *Functions) lookupFD(fd uint32) (*preopen, bool) {
	p, ok := f.fds[fd]
	return p, ok
}

func fileType(fi os.FileInfo) byte {
	switch {
	case fi.IsDir():
		return filetypeDirectory
	case fi.Mode()&os.ModeCharDevice != 0:
		return filetypeCharacterDevice
	default:
		return filetypeRegularFile
	}
}

// fdClose closes a guest-opened file descriptor. Preopens (fd 0-5) are
// never actually released, matching the source's fixed six-entry table
// living for the process lifetime.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_close
func (f *Functions) fdClose(v *vm.VM) error {
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return nil
	}
	if fd > 5 {
		delete(f.fds, fd)
		delete(f.dirCursor, fd)
		v.PushU32(errnoFromErr(p.file.Close()))
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// fdFdstatGet writes fd's file type and flags.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_fdstat_get
func (f *Functions) fdFdstatGet(v *vm.VM) error {
	resultStat := v.PopU32()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return nil
	}
	var ft byte = filetypeRegularFile
	if p.dir {
		ft = filetypeDirectory
	} else if fd < 3 {
		ft = filetypeCharacterDevice
	}
	buf := make([]byte, 24)
	buf[0] = ft
	// fs_flags (u16) left zero; fs_rights_base/inheriting (two u64) left
	// as all-bits-set since this host does not enforce WASI capability
	// rights (original §1 Non-goals: no validation beyond what a
	// trusted producer's module needs).
	binary.LittleEndian.PutUint64(buf[8:], ^uint64(0))
	binary.LittleEndian.PutUint64(buf[16:], ^uint64(0))
	if !v.Memory.Write(resultStat, buf) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

func writeFilestat(v *vm.VM, offset uint32, fi os.FileInfo) bool {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint64(buf[0:], 0) // dev
	binary.LittleEndian.PutUint64(buf[8:], 0) // ino
	buf[16] = fileType(fi)
	binary.LittleEndian.PutUint64(buf[24:], 1) // nlink
	binary.LittleEndian.PutUint64(buf[32:], uint64(fi.Size()))
	mtimeNS := uint64(fi.ModTime().UnixNano())
	binary.LittleEndian.PutUint64(buf[40:], mtimeNS) // atim
	binary.LittleEndian.PutUint64(buf[48:], mtimeNS)  // mtim
	binary.LittleEndian.PutUint64(buf[56:], mtimeNS)  // ctim
	return v.Memory.Write(offset, buf)
}

// fdFilestatGet writes fd's size, type, and timestamps.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_filestat_get
func (f *Functions) fdFilestatGet(v *vm.VM) error {
	resultStat := v.PopU32()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return nil
	}
	fi, err := p.file.Stat()
	if err != nil {
		v.PushU32(errnoFromErr(err))
		return nil
	}
	if !writeFilestat(v, resultStat, fi) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// fdFilestatSetSize truncates fd to size bytes.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_filestat_set_size
func (f *Functions) fdFilestatSetSize(v *vm.VM) error {
	size := v.PopU64()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return nil
	}
	v.PushU32(errnoFromErr(p.file.Truncate(int64(size))))
	return nil
}

// fdFilestatSetTimes sets fd's access and modification times. The
// "don't change this timestamp" and "use the host's current time"
// sentinel bits of fstFlags are honored; the intended producer
// (a build toolchain staging output files) needs no finer control.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_filestat_set_times
func (f *Functions) fdFilestatSetTimes(v *vm.VM) error {
	fstFlags := v.PopU32()
	mtim := v.PopU64()
	atim := v.PopU64()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return nil
	}
	const fstFlagsAtim = 1 << 0
	const fstFlagsAtimNow = 1 << 1
	const fstFlagsMtim = 1 << 2
	const fstFlagsMtimNow = 1 << 3
	now := time.Now()
	var at, mt time.Time // the zero time leaves that timestamp unchanged
	if fstFlags&fstFlagsAtim != 0 {
		at = time.Unix(0, int64(atim))
	}
	if fstFlags&fstFlagsMtim != 0 {
		mt = time.Unix(0, int64(mtim))
	}
	if fstFlags&fstFlagsAtimNow != 0 {
		at = now
	}
	if fstFlags&fstFlagsMtimNow != 0 {
		mt = now
	}
	v.PushU32(errnoFromErr(os.Chtimes(p.file.Name(), at, mt)))
	return nil
}

// fdRead reads from fd into the guest iovec array at iovs, matching
// POSIX readv's scatter semantics.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_read
func (f *Functions) fdRead(v *vm.VM) error {
	resultNread := v.PopU32()
	iovsLen := v.PopU32()
	iovs := v.PopU32()
	fd := v.PopU32()
	f.doRead(v, fd, iovs, iovsLen, resultNread, -1)
	return nil
}

// fdPread is fdRead at a fixed file offset, leaving fd's own read
// position untouched.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_pread
func (f *Functions) fdPread(v *vm.VM) error {
	resultNread := v.PopU32()
	offset := v.PopU64()
	iovsLen := v.PopU32()
	iovs := v.PopU32()
	fd := v.PopU32()
	f.doRead(v, fd, iovs, iovsLen, resultNread, int64(offset))
	return nil
}

func (f *Functions) doRead(v *vm.VM, fd, iovs, iovsLen, resultNread uint32, offset int64) {
	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return
	}
	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		bufPtr, ok1 := v.Memory.Uint32(iovs + i*8)
		bufLen, ok2 := v.Memory.Uint32(iovs + i*8 + 4)
		if !ok1 || !ok2 {
			v.PushU32(ErrnoFault)
			return
		}
		dst, ok := v.Memory.Read(bufPtr, bufLen)
		if !ok {
			v.PushU32(ErrnoFault)
			return
		}
		var n int
		var err error
		if offset >= 0 {
			n, err = p.file.ReadAt(dst, offset+int64(total))
		} else {
			n, err = p.file.Read(dst)
		}
		total += uint32(n)
		if err != nil {
			if err != io.EOF {
				v.PushU32(errnoFromErr(err))
				return
			}
			break
		}
		if n < len(dst) {
			break
		}
	}
	if !v.Memory.PutUint32(resultNread, total) {
		v.PushU32(ErrnoFault)
		return
	}
	v.PushU32(ErrnoSuccess)
}

// fdWrite writes the guest iovec array at iovs to fd, matching POSIX
// writev's gather semantics. This backs the module's stdout/stderr
// output as well as writes to preopened files.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_write
func (f *Functions) fdWrite(v *vm.VM) error {
	resultNwritten := v.PopU32()
	iovsLen := v.PopU32()
	iovs := v.PopU32()
	fd := v.PopU32()
	f.doWrite(v, fd, iovs, iovsLen, resultNwritten, -1)
	return nil
}

// fdPwrite is fdWrite at a fixed file offset.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_pwrite
func (f *Functions) fdPwrite(v *vm.VM) error {
	resultNwritten := v.PopU32()
	offset := v.PopU64()
	iovsLen := v.PopU32()
	iovs := v.PopU32()
	fd := v.PopU32()
	f.doWrite(v, fd, iovs, iovsLen, resultNwritten, int64(offset))
	return nil
}

func (f *Functions) doWrite(v *vm.VM, fd, iovs, iovsLen, resultNwritten uint32, offset int64) {
	p, ok := f.lookupFD(fd)
	if !ok {
		v.PushU32(ErrnoBadf)
		return
	}
	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		bufPtr, ok1 := v.Memory.Uint32(iovs + i*8)
		bufLen, ok2 := v.Memory.Uint32(iovs + i*8 + 4)
		if !ok1 || !ok2 {
			v.PushU32(ErrnoFault)
			return
		}
		src, ok := v.Memory.Read(bufPtr, bufLen)
		if !ok {
			v.PushU32(ErrnoFault)
			return
		}
		var n int
		var err error
		if offset >= 0 {
			n, err = p.file.WriteAt(src, offset+int64(total))
		} else {
			n, err = p.file.Write(src)
		}
		total += uint32(n)
		if err != nil {
			v.PushU32(errnoFromErr(err))
			return
		}
	}
	if !v.Memory.PutUint32(resultNwritten, total) {
		v.PushU32(ErrnoFault)
		return
	}
	v.PushU32(ErrnoSuccess)
}

// fdPrestatGet reports whether fd is a preopened directory and, if so,
// the length of its guest-visible name (original §6's "/cache", "/lib",
// or "." aliases).
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_prestat_get
func (f *Functions) fdPrestatGet(v *vm.VM) error {
	resultPrestat := v.PopU32()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok || !p.dir {
		v.PushU32(ErrnoBadf)
		return nil
	}
	buf := make([]byte, 8)
	// tag 0: __wasi_preopentype_t.dir
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(p.name)))
	if !v.Memory.Write(resultPrestat, buf) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// fdPrestatDirName writes fd's preopen name into the guest buffer.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_prestat_dir_name
func (f *Functions) fdPrestatDirName(v *vm.VM) error {
	pathLen := v.PopU32()
	path := v.PopU32()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok || !p.dir {
		v.PushU32(ErrnoBadf)
		return nil
	}
	if uint32(len(p.name)) > pathLen {
		v.PushU32(ErrnoNametoolong)
		return nil
	}
	if !v.Memory.Write(path, []byte(p.name)) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// fdReaddir writes as many WASI dirent records as fit in buf_len,
// starting after cookie entries, matching POSIX readdir's sequential
// cursor model. This host re-lists the directory on cookie 0 and
// caches it per fd for subsequent calls in the same pass.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#fd_readdir
func (f *Functions) fdReaddir(v *vm.VM) error {
	resultBufused := v.PopU32()
	cookie := v.PopU64()
	bufLen := v.PopU32()
	buf := v.PopU32()
	fd := v.PopU32()

	p, ok := f.lookupFD(fd)
	if !ok || !p.dir {
		v.PushU32(ErrnoBadf)
		return nil
	}
	entries, cached := f.dirCursor[fd]
	if !cached || cookie == 0 {
		des, err := os.ReadDir(p.file.Name())
		if err != nil {
			v.PushU32(errnoFromErr(err))
			return nil
		}
		entries = des
		f.dirCursor[fd] = entries
	}

	var used uint32
	for i := uint64(cookie); i < uint64(len(entries)); i++ {
		e := entries[i]
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		recLen := 24 + uint32(len(name))
		if used+recLen > bufLen {
			break
		}
		rec := make([]byte, recLen)
		binary.LittleEndian.PutUint64(rec[0:], i+1) // d_next cookie
		binary.LittleEndian.PutUint64(rec[8:], 0)   // d_ino
		binary.LittleEndian.PutUint32(rec[16:], uint32(len(name)))
		rec[20] = fileType(info)
		copy(rec[24:], name)
		if !v.Memory.Write(buf+used, rec) {
			v.PushU32(ErrnoFault)
			return nil
		}
		used += recLen
	}
	if !v.Memory.PutUint32(resultBufused, used) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// pathCreateDirectory creates a directory relative to a preopened
// directory fd.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_create_directory
func (f *Functions) pathCreateDirectory(v *vm.VM) error {
	pathLen := v.PopU32()
	path := v.PopU32()
	fd := v.PopU32()

	rel, ok := v.Memory.Read(path, pathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	full, errno, ok := f.resolvePath(fd, string(rel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	v.PushU32(errnoFromErr(os.Mkdir(full, 0o755)))
	return nil
}

// pathFilestatGet writes the size, type, and timestamps of the file
// named by a path relative to a preopened directory fd.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_filestat_get
func (f *Functions) pathFilestatGet(v *vm.VM) error {
	resultStat := v.PopU32()
	pathLen := v.PopU32()
	path := v.PopU32()
	_ = v.PopU32() // lookupflags: symlink-follow is the only bit and this host always follows
	fd := v.PopU32()

	rel, ok := v.Memory.Read(path, pathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	full, errno, ok := f.resolvePath(fd, string(rel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	fi, err := os.Stat(full)
	if err != nil {
		v.PushU32(errnoFromErr(err))
		return nil
	}
	if !writeFilestat(v, resultStat, fi) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// pathOpen opens a path relative to a preopened directory fd, assigning
// a new guest fd starting at 6 on success.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_open
func (f *Functions) pathOpen(v *vm.VM) error {
	resultFD := v.PopU32()
	fdflags := v.PopU32()
	_ = v.PopU64() // fs_rights_inheriting: not enforced, see fdFdstatGet
	_ = v.PopU64() // fs_rights_base
	oflags := v.PopU32()
	pathLen := v.PopU32()
	path := v.PopU32()
	_ = v.PopU32() // dirflags
	dirFD := v.PopU32()

	rel, ok := v.Memory.Read(path, pathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	full, errno, ok := f.resolvePath(dirFD, string(rel))
	if !ok {
		v.PushU32(errno)
		return nil
	}

	flag := os.O_RDWR
	if oflags&oflagsCreat != 0 {
		flag |= os.O_CREATE
	}
	if oflags&oflagsExcl != 0 {
		flag |= os.O_EXCL
	}
	if oflags&oflagsTrunc != 0 {
		flag |= os.O_TRUNC
	}
	if fdflags&fdflagsAppend != 0 {
		flag |= os.O_APPEND
	}

	file, err := os.OpenFile(full, flag, 0o644)
	if err != nil {
		v.PushU32(errnoFromErr(err))
		return nil
	}
	isDir := oflags&oflagsDirectory != 0
	if !isDir {
		if fi, statErr := file.Stat(); statErr == nil {
			isDir = fi.IsDir()
		}
	}

	newFD := f.nextFD
	f.nextFD++
	f.fds[newFD] = &preopen{name: full, file: file, dir: isDir}

	if !v.Memory.PutUint32(resultFD, newFD) {
		v.PushU32(ErrnoFault)
		return nil
	}
	v.PushU32(ErrnoSuccess)
	return nil
}

// pathRemoveDirectory removes an empty directory relative to a
// preopened directory fd.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_remove_directory
func (f *Functions) pathRemoveDirectory(v *vm.VM) error {
	pathLen := v.PopU32()
	path := v.PopU32()
	fd := v.PopU32()

	rel, ok := v.Memory.Read(path, pathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	full, errno, ok := f.resolvePath(fd, string(rel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	v.PushU32(errnoFromErr(os.Remove(full)))
	return nil
}

// pathUnlinkFile removes a file relative to a preopened directory fd.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_unlink_file
func (f *Functions) pathUnlinkFile(v *vm.VM) error {
	pathLen := v.PopU32()
	path := v.PopU32()
	fd := v.PopU32()

	rel, ok := v.Memory.Read(path, pathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	full, errno, ok := f.resolvePath(fd, string(rel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	v.PushU32(errnoFromErr(os.Remove(full)))
	return nil
}

// pathRename renames a path relative to one preopened directory fd to a
// path relative to another (possibly the same) preopened directory fd.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#path_rename
func (f *Functions) pathRename(v *vm.VM) error {
	newPathLen := v.PopU32()
	newPath := v.PopU32()
	newFD := v.PopU32()
	oldPathLen := v.PopU32()
	oldPath := v.PopU32()
	oldFD := v.PopU32()

	oldRel, ok := v.Memory.Read(oldPath, oldPathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	newRel, ok := v.Memory.Read(newPath, newPathLen)
	if !ok {
		v.PushU32(ErrnoFault)
		return nil
	}
	oldFull, errno, ok := f.resolvePath(oldFD, string(oldRel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	newFull, errno, ok := f.resolvePath(newFD, string(newRel))
	if !ok {
		v.PushU32(errno)
		return nil
	}
	v.PushU32(errnoFromErr(os.Rename(oldFull, newFull)))
	return nil
}
