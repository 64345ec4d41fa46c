// Package wasi_snapshot_preview1 implements the closed set of WASI
// preview-1 host calls original §6 enumerates, plus the two debug
// extensions, as a vm.Host bound against a fixed preopen table. It is
// grounded on wazero's package of the same name and path, re-closed
// over 25 WASI names instead of the full WASI surface.
package wasi_snapshot_preview1

// Errno is a WASI preview-1 error code. ErrnoSuccess (0) is not an
// error; every other value names a POSIX-style errno condition.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#-errno-enumu16
type Errno = uint32

// Note: prefers POSIX symbol names over WASI ones, even though the doc
// comments are sourced from the WASI spec.
// See https://linux.die.net/man/3/errno
const (
	ErrnoSuccess Errno = iota
	Errno2big
	ErrnoAcces
	ErrnoAddrinuse
	ErrnoAddrnotavail
	ErrnoAfnosupport
	ErrnoAgain
	ErrnoAlready
	ErrnoBadf
	ErrnoBadmsg
	ErrnoBusy
	ErrnoCanceled
	ErrnoChild
	ErrnoConnaborted
	ErrnoConnrefused
	ErrnoConnreset
	ErrnoDeadlk
	ErrnoDestaddrreq
	ErrnoDom
	ErrnoDquot
	ErrnoExist
	ErrnoFault
	ErrnoFbig
	ErrnoHostunreach
	ErrnoIdrm
	ErrnoIlseq
	ErrnoInprogress
	ErrnoIntr
	ErrnoInval
	ErrnoIo
	ErrnoIsconn
	ErrnoIsdir
	ErrnoLoop
	ErrnoMfile
	ErrnoMlink
	ErrnoMsgsize
	ErrnoMultihop
	ErrnoNametoolong
	ErrnoNetdown
	ErrnoNetreset
	ErrnoNetunreach
	ErrnoNfile
	ErrnoNobufs
	ErrnoNodev
	ErrnoNoent
	ErrnoNoexec
	ErrnoNolck
	ErrnoNolink
	ErrnoNomem
	ErrnoNomsg
	ErrnoNoprotoopt
	ErrnoNospc
	ErrnoNosys
	ErrnoNotconn
	ErrnoNotdir
	ErrnoNotempty
	ErrnoNotrecoverable
	ErrnoNotsock
	ErrnoNotsup
	ErrnoNotty
	ErrnoNxio
	ErrnoOverflow
	ErrnoOwnerdead
	ErrnoPerm
	ErrnoPipe
	ErrnoProto
	ErrnoProtonosupport
	ErrnoPrototype
	ErrnoRange
	ErrnoRofs
	ErrnoSpipe
	ErrnoSrch
	ErrnoStale
	ErrnoTimedout
	ErrnoTxtbsy
	ErrnoXdev
	ErrnoNotcapable
)

var errnoNames = [...]string{
	ErrnoSuccess: "ESUCCESS", Errno2big: "E2BIG", ErrnoAcces: "EACCES",
	ErrnoAddrinuse: "EADDRINUSE", ErrnoAddrnotavail: "EADDRNOTAVAIL",
	ErrnoAfnosupport: "EAFNOSUPPORT", ErrnoAgain: "EAGAIN", ErrnoAlready: "EALREADY",
	ErrnoBadf: "EBADF", ErrnoBadmsg: "EBADMSG", ErrnoBusy: "EBUSY",
	ErrnoCanceled: "ECANCELED", ErrnoChild: "ECHILD", ErrnoConnaborted: "ECONNABORTED",
	ErrnoConnrefused: "ECONNREFUSED", ErrnoConnreset: "ECONNRESET", ErrnoDeadlk: "EDEADLK",
	ErrnoDestaddrreq: "EDESTADDRREQ", ErrnoDom: "EDOM", ErrnoDquot: "EDQUOT",
	ErrnoExist: "EEXIST", ErrnoFault: "EFAULT", ErrnoFbig: "EFBIG",
	ErrnoHostunreach: "EHOSTUNREACH", ErrnoIdrm: "EIDRM", ErrnoIlseq: "EILSEQ",
	ErrnoInprogress: "EINPROGRESS", ErrnoIntr: "EINTR", ErrnoInval: "EINVAL",
	ErrnoIo: "EIO", ErrnoIsconn: "EISCONN", ErrnoIsdir: "EISDIR",
	ErrnoLoop: "ELOOP", ErrnoMfile: "EMFILE", ErrnoMlink: "EMLINK",
	ErrnoMsgsize: "EMSGSIZE", ErrnoMultihop: "EMULTIHOP", ErrnoNametoolong: "ENAMETOOLONG",
	ErrnoNetdown: "ENETDOWN", ErrnoNetreset: "ENETRESET", ErrnoNetunreach: "ENETUNREACH",
	ErrnoNfile: "ENFILE", ErrnoNobufs: "ENOBUFS", ErrnoNodev: "ENODEV",
	ErrnoNoent: "ENOENT", ErrnoNoexec: "ENOEXEC", ErrnoNolck: "ENOLCK",
	ErrnoNolink: "ENOLINK", ErrnoNomem: "ENOMEM", ErrnoNomsg: "ENOMSG",
	ErrnoNoprotoopt: "ENOPROTOOPT", ErrnoNospc: "ENOSPC", ErrnoNosys: "ENOSYS",
	ErrnoNotconn: "ENOTCONN", ErrnoNotdir: "ENOTDIR", ErrnoNotempty: "ENOTEMPTY",
	ErrnoNotrecoverable: "ENOTRECOVERABLE", ErrnoNotsock: "ENOTSOCK", ErrnoNotsup: "ENOTSUP",
	ErrnoNotty: "ENOTTY", ErrnoNxio: "ENXIO", ErrnoOverflow: "EOVERFLOW",
	ErrnoOwnerdead: "EOWNERDEAD", ErrnoPerm: "EPERM", ErrnoPipe: "EPIPE",
	ErrnoProto: "EPROTO", ErrnoProtonosupport: "EPROTONOSUPPORT", ErrnoPrototype: "EPROTOTYPE",
	ErrnoRange: "ERANGE", ErrnoRofs: "EROFS", ErrnoSpipe: "ESPIPE",
	ErrnoSrch: "ESRCH", ErrnoStale: "ESTALE", ErrnoTimedout: "ETIMEDOUT",
	ErrnoTxtbsy: "ETXTBSY", ErrnoXdev: "EXDEV", ErrnoNotcapable: "ENOTCAPABLE",
}

// ErrnoName returns the POSIX error code name, e.g. Errno2big -> "E2BIG".
func ErrnoName(errno Errno) string {
	if int(errno) < len(errnoNames) && errnoNames[errno] != "" {
		return errnoNames[errno]
	}
	return "errno(unknown)"
}
