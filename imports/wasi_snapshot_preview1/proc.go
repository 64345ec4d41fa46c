package wasi_snapshot_preview1

import (
	"github.com/golang-wasm/zigvm/internal/sys"
	"github.com/golang-wasm/zigvm/internal/vm"
)

// procExit terminates the running module. The only expected-successful
// exit code is zero; any other value surfaces as the process's own
// exit code (original §6 "Exit codes").
//
// procExit never returns to its caller: it panics with a *sys.ExitError,
// which cmd/zigvm recovers to set the process exit status. This
// mirrors the source program's own call to the C library's exit(),
// matching the note in original §4.3 that "proc_exit unwinds the
// interpreter by terminating the host process with the requested exit
// code" and LLVM's habit of emitting unreachable code right after exit
// calls.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#proc_exit
func (f *Functions) procExit(v *vm.VM) error {
	exitCode := v.PopU32()
	panic(sys.NewExitError(v.ModuleName, exitCode))
}
