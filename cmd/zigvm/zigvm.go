// Command zigvm reads a single WebAssembly 1.0 module, decodes it into
// this repository's internal bytecode, and runs its "_start" export to
// completion against a fixed WASI preview-1 host surface. It is the CLI
// entry point original §6 describes: positional zig_lib_dir,
// zig_cache_dir, and wasm_file arguments, followed by the guest's own
// argv.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/golang-wasm/zigvm/imports/wasi_snapshot_preview1"
	"github.com/golang-wasm/zigvm/internal/decode"
	"github.com/golang-wasm/zigvm/internal/sys"
	"github.com/golang-wasm/zigvm/internal/vm"
	"github.com/golang-wasm/zigvm/internal/wasm"
	"github.com/golang-wasm/zigvm/internal/zlog"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated from main for the purpose of unit testing, the
// same seam cmd/wazero/wazero.go's doMain uses.
func doMain(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("zigvm", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var help, verbose bool
	flags.BoolVar(&help, "h", false, "Prints usage.")
	flags.BoolVar(&verbose, "verbose", false, "Logs decode and interpreter trace lines at debug level.")

	if err := flags.Parse(args); err != nil {
		return 1
	}
	if help || flags.NArg() < 3 {
		printUsage(stderr)
		if help {
			return 0
		}
		return 1
	}

	rest := flags.Args()
	zigLibDir, zigCacheDir, wasmPath := rest[0], rest[1], rest[2]
	guestArgv := rest[2:] // includes the wasm file path itself, per original §6

	log := zlog.New(verbose)
	defer func() { _ = log.Sync() }()

	_ = stdout // fd_write(1, ...) goes straight to os.Stdout via the WASI host, not through this writer
	return run(wasmPath, zigLibDir, zigCacheDir, guestArgv, log, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: zigvm [-h] [-verbose] <zig_lib_dir> <zig_cache_dir> <wasm_file> [guest_args...]")
}

func run(wasmPath, zigLibDir, zigCacheDir string, guestArgv []string, log *zap.Logger, stderr io.Writer) int {
	f, err := os.Open(wasmPath)
	if err != nil {
		fmt.Fprintf(stderr, "zigvm: %v\n", err)
		return 1
	}
	defer f.Close()

	mod, err := wasm.DecodeModule(f)
	if err != nil {
		fmt.Fprintf(stderr, "zigvm: %v\n", err)
		return 1
	}

	startIdx, ok := mod.Exports["_start"]
	if !ok {
		fmt.Fprintln(stderr, "zigvm: module has no \"_start\" export")
		return 1
	}

	funcs := make([]vm.Func, len(mod.Funcs))
	for i := range mod.Funcs {
		decoded, err := decode.Decode(mod, &mod.Funcs[i])
		if err != nil {
			fmt.Fprintf(stderr, "zigvm: decode function %d: %v\n", i, err)
			return 1
		}
		funcs[i] = vm.Func{
			TypeIdx:   mod.Funcs[i].TypeIdx,
			NumLocals: mod.Funcs[i].NumLocals,
			Code:      decoded,
			EntryPC:   decode.ProgramCounter{},
		}
	}

	host, err := wasi_snapshot_preview1.New(guestArgv, os.Environ(), zigLibDir, zigCacheDir, log)
	if err != nil {
		fmt.Fprintf(stderr, "zigvm: %v\n", err)
		return 1
	}
	defer host.Close()

	machine := vm.New(mod, funcs, host, log, wasmPath)

	return runVM(machine, startIdx, stderr)
}

// runVM calls the module's entry function and recovers the *sys.ExitError
// panic proc_exit raises, matching original §4.3: "proc_exit unwinds the
// interpreter by terminating the host process with the requested exit
// code." Any other panic (a structural or trap-category fault per
// original §7) is reported as a single diagnostic line rather than a Go
// stack trace.
func runVM(machine *vm.VM, startIdx uint32, stderr io.Writer) (exitCode int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if exitErr, ok := r.(*sys.ExitError); ok {
			exitCode = int(exitErr.ExitCode())
			return
		}
		fmt.Fprintf(stderr, "zigvm: %v\n", r)
		exitCode = 1
	}()

	if err := machine.Run(startIdx); err != nil {
		fmt.Fprintf(stderr, "zigvm: %v\n", err)
		return 1
	}
	return 0
}
