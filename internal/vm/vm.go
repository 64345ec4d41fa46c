// Package vm is the interpreter: a single tight dispatch loop over a
// decoded function's opcode/operand streams, executing against one
// unified 64-bit-slot stack shared by operand values, locals, and
// saved return PCs. It mirrors the source's vm_run/vm_call/vm_br_*/
// vm_return_* family, generalized from the single hard-coded module
// the source ran to any module this repository's decoder produces.
package vm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/golang-wasm/zigvm/internal/buildoptions"
	"github.com/golang-wasm/zigvm/internal/decode"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

// ErrTrap is the sentinel wrapped by every execution-trap error: integer
// division faults, out-of-bounds memory access, indirect-call type
// mismatch, and the explicit unreachable opcode.
var ErrTrap = errors.New("vm: trap")

// HostFunc is the signature a WASI host adaptor registers for one
// imported function. It receives the running VM so it can read
// arguments off the stack and write results/errno back the same way,
// exactly like the decoded call convention module-defined functions use.
type HostFunc func(v *VM) error

// Host resolves imported function calls by name. One Host is shared by
// every VM instance created against the same module.
type Host interface {
	// Resolve returns the HostFunc bound to a WASI import, or false if
	// the name is not in the closed enumeration this interpreter serves.
	Resolve(name string) (HostFunc, bool)
}

// Func is a single module-defined function, decoded and ready to run.
type Func struct {
	TypeIdx   uint32
	NumLocals uint32
	Code      *decode.Function
	EntryPC   decode.ProgramCounter
}

// VM is one interpreter instance: exactly one module instantiation,
// exclusively owning its stack, memory, table, and globals, matching
// the source's single global `struct VirtualMachine`.
type VM struct {
	Module *wasm.Module
	Funcs  []Func // module-defined functions, parallel to Module.Funcs
	Host   Host
	Log    *zap.Logger

	Memory *Memory
	Table  []uint32
	Globals []uint64

	stack []uint64
	sp    uint32 // stack_top: one past the last live slot

	// ModuleName is surfaced in the sys.ExitError that proc_exit raises.
	ModuleName string

	callDepth uint32
}

// New builds a VM instance of mod. Functions must already be decoded by
// the caller (see decode.Decode); New does no decoding itself.
func New(mod *wasm.Module, funcs []Func, host Host, log *zap.Logger, moduleName string) *VM {
	if log == nil {
		log = zap.NewNop()
	}
	v := &VM{
		Module:     mod,
		Funcs:      funcs,
		Host:       host,
		Log:        log,
		ModuleName: moduleName,
		stack:      make([]uint64, 0, 1<<16),
	}
	v.Globals = make([]uint64, len(mod.Globals))
	for i, g := range mod.Globals {
		v.Globals[i] = g.Init
	}
	v.Memory = NewMemory(mod.Memory)
	v.initTable(mod)
	return v
}

func (v *VM) initTable(mod *wasm.Module) {
	if mod.Table == nil {
		return
	}
	// The source zeroes the table's full byte range; a Go slice of
	// uint32 is already zero-valued on allocation, so no extra memset
	// is needed to satisfy that requirement (see Open Question 3).
	size := mod.Table.Min
	if mod.Table.HasMax {
		size = mod.Table.Max
	}
	v.Table = make([]uint32, size)
	for _, el := range mod.Elements {
		for i, fnIdx := range el.FuncIdx {
			idx := int(el.Offset) + i
			if idx >= len(v.Table) {
				break
			}
			v.Table[idx] = fnIdx
		}
	}
}

// Run calls function index fnIdx (in the full function index space,
// imports first, exactly as Call takes it) with no arguments on the
// stack, running it to completion. It is the entry point cmd/zigvm uses
// to invoke _start.
func (v *VM) Run(fnIdx uint32) error {
	return v.Call(fnIdx)
}

func (v *VM) grow(n uint32) {
	if uint32(len(v.stack)) < v.sp+n {
		v.stack = append(v.stack, make([]uint64, v.sp+n-uint32(len(v.stack)))...)
	}
}

func (v *VM) pushU64(x uint64) {
	v.grow(1)
	v.stack[v.sp] = x
	v.sp++
}

func (v *VM) popU64() uint64 {
	v.sp--
	return v.stack[v.sp]
}

func (v *VM) pushU32(x uint32) { v.pushU64(uint64(x)) }
func (v *VM) popU32() uint32   { return uint32(v.popU64()) }

// PushU32, PushU64, PopU32, and PopU64 are the exported mirrors of the
// stack primitives above. A HostFunc runs outside this package (the
// WASI host adaptor lives in imports/wasi_snapshot_preview1), but it
// shares the same calling convention as module-defined code: arguments
// already pushed by the caller sit on top of the stack in parameter
// order, so the last parameter is popped first, and results are pushed
// in result order before returning.
func (v *VM) PushU32(x uint32) { v.pushU32(x) }
func (v *VM) PushU64(x uint64) { v.pushU64(x) }
func (v *VM) PopU32() uint32   { return v.popU32() }
func (v *VM) PopU64() uint64   { return v.popU64() }

// Call invokes function index fnIdx. Imported functions route to the
// host; module-defined functions push zeroed locals and a saved return
// PC directly on top of whatever the caller already left on the shared
// stack, then run the dispatch loop until that call's return unwinds
// back out — mirroring vm_call exactly, including the fact that no
// separate per-call frame-base variable is ever needed: every local,
// branch, and return offset the decoder emits is already relative to
// stack_top at the moment it executes.
func (v *VM) Call(fnIdx uint32) error {
	if v.Module.IsImportedFunc(fnIdx) {
		return v.callImport(fnIdx)
	}
	v.callDepth++
	if v.callDepth > buildoptions.CallStackCeiling {
		v.callDepth--
		return fmt.Errorf("%w: call stack exceeds %d", ErrTrap, buildoptions.CallStackCeiling)
	}
	defer func() { v.callDepth-- }()

	fn := &v.Funcs[fnIdx-uint32(len(v.Module.Imports))]
	for i := uint32(0); i < fn.NumLocals; i++ {
		v.pushU64(0)
	}
	// Two reserved words matching the saved-return-PC slot return_* expects
	// below it on the stack. This redesign returns to its caller through
	// Go's own call stack rather than a restored PC, so the PC that
	// return_* reads back from them is discarded; only the two words of
	// stack accounting matter.
	v.pushU32(0)
	v.pushU32(0)

	return v.run(fn)
}

func (v *VM) callImport(fnIdx uint32) error {
	imp := v.Module.Imports[fnIdx]
	fn, ok := v.Host.Resolve(imp.Name)
	if !ok {
		return fmt.Errorf("vm: no host binding for import %q", imp.Name)
	}
	return fn(v)
}

// run executes fn's decoded body starting at its entry PC, returning
// once the function's own return_* opcode has restored the caller's
// stack_top and this call's locals+saved-PC slots have been discarded.
// Because every branch and return target is an absolute (opcode,
// operand) pair baked in by the decoder, a single loop serves every
// nesting depth: a nested call recurses into run via Call above and
// pops back out through Go's own call stack when the callee returns.
func (v *VM) run(fn *Func) error {
	pc := fn.EntryPC
	code := fn.Code
	for {
		op := code.Opcodes[pc.Opcode]
		pc.Opcode++
		switch op {
		case decode.OpUnreachable:
			return fmt.Errorf("%w: unreachable reached", ErrTrap)

		case decode.OpBrVoid:
			v.brVoid(code, &pc)
		case decode.OpBr32:
			v.br32(code, &pc)
		case decode.OpBr64:
			v.br64(code, &pc)

		case decode.OpBrIfNezVoid:
			if v.popU32() != 0 {
				v.brVoid(code, &pc)
			} else {
				pc.Operand += 3
			}
		case decode.OpBrIfNez32:
			if v.popU32() != 0 {
				v.br32(code, &pc)
			} else {
				pc.Operand += 3
			}
		case decode.OpBrIfNez64:
			if v.popU32() != 0 {
				v.br64(code, &pc)
			} else {
				pc.Operand += 3
			}

		case decode.OpBrIfEqzVoid:
			if v.popU32() == 0 {
				v.brVoid(code, &pc)
			} else {
				pc.Operand += 3
			}
		case decode.OpBrIfEqz32:
			if v.popU32() == 0 {
				v.br32(code, &pc)
			} else {
				pc.Operand += 3
			}
		case decode.OpBrIfEqz64:
			if v.popU32() == 0 {
				v.br64(code, &pc)
			} else {
				pc.Operand += 3
			}

		case decode.OpBrTableVoid, decode.OpBrTable32, decode.OpBrTable64:
			v.brTable(op, code, &pc)

		case decode.OpReturnVoid:
			v.returnVoid(code, &pc)
			return nil
		case decode.OpReturn32:
			v.return32(code, &pc)
			return nil
		case decode.OpReturn64:
			v.return64(code, &pc)
			return nil

		case decode.OpCall:
			fnIdx := code.Operands[pc.Operand]
			pc.Operand++
			if err := v.Call(fnIdx); err != nil {
				return err
			}

		case decode.OpDrop32:
			v.sp--
		case decode.OpDrop64:
			v.sp--

		case decode.OpSelect32, decode.OpSelect64:
			cond := v.popU32()
			b := v.popU64()
			a := v.popU64()
			if cond != 0 {
				v.pushU64(a)
			} else {
				v.pushU64(b)
			}

		case decode.OpLocalGet32:
			off := code.Operands[pc.Operand]
			pc.Operand++
			v.pushU32(uint32(v.stack[v.sp-off]))
		case decode.OpLocalGet64:
			off := code.Operands[pc.Operand]
			pc.Operand++
			v.pushU64(v.stack[v.sp-off])

		case decode.OpLocalSet32, decode.OpLocalSet64:
			off := code.Operands[pc.Operand]
			pc.Operand++
			v.stack[v.sp-off] = v.popU64()

		case decode.OpLocalTee32, decode.OpLocalTee64:
			off := code.Operands[pc.Operand]
			pc.Operand++
			v.stack[v.sp-off] = v.stack[v.sp-1]

		case decode.OpGlobalGet0_32:
			v.pushU32(uint32(v.Globals[0]))
		case decode.OpGlobalGet32:
			idx := code.Operands[pc.Operand]
			pc.Operand++
			v.pushU32(uint32(v.Globals[idx]))
		case decode.OpGlobalSet0_32:
			v.Globals[0] = uint64(v.popU32())
		case decode.OpGlobalSet32:
			idx := code.Operands[pc.Operand]
			pc.Operand++
			v.Globals[idx] = uint64(v.popU32())

		case decode.OpConst32:
			x := code.Operands[pc.Operand]
			pc.Operand++
			v.pushU32(x)
		case decode.OpConst64:
			lo := uint64(code.Operands[pc.Operand])
			hi := uint64(code.Operands[pc.Operand+1])
			pc.Operand += 2
			v.pushU64(lo | hi<<32)

		case decode.OpWasm:
			w := decode.WasmOp(code.Operands[pc.Operand])
			pc.Operand++
			if err := v.stepWasm(w, code, &pc); err != nil {
				return err
			}

		case decode.OpWasmPrefixed:
			w := decode.WasmPrefixedOp(code.Operands[pc.Operand])
			pc.Operand++
			if err := v.stepWasmPrefixed(w); err != nil {
				return err
			}

		default:
			return fmt.Errorf("vm: unimplemented internal opcode %v", op)
		}
	}
}

// brVoid, br32, br64 implement the three branch-family operand layouts:
// stack_adjust followed by a two-word absolute target. The 32/64
// variants additionally preserve the single carried result value across
// the stack_top truncation, matching vm_br_u32/vm_br_u64.
func (v *VM) brVoid(code *decode.Function, pc *decode.ProgramCounter) {
	adjust := code.Operands[pc.Operand]
	v.sp -= adjust
	pc.Opcode = code.Operands[pc.Operand+1]
	pc.Operand = code.Operands[pc.Operand+2]
}

func (v *VM) br32(code *decode.Function, pc *decode.ProgramCounter) {
	adjust := code.Operands[pc.Operand]
	result := v.popU32()
	v.sp -= adjust
	pc.Opcode = code.Operands[pc.Operand+1]
	pc.Operand = code.Operands[pc.Operand+2]
	v.pushU32(result)
}

func (v *VM) br64(code *decode.Function, pc *decode.ProgramCounter) {
	adjust := code.Operands[pc.Operand]
	result := v.popU64()
	v.sp -= adjust
	pc.Opcode = code.Operands[pc.Operand+1]
	pc.Operand = code.Operands[pc.Operand+2]
	v.pushU64(result)
}

// brTable pops a 32-bit index, clamps it to the table length (the last
// entry is the default target), and falls through to the matching
// br_{void,32,64}. Clamping rather than trapping on out-of-range index
// is the defined behavior.
func (v *VM) brTable(op decode.Op, code *decode.Function, pc *decode.ProgramCounter) {
	n := code.Operands[pc.Operand]
	idx := v.popU32()
	if idx > n {
		idx = n
	}
	pc.Operand += 1 + idx*3
	switch op {
	case decode.OpBrTableVoid:
		v.brVoid(code, pc)
	case decode.OpBrTable32:
		v.br32(code, pc)
	case decode.OpBrTable64:
		v.br64(code, pc)
	}
}

// returnVoid, return32, return64 implement the function epilogue: the
// saved return PC sits two slots below the (optional) result, at
// stack_top - ret_pc_offset; it must be read out before stack_top is
// adjusted, since the adjustment discards the slots it occupies.
func (v *VM) returnVoid(code *decode.Function, pc *decode.ProgramCounter) {
	retPCOffset := code.Operands[pc.Operand]
	adjust := code.Operands[pc.Operand+1]
	base := v.sp - retPCOffset
	pc.Opcode = uint32(v.stack[base])
	pc.Operand = uint32(v.stack[base+1])
	v.sp -= adjust
}

func (v *VM) return32(code *decode.Function, pc *decode.ProgramCounter) {
	retPCOffset := code.Operands[pc.Operand]
	adjust := code.Operands[pc.Operand+1]
	base := v.sp - retPCOffset
	pc.Opcode = uint32(v.stack[base])
	pc.Operand = uint32(v.stack[base+1])
	result := v.popU32()
	v.sp -= adjust
	v.pushU32(result)
}

func (v *VM) return64(code *decode.Function, pc *decode.ProgramCounter) {
	retPCOffset := code.Operands[pc.Operand]
	adjust := code.Operands[pc.Operand+1]
	base := v.sp - retPCOffset
	pc.Opcode = uint32(v.stack[base])
	pc.Operand = uint32(v.stack[base+1])
	result := v.popU64()
	v.sp -= adjust
	v.pushU64(result)
}
