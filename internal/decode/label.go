package decode

import "github.com/golang-wasm/zigvm/internal/wasm"

// label tracks one open block/loop/if during decoding: its signature,
// the operand-stack depth at entry, and a ref_list of not-yet-resolved
// forward branches to its end (an if's jump to its else arm is tracked
// separately, in elseRef). refList is a
// singly linked list of fixup slots stored directly in the function's
// operand array: each link is the operand index holding the "next"
// pointer, refListEnd-terminated, exactly as the decoder it's grounded
// on stores its fixup chain.
type label struct {
	opcode    WasmOp // block, loop, or if (becomes else once an else is seen)
	typeInfo  wasm.TypeInfo
	stackDepth uint32
	refList    uint32

	loopPC  ProgramCounter // valid when opcode == WasmOpLoop
	elseRef uint32         // valid when opcode == WasmOpIf: operand index of the branch target to patch
}

// operandCount returns how many values this label's branches carry: a
// loop's own entry parameters (since branching to a loop re-enters it),
// or a block/if's results (since branching to them falls through to
// after the block).
func (l *label) operandCount() uint32 {
	if l.opcode == WasmOpLoop {
		return l.typeInfo.ParamCount()
	}
	return l.typeInfo.ResultCount()
}

// operandIs64 reports whether branch operand i (see operandCount) is a
// 64-bit value.
func (l *label) operandIs64(i uint32) bool {
	if l.opcode == WasmOpLoop {
		return l.typeInfo.ParamIs64(i)
	}
	return l.typeInfo.ResultIs64(i)
}

// branchOp picks the width-specific internal opcode for an unconditional
// branch/fallthrough to this label.
func (l *label) branchOp() (Op, error) {
	switch l.operandCount() {
	case 0:
		return OpBrVoid, nil
	case 1:
		if l.operandIs64(0) {
			return OpBr64, nil
		}
		return OpBr32, nil
	default:
		return 0, errUnsupportedOperandCount
	}
}
