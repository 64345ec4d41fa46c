package decode

import "fmt"

// bookkeepStack tracks the decoder's notion of virtual operand-stack
// depth and, for every slot pushed, its 32-bit/64-bit width — mirroring
// the two-switch structure of the decoder this package is grounded on:
// one switch adjusts stack_depth, a second (for opcodes that push)
// records the pushed slot's width into the scratch bitmap. It only
// runs while unreachableDepth is zero; unreachable code still has to
// consume its immediates (the caller does that unconditionally) but
// never adjusts the stack.
func (d *decoder) bookkeepStack(op WasmOp, prefixed WasmPrefixedOp) error {
	switch op {
	case WasmOpUnreachable, WasmOpNop, WasmOpBlock, WasmOpLoop, WasmOpElse, WasmOpEnd,
		WasmOpBr, WasmOpCall, WasmOpReturn:
		// no change

	case WasmOpIf, WasmOpBrIf, WasmOpBrTable, WasmOpCallIndirect, WasmOpDrop,
		WasmOpLocalSet, WasmOpGlobalSet:
		d.stackDepth--

	case WasmOpSelect:
		d.stackDepth -= 2

	case WasmOpLocalGet, WasmOpGlobalGet, WasmOpMemorySize,
		WasmOpI32Const, WasmOpI64Const, WasmOpF32Const, WasmOpF64Const:
		d.stackDepth++

	case WasmOpLocalTee,
		WasmOpI32Load, WasmOpI64Load, WasmOpF32Load, WasmOpF64Load,
		WasmOpI32Load8S, WasmOpI32Load8U, WasmOpI32Load16S, WasmOpI32Load16U,
		WasmOpI64Load8S, WasmOpI64Load8U, WasmOpI64Load16S, WasmOpI64Load16U,
		WasmOpI64Load32S, WasmOpI64Load32U, WasmOpMemoryGrow,
		WasmOpI32Eqz, WasmOpI32Clz, WasmOpI32Ctz, WasmOpI32Popcnt,
		WasmOpI64Eqz, WasmOpI64Clz, WasmOpI64Ctz, WasmOpI64Popcnt,
		WasmOpF32Abs, WasmOpF32Neg, WasmOpF32Ceil, WasmOpF32Floor, WasmOpF32Trunc, WasmOpF32Nearest, WasmOpF32Sqrt,
		WasmOpF64Abs, WasmOpF64Neg, WasmOpF64Ceil, WasmOpF64Floor, WasmOpF64Trunc, WasmOpF64Nearest, WasmOpF64Sqrt,
		WasmOpI32WrapI64, WasmOpI32TruncF32S, WasmOpI32TruncF32U, WasmOpI32TruncF64S, WasmOpI32TruncF64U,
		WasmOpI64ExtendI32S, WasmOpI64ExtendI32U,
		WasmOpI64TruncF32S, WasmOpI64TruncF32U, WasmOpI64TruncF64S, WasmOpI64TruncF64U,
		WasmOpF32ConvertI32S, WasmOpF32ConvertI32U, WasmOpF32ConvertI64S, WasmOpF32ConvertI64U, WasmOpF32DemoteF64,
		WasmOpF64ConvertI32S, WasmOpF64ConvertI32U, WasmOpF64ConvertI64S, WasmOpF64ConvertI64U, WasmOpF64PromoteF32,
		WasmOpI32ReinterpretF32, WasmOpI64ReinterpretF64, WasmOpF32ReinterpretI32, WasmOpF64ReinterpretI64,
		WasmOpI32Extend8S, WasmOpI32Extend16S, WasmOpI64Extend8S, WasmOpI64Extend16S, WasmOpI64Extend32S:
		// pushes a result of the same arity as the single value popped; no depth change

	case WasmOpI32Store, WasmOpI64Store, WasmOpF32Store, WasmOpF64Store,
		WasmOpI32Store8, WasmOpI32Store16, WasmOpI64Store8, WasmOpI64Store16, WasmOpI64Store32:
		d.stackDepth -= 2

	case WasmOpI32Eq, WasmOpI32Ne, WasmOpI32LtS, WasmOpI32LtU, WasmOpI32GtS, WasmOpI32GtU,
		WasmOpI32LeS, WasmOpI32LeU, WasmOpI32GeS, WasmOpI32GeU,
		WasmOpI64Eq, WasmOpI64Ne, WasmOpI64LtS, WasmOpI64LtU, WasmOpI64GtS, WasmOpI64GtU,
		WasmOpI64LeS, WasmOpI64LeU, WasmOpI64GeS, WasmOpI64GeU,
		WasmOpF32Eq, WasmOpF32Ne, WasmOpF32Lt, WasmOpF32Gt, WasmOpF32Le, WasmOpF32Ge,
		WasmOpF64Eq, WasmOpF64Ne, WasmOpF64Lt, WasmOpF64Gt, WasmOpF64Le, WasmOpF64Ge,
		WasmOpI32Add, WasmOpI32Sub, WasmOpI32Mul, WasmOpI32DivS, WasmOpI32DivU, WasmOpI32RemS, WasmOpI32RemU,
		WasmOpI32And, WasmOpI32Or, WasmOpI32Xor, WasmOpI32Shl, WasmOpI32ShrS, WasmOpI32ShrU, WasmOpI32Rotl, WasmOpI32Rotr,
		WasmOpI64Add, WasmOpI64Sub, WasmOpI64Mul, WasmOpI64DivS, WasmOpI64DivU, WasmOpI64RemS, WasmOpI64RemU,
		WasmOpI64And, WasmOpI64Or, WasmOpI64Xor, WasmOpI64Shl, WasmOpI64ShrS, WasmOpI64ShrU, WasmOpI64Rotl, WasmOpI64Rotr,
		WasmOpF32Add, WasmOpF32Sub, WasmOpF32Mul, WasmOpF32Div, WasmOpF32Min, WasmOpF32Max, WasmOpF32Copysign,
		WasmOpF64Add, WasmOpF64Sub, WasmOpF64Mul, WasmOpF64Div, WasmOpF64Min, WasmOpF64Max, WasmOpF64Copysign:
		d.stackDepth--

	case WasmOpPrefixed:
		switch prefixed {
		case WasmPrefixedOpI32TruncSatF32S, WasmPrefixedOpI32TruncSatF32U,
			WasmPrefixedOpI32TruncSatF64S, WasmPrefixedOpI32TruncSatF64U,
			WasmPrefixedOpI64TruncSatF32S, WasmPrefixedOpI64TruncSatF32U,
			WasmPrefixedOpI64TruncSatF64S, WasmPrefixedOpI64TruncSatF64U:
			// no depth change
		case WasmPrefixedOpMemoryInit, WasmPrefixedOpMemoryCopy, WasmPrefixedOpMemoryFill,
			WasmPrefixedOpTableInit, WasmPrefixedOpTableCopy, WasmPrefixedOpTableFill:
			d.stackDepth -= 3
		case WasmPrefixedOpDataDrop, WasmPrefixedOpElemDrop:
			// no depth change
		case WasmPrefixedOpTableGrow:
			d.stackDepth--
		case WasmPrefixedOpTableSize:
			d.stackDepth++
		default:
			return fmt.Errorf("%w: prefixed opcode 0x%x", ErrUnsupportedOpcode, prefixed)
		}

	default:
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedOpcode, op)
	}

	d.bookkeepStackType(op, prefixed)
	return nil
}

// bookkeepStackType records the pushed value's width for the opcodes
// that push exactly one slot whose width isn't already implied by the
// opcode's own Op variant (local.get/global.get/call/call_indirect are
// handled at their call sites instead, since their width depends on a
// type-table lookup rather than the opcode alone).
func (d *decoder) bookkeepStackType(op WasmOp, prefixed WasmPrefixedOp) {
	switch op {
	case WasmOpI32Const, WasmOpF32Const,
		WasmOpMemorySize, WasmOpMemoryGrow,
		WasmOpI32Load, WasmOpF32Load,
		WasmOpI32Load8S, WasmOpI32Load8U, WasmOpI32Load16S, WasmOpI32Load16U,
		WasmOpI32Eqz, WasmOpI32Clz, WasmOpI32Ctz, WasmOpI32Popcnt, WasmOpI64Eqz,
		WasmOpF32Abs, WasmOpF32Neg, WasmOpF32Ceil, WasmOpF32Floor, WasmOpF32Trunc, WasmOpF32Nearest, WasmOpF32Sqrt,
		WasmOpI32WrapI64, WasmOpI32TruncF32S, WasmOpI32TruncF32U, WasmOpI32TruncF64S, WasmOpI32TruncF64U,
		WasmOpF32ConvertI32S, WasmOpF32ConvertI32U, WasmOpF32ConvertI64S, WasmOpF32ConvertI64U, WasmOpF32DemoteF64,
		WasmOpI32ReinterpretF32, WasmOpF32ReinterpretI32, WasmOpI32Extend8S, WasmOpI32Extend16S,
		WasmOpI32Eq, WasmOpI32Ne, WasmOpI32LtS, WasmOpI32LtU, WasmOpI32GtS, WasmOpI32GtU, WasmOpI32LeS, WasmOpI32LeU,
		WasmOpI32GeS, WasmOpI32GeU, WasmOpI64Eq, WasmOpI64Ne, WasmOpI64LtS, WasmOpI64LtU, WasmOpI64GtS, WasmOpI64GtU,
		WasmOpI64LeS, WasmOpI64LeU, WasmOpI64GeS, WasmOpI64GeU,
		WasmOpF32Eq, WasmOpF32Ne, WasmOpF32Lt, WasmOpF32Gt, WasmOpF32Le, WasmOpF32Ge,
		WasmOpF64Eq, WasmOpF64Ne, WasmOpF64Lt, WasmOpF64Gt, WasmOpF64Le, WasmOpF64Ge,
		WasmOpI32Add, WasmOpI32Sub, WasmOpI32Mul, WasmOpI32DivS, WasmOpI32DivU, WasmOpI32RemS, WasmOpI32RemU,
		WasmOpI32And, WasmOpI32Or, WasmOpI32Xor, WasmOpI32Shl, WasmOpI32ShrS, WasmOpI32ShrU, WasmOpI32Rotl, WasmOpI32Rotr,
		WasmOpF32Add, WasmOpF32Sub, WasmOpF32Mul, WasmOpF32Div, WasmOpF32Min, WasmOpF32Max, WasmOpF32Copysign:
		d.stackTypes.Set(int(d.stackDepth-1), false)

	case WasmOpI64Const, WasmOpF64Const, WasmOpI64Load, WasmOpF64Load,
		WasmOpI64Load8S, WasmOpI64Load8U, WasmOpI64Load16S, WasmOpI64Load16U, WasmOpI64Load32S, WasmOpI64Load32U,
		WasmOpI64Clz, WasmOpI64Ctz, WasmOpI64Popcnt,
		WasmOpF64Abs, WasmOpF64Neg, WasmOpF64Ceil, WasmOpF64Floor, WasmOpF64Trunc, WasmOpF64Nearest, WasmOpF64Sqrt,
		WasmOpI64ExtendI32S, WasmOpI64ExtendI32U, WasmOpI64TruncF32S, WasmOpI64TruncF32U, WasmOpI64TruncF64S, WasmOpI64TruncF64U,
		WasmOpF64ConvertI32S, WasmOpF64ConvertI32U, WasmOpF64ConvertI64S, WasmOpF64ConvertI64U, WasmOpF64PromoteF32,
		WasmOpI64ReinterpretF64, WasmOpF64ReinterpretI64, WasmOpI64Extend8S, WasmOpI64Extend16S, WasmOpI64Extend32S,
		WasmOpI64Add, WasmOpI64Sub, WasmOpI64Mul, WasmOpI64DivS, WasmOpI64DivU, WasmOpI64RemS, WasmOpI64RemU,
		WasmOpI64And, WasmOpI64Or, WasmOpI64Xor, WasmOpI64Shl, WasmOpI64ShrS, WasmOpI64ShrU, WasmOpI64Rotl, WasmOpI64Rotr,
		WasmOpF64Add, WasmOpF64Sub, WasmOpF64Mul, WasmOpF64Div, WasmOpF64Min, WasmOpF64Max, WasmOpF64Copysign:
		d.stackTypes.Set(int(d.stackDepth-1), true)

	case WasmOpPrefixed:
		switch prefixed {
		case WasmPrefixedOpI32TruncSatF32S, WasmPrefixedOpI32TruncSatF32U,
			WasmPrefixedOpI32TruncSatF64S, WasmPrefixedOpI32TruncSatF64U,
			WasmPrefixedOpTableGrow, WasmPrefixedOpTableSize:
			d.stackTypes.Set(int(d.stackDepth-1), false)
		case WasmPrefixedOpI64TruncSatF32S, WasmPrefixedOpI64TruncSatF32U,
			WasmPrefixedOpI64TruncSatF64S, WasmPrefixedOpI64TruncSatF64U:
			d.stackTypes.Set(int(d.stackDepth-1), true)
		}
	}
}
