package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/golang-wasm/zigvm/internal/bitpack"
	"github.com/golang-wasm/zigvm/internal/buildoptions"
	"github.com/golang-wasm/zigvm/internal/leb128"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

var (
	ErrUnsupportedOpcode       = errors.New("decode: unsupported opcode")
	errUnsupportedOperandCount = errors.New("decode: a label may carry at most one branch operand")
)

// Function is a single function's body, translated into the internal
// opcode/operand representation. Opcodes and Operands are parallel
// arrays addressed by ProgramCounter.
type Function struct {
	Opcodes  []Op
	Operands []uint32
}

// Decode translates one function body (locals already stripped by the
// caller — see wasm.Function.Code) into its internal representation.
func Decode(mod *wasm.Module, fn *wasm.Function) (*Function, error) {
	typeInfo := &mod.Types[fn.TypeIdx]
	d := &decoder{
		mod:      mod,
		code:     fn.Code,
		typeInfo: typeInfo,
		fn:       fn,
		stackTypes: bitpack.NewBits(buildoptions.DecodeStackTypeBitsCapacity),
	}
	d.labels = make([]label, 0, buildoptions.DecodeLabelStackCapacity)

	d.stackDepth = typeInfo.ParamCount() + fn.NumLocals + 2
	d.labels = append(d.labels, label{
		opcode:     WasmOpBlock,
		typeInfo:   *typeInfo,
		stackDepth: d.stackDepth,
		refList:    refListEnd,
	})

	for {
		done, err := d.step()
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if done {
			break
		}
	}
	return &Function{Opcodes: d.opcodes, Operands: d.operands}, nil
}

type decoder struct {
	mod      *wasm.Module
	fn       *wasm.Function
	typeInfo *wasm.TypeInfo

	code []byte
	pos  int

	opcodes  []Op
	operands []uint32

	stackDepth       uint32
	stackTypes       *bitpack.Bits
	unreachableDepth uint32
	labels           []label
}

func (d *decoder) curLabel() *label { return &d.labels[len(d.labels)-1] }

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.code) {
		return 0, fmt.Errorf("unexpected end of function body")
	}
	b := d.code[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readU32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(bytes.NewReader(d.code[d.pos:]))
	if err != nil {
		return 0, err
	}
	d.pos += int(n)
	return v, nil
}

func (d *decoder) readI64() (int64, error) {
	v, n, err := leb128.DecodeInt64(bytes.NewReader(d.code[d.pos:]))
	if err != nil {
		return 0, err
	}
	d.pos += int(n)
	return v, nil
}

func (d *decoder) emit(op Op) ProgramCounter {
	pc := ProgramCounter{Opcode: uint32(len(d.opcodes)), Operand: uint32(len(d.operands))}
	d.opcodes = append(d.opcodes, op)
	return pc
}

func (d *decoder) emitOperand(v uint32) {
	d.operands = append(d.operands, v)
}

func (d *decoder) curPC() ProgramCounter {
	return ProgramCounter{Opcode: uint32(len(d.opcodes)), Operand: uint32(len(d.operands))}
}

// patch overwrites the two-word branch target stored at operand index i.
func (d *decoder) patch(i uint32, pc ProgramCounter) {
	d.operands[i] = pc.Opcode
	d.operands[i+1] = pc.Operand
}

// emitBranchOperands appends the 3-word payload every br/br_if/br_table
// target shares: stack_adjust, then a 2-word placeholder patched either
// immediately (a loop, whose target is already known) or later via the
// label's ref_list (a forward branch to a block/if not yet closed).
func (d *decoder) emitBranchOperands(l *label, operandCount uint32) {
	adjust := d.stackDepth - operandCount - l.stackDepth
	d.emitOperand(adjust)
	if l.opcode == WasmOpLoop {
		d.emitOperand(l.loopPC.Opcode)
		d.emitOperand(l.loopPC.Operand)
		return
	}
	linkIdx := uint32(len(d.operands))
	d.emitOperand(l.refList)
	d.emitOperand(0)
	l.refList = linkIdx
}

// resolveRefList walks a label's ref_list, writing target into every
// pending forward-branch fixup.
func (d *decoder) resolveRefList(ref uint32, target ProgramCounter) {
	for ref != refListEnd {
		next := d.operands[ref]
		d.operands[ref+0] = target.Opcode
		d.operands[ref+1] = target.Operand
		ref = next
	}
}

// step decodes one instruction. It returns done=true once the
// function's outermost block has been closed by `end`.
func (d *decoder) step() (done bool, err error) {
	opByte, err := d.readByte()
	if err != nil {
		return false, err
	}
	op := WasmOp(opByte)
	var prefixed WasmPrefixedOp
	if op == WasmOpPrefixed {
		raw, err := d.readU32()
		if err != nil {
			return false, err
		}
		prefixed = WasmPrefixedOp(raw)
	}

	live := d.unreachableDepth == 0
	if live {
		if err := d.bookkeepStack(op, prefixed); err != nil {
			return false, err
		}
	}

	switch op {
	case WasmOpUnreachable:
		if d.unreachableDepth == 0 {
			d.emit(OpUnreachable)
		}

	case WasmOpNop:
		// no emission

	case WasmOpBlock, WasmOpLoop, WasmOpIf:
		if d.unreachableDepth != 0 {
			d.unreachableDepth++ // scope nested inside dead code
		}
		if err := d.decodeBlockHeader(op); err != nil {
			return false, err
		}

	case WasmOpElse:
		if d.unreachableDepth > 1 {
			break // else of a scope nested inside dead code
		}
		if err := d.decodeElse(); err != nil {
			return false, err
		}

	case WasmOpEnd:
		return d.decodeEnd()

	case WasmOpBr, WasmOpBrIf:
		if err := d.decodeBr(op); err != nil {
			return false, err
		}

	case WasmOpBrTable:
		if err := d.decodeBrTable(); err != nil {
			return false, err
		}

	case WasmOpCall:
		if err := d.decodeCall(); err != nil {
			return false, err
		}

	case WasmOpCallIndirect:
		if err := d.decodeCallIndirect(); err != nil {
			return false, err
		}

	case WasmOpReturn:
		if d.unreachableDepth == 0 {
			d.decodeReturn()
		}

	case WasmOpLocalGet, WasmOpLocalSet, WasmOpLocalTee:
		if err := d.decodeLocal(op); err != nil {
			return false, err
		}

	case WasmOpGlobalGet, WasmOpGlobalSet:
		if err := d.decodeGlobal(op); err != nil {
			return false, err
		}

	case WasmOpDrop:
		if d.unreachableDepth == 0 {
			if d.stackTypes.Get(int(d.stackDepth)) {
				d.emit(OpDrop64)
			} else {
				d.emit(OpDrop32)
			}
		}

	case WasmOpSelect:
		if d.unreachableDepth == 0 {
			if d.stackTypes.Get(int(d.stackDepth - 1)) {
				d.emit(OpSelect64)
			} else {
				d.emit(OpSelect32)
			}
		}

	case WasmOpMemorySize, WasmOpMemoryGrow:
		if _, err := d.readByte(); err != nil { // memory index, always 0
			return false, err
		}
		if d.unreachableDepth == 0 {
			d.emit(OpWasm)
			d.emitOperand(uint32(op))
		}

	case WasmOpI32Const:
		v, err := d.readI64()
		if err != nil {
			return false, err
		}
		if d.unreachableDepth == 0 {
			d.emit(OpConst32)
			d.emitOperand(uint32(int32(v)))
		}

	case WasmOpI64Const:
		v, err := d.readI64()
		if err != nil {
			return false, err
		}
		if d.unreachableDepth == 0 {
			d.emit(OpConst64)
			d.emitOperand(uint32(v))
			d.emitOperand(uint32(v >> 32))
		}

	case WasmOpF32Const:
		b := make([]byte, 4)
		for i := range b {
			if b[i], err = d.readByte(); err != nil {
				return false, err
			}
		}
		if d.unreachableDepth == 0 {
			d.emit(OpConst32)
			d.emitOperand(le32(b))
		}

	case WasmOpF64Const:
		b := make([]byte, 8)
		for i := range b {
			if b[i], err = d.readByte(); err != nil {
				return false, err
			}
		}
		if d.unreachableDepth == 0 {
			v := le64(b)
			d.emit(OpConst64)
			d.emitOperand(uint32(v))
			d.emitOperand(uint32(v >> 32))
		}

	default:
		if err := d.decodeWasmPassthrough(op, prefixed); err != nil {
			return false, err
		}
	}

	if live && (op == WasmOpUnreachable || op == WasmOpBr || op == WasmOpBrTable || op == WasmOpReturn) {
		d.unreachableDepth = 1
	}
	return false, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b[:4])) | uint64(le32(b[4:]))<<32
}

// decodeWasmPassthrough handles every instruction whose execution needs
// no resolved branch target: loads, stores, arithmetic, comparisons,
// conversions, extends, and reinterprets. Stack bookkeeping for these
// already ran in bookkeepStack; here we only need to (a) consume any
// trailing immediates (memarg alignment/offset for loads and stores)
// and (b) emit a single OpWasm/OpWasmPrefixed carrying the raw opcode,
// which internal/vm dispatches directly against wire-format semantics.
func (d *decoder) decodeWasmPassthrough(op WasmOp, prefixed WasmPrefixedOp) error {
	switch {
	case op >= WasmOpI32Load && op <= WasmOpI64Store32:
		if _, err := d.readU32(); err != nil { // align
			return err
		}
		if _, err := d.readU32(); err != nil { // offset
			return err
		}
	case op == WasmOpPrefixed:
		switch prefixed {
		case WasmPrefixedOpMemoryInit, WasmPrefixedOpTableInit:
			if _, err := d.readU32(); err != nil {
				return err
			}
			if _, err := d.readU32(); err != nil {
				return err
			}
		case WasmPrefixedOpDataDrop, WasmPrefixedOpElemDrop, WasmPrefixedOpTableGrow,
			WasmPrefixedOpTableSize, WasmPrefixedOpTableFill:
			if _, err := d.readU32(); err != nil {
				return err
			}
		case WasmPrefixedOpMemoryCopy, WasmPrefixedOpTableCopy:
			if _, err := d.readU32(); err != nil {
				return err
			}
			if _, err := d.readU32(); err != nil {
				return err
			}
		case WasmPrefixedOpMemoryFill:
			if _, err := d.readU32(); err != nil {
				return err
			}
		}
	}

	if d.unreachableDepth != 0 {
		return nil
	}
	if op == WasmOpPrefixed {
		d.emit(OpWasmPrefixed)
		d.emitOperand(uint32(prefixed))
	} else {
		d.emit(OpWasm)
		d.emitOperand(uint32(op))
	}
	return nil
}

func (d *decoder) decodeBlockHeader(op WasmOp) error {
	blockType, err := d.readI64()
	if err != nil {
		return err
	}
	if d.unreachableDepth != 0 {
		return nil
	}

	var ti wasm.TypeInfo
	if blockType < 0 {
		switch blockType {
		case -0x40: // empty
		case -1, -3: // i32 or f32 result (encoded as negative value-type byte)
			ti.Results = []wasm.ValueType{wasm.ValueTypeI32}
		case -2, -4: // i64 or f64 result
			ti.Results = []wasm.ValueType{wasm.ValueTypeI64}
		default:
			return fmt.Errorf("unexpected inline block type %d", blockType)
		}
		// Recover the precise value type for width-correct operand
		// classification (i32/f32 both occupy a 32-bit slot, i64/f64
		// both occupy 64-bit, so -1..-4 above already group correctly;
		// this refines which literal type is recorded for diagnostics).
		switch blockType {
		case -1:
			ti.Results = []wasm.ValueType{wasm.ValueTypeI32}
		case -2:
			ti.Results = []wasm.ValueType{wasm.ValueTypeI64}
		case -3:
			ti.Results = []wasm.ValueType{wasm.ValueTypeF32}
		case -4:
			ti.Results = []wasm.ValueType{wasm.ValueTypeF64}
		}
	} else {
		ti = d.mod.Types[blockType]
	}

	l := label{
		opcode:     op,
		typeInfo:   ti,
		stackDepth: d.stackDepth - ti.ParamCount(),
		refList:    refListEnd,
	}
	switch op {
	case WasmOpLoop:
		l.loopPC = d.curPC()
	case WasmOpIf:
		pc := d.emit(OpBrIfEqzVoid)
		_ = pc
		l.elseRef = uint32(len(d.operands)) + 1
		d.emitOperand(0)
		d.emitOperand(0)
		d.emitOperand(0)
	}
	d.labels = append(d.labels, l)
	return nil
}

func (d *decoder) decodeElse() error {
	l := d.curLabel()
	l.opcode = WasmOpElse
	if d.unreachableDepth == 0 {
		branchOp, err := l.branchOp()
		if err != nil {
			return err
		}
		d.emit(branchOp)
		d.emitBranchOperands(l, l.operandCount())
		if d.stackDepth-l.typeInfo.ResultCount() != l.stackDepth {
			return fmt.Errorf("internal: else stack depth mismatch")
		}
	} else {
		d.unreachableDepth = 0
	}
	d.patch(l.elseRef, d.curPC())
	d.stackDepth = l.stackDepth + l.typeInfo.ParamCount()
	return nil
}

func (d *decoder) decodeEnd() (done bool, err error) {
	if d.unreachableDepth > 1 {
		d.unreachableDepth--
		return false, nil
	}
	d.unreachableDepth = 0
	l := d.curLabel()
	target := d.curPC()
	if l.opcode == WasmOpLoop {
		target = l.loopPC
	}
	if l.opcode == WasmOpIf {
		d.patch(l.elseRef, target)
	}
	d.resolveRefList(l.refList, target)
	d.stackDepth = l.stackDepth + l.typeInfo.ResultCount()

	if len(d.labels) == 1 {
		operandCount := l.operandCount()
		retOp, err := returnOp(operandCount, l)
		if err != nil {
			return false, err
		}
		d.emit(retOp)
		d.emitOperand(2 + operandCount)
		d.stackDepth -= operandCount
		d.emitOperand(d.stackDepth)
		return true, nil
	}
	d.labels = d.labels[:len(d.labels)-1]
	return false, nil
}

func returnOp(operandCount uint32, l *label) (Op, error) {
	switch operandCount {
	case 0:
		return OpReturnVoid, nil
	case 1:
		if l.operandIs64(0) {
			return OpReturn64, nil
		}
		return OpReturn32, nil
	default:
		return 0, errUnsupportedOperandCount
	}
}

func (d *decoder) decodeBr(op WasmOp) error {
	labelIdx, err := d.readU32()
	if err != nil {
		return err
	}
	if d.unreachableDepth != 0 {
		return nil
	}
	l := &d.labels[uint32(len(d.labels))-1-labelIdx]
	operandCount := l.operandCount()
	var brOp Op
	switch op {
	case WasmOpBr:
		brOp, err = l.branchOp()
	case WasmOpBrIf:
		switch operandCount {
		case 0:
			brOp = OpBrIfNezVoid
		case 1:
			if l.operandIs64(0) {
				brOp = OpBrIfNez64
			} else {
				brOp = OpBrIfNez32
			}
		default:
			err = errUnsupportedOperandCount
		}
	}
	if err != nil {
		return err
	}
	d.emit(brOp)
	d.emitBranchOperands(l, operandCount)
	return nil
}

func (d *decoder) decodeBrTable() error {
	n, err := d.readU32()
	if err != nil {
		return err
	}
	first := true
	for i := uint32(0); i <= n; i++ {
		labelIdx, err := d.readU32()
		if err != nil {
			return err
		}
		if d.unreachableDepth != 0 {
			continue
		}
		l := &d.labels[uint32(len(d.labels))-1-labelIdx]
		operandCount := l.operandCount()
		if first {
			first = false
			var brOp Op
			switch operandCount {
			case 0:
				brOp = OpBrTableVoid
			case 1:
				if l.operandIs64(0) {
					brOp = OpBrTable64
				} else {
					brOp = OpBrTable32
				}
			default:
				return errUnsupportedOperandCount
			}
			d.emit(brOp)
			d.emitOperand(n)
		}
		d.emitBranchOperands(l, operandCount)
	}
	return nil
}

func (d *decoder) decodeCall() error {
	fnIdx, err := d.readU32()
	if err != nil {
		return err
	}
	if d.unreachableDepth != 0 {
		return nil
	}
	d.emit(OpCall)
	d.emitOperand(fnIdx)
	typeIdx := d.mod.FuncTypeIdx(fnIdx)
	ti := &d.mod.Types[typeIdx]
	d.stackDepth -= ti.ParamCount()
	for i := uint32(0); i < ti.ResultCount(); i++ {
		d.stackTypes.Set(int(d.stackDepth+i), ti.ResultIs64(i))
	}
	d.stackDepth += ti.ResultCount()
	return nil
}

func (d *decoder) decodeCallIndirect() error {
	typeIdx, err := d.readU32()
	if err != nil {
		return err
	}
	tableIdx, err := d.readU32()
	if err != nil {
		return err
	}
	if tableIdx != 0 {
		return fmt.Errorf("unsupported table index %d", tableIdx)
	}
	if d.unreachableDepth != 0 {
		return nil
	}
	d.emit(OpWasm)
	d.emitOperand(uint32(WasmOpCallIndirect))
	d.emitOperand(typeIdx)
	ti := &d.mod.Types[typeIdx]
	d.stackDepth -= ti.ParamCount()
	for i := uint32(0); i < ti.ResultCount(); i++ {
		d.stackTypes.Set(int(d.stackDepth+i), ti.ResultIs64(i))
	}
	d.stackDepth += ti.ResultCount()
	return nil
}

func (d *decoder) decodeReturn() {
	l := &d.labels[0]
	operandCount := l.operandCount()
	var op Op
	switch operandCount {
	case 0:
		op = OpReturnVoid
	case 1:
		if l.operandIs64(0) {
			op = OpReturn64
		} else {
			op = OpReturn32
		}
	}
	d.emit(op)
	d.emitOperand(2 + d.stackDepth - l.stackDepth)
	d.stackDepth -= operandCount
	d.emitOperand(d.stackDepth)
}

func (d *decoder) decodeLocal(op WasmOp) error {
	localIdx, err := d.readU32()
	if err != nil {
		return err
	}
	if d.unreachableDepth != 0 {
		return nil
	}
	is64 := d.fn.LocalWidths.Get(int(localIdx))
	// bookkeepStack has already applied this instruction's depth change;
	// local.get's offset is taken before its push, so step back over it.
	initialDepth := d.stackDepth
	if op == WasmOpLocalGet {
		initialDepth--
	}
	var emitted Op
	switch op {
	case WasmOpLocalGet:
		if is64 {
			emitted = OpLocalGet64
		} else {
			emitted = OpLocalGet32
		}
	case WasmOpLocalSet:
		if is64 {
			emitted = OpLocalSet64
		} else {
			emitted = OpLocalSet32
		}
	case WasmOpLocalTee:
		if is64 {
			emitted = OpLocalTee64
		} else {
			emitted = OpLocalTee32
		}
	}
	d.emit(emitted)
	d.emitOperand(initialDepth - localIdx)
	if op == WasmOpLocalGet {
		d.stackTypes.Set(int(d.stackDepth-1), is64)
	}
	return nil
}

func (d *decoder) decodeGlobal(op WasmOp) error {
	globalIdx, err := d.readU32()
	if err != nil {
		return err
	}
	if d.unreachableDepth != 0 {
		return nil
	}
	var emitted Op
	if globalIdx == 0 {
		if op == WasmOpGlobalGet {
			emitted = OpGlobalGet0_32
		} else {
			emitted = OpGlobalSet0_32
		}
	} else {
		if op == WasmOpGlobalGet {
			emitted = OpGlobalGet32
		} else {
			emitted = OpGlobalSet32
		}
	}
	d.emit(emitted)
	if globalIdx != 0 {
		d.emitOperand(globalIdx)
	}
	if op == WasmOpGlobalGet {
		d.stackTypes.Set(int(d.stackDepth-1), false) // every global is an i32
	}
	return nil
}
