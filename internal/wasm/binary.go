package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang-wasm/zigvm/internal/bitpack"
	"github.com/golang-wasm/zigvm/internal/leb128"
)

const (
	magic   = "\x00asm"
	version = 1
)

// section kinds, in the order the binary format numbers them.
const (
	sectionCustom byte = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
	sectionDataCount
)

const (
	externTypeFunc   byte = 0x00
	externTypeTable  byte = 0x01
	externTypeMemory byte = 0x02
	externTypeGlobal byte = 0x03
)

// DecodeModule reads a complete WebAssembly binary module from r,
// validating the magic/version header and walking every section kind.
func DecodeModule(r io.Reader) (*Module, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("wasm: read module: %w", err)
	}
	data := buf.Bytes()
	if len(data) < 8 || string(data[:4]) != magic {
		return nil, fmt.Errorf("wasm: missing \\0asm header")
	}
	if data[4] != version || data[5] != 0 || data[6] != 0 || data[7] != 0 {
		return nil, fmt.Errorf("wasm: unsupported binary version")
	}

	d := &decoder{data: data, pos: 8}
	mod := &Module{Exports: map[string]uint32{}}

	var funcTypeIdxs []uint32
	var lastSection byte
	var sawSection bool

	for d.pos < len(d.data) {
		id, err := d.byte()
		if err != nil {
			return nil, err
		}
		size, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("wasm: section %d size: %w", id, err)
		}
		sectionEnd := d.pos + int(size)
		if sectionEnd > len(d.data) {
			return nil, fmt.Errorf("wasm: section %d overruns module", id)
		}
		if id != sectionCustom {
			if sawSection && id <= lastSection {
				return nil, fmt.Errorf("wasm: section %d out of order", id)
			}
			lastSection = id
			sawSection = true
		}

		switch id {
		case sectionCustom:
			// Not interpreted; names/debug info play no role here.
		case sectionType:
			if mod.Types, err = d.readTypeSection(); err != nil {
				return nil, err
			}
		case sectionImport:
			if mod.Imports, err = d.readImportSection(); err != nil {
				return nil, err
			}
		case sectionFunction:
			if funcTypeIdxs, err = d.readFunctionSection(); err != nil {
				return nil, err
			}
			mod.Funcs = make([]Function, len(funcTypeIdxs))
			for i, t := range funcTypeIdxs {
				mod.Funcs[i].TypeIdx = t
			}
		case sectionTable:
			if mod.Table, err = d.readTableSection(); err != nil {
				return nil, err
			}
		case sectionMemory:
			if mod.Memory, err = d.readMemorySection(); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if mod.Globals, err = d.readGlobalSection(); err != nil {
				return nil, err
			}
		case sectionExport:
			if mod.Exports, err = d.readExportSection(); err != nil {
				return nil, err
			}
		case sectionStart:
			if _, err = d.u32(); err != nil {
				return nil, err
			}
		case sectionElement:
			if mod.Elements, err = d.readElementSection(); err != nil {
				return nil, err
			}
		case sectionCode:
			if err = d.readCodeSection(mod); err != nil {
				return nil, err
			}
		case sectionData:
			if mod.Data, err = d.readDataSection(); err != nil {
				return nil, err
			}
		case sectionDataCount:
			n, err := d.u32()
			if err != nil {
				return nil, err
			}
			mod.DataCount = &n
		default:
			return nil, fmt.Errorf("wasm: unknown section id %d", id)
		}

		if d.pos != sectionEnd {
			return nil, fmt.Errorf("wasm: section %d: declared size %d does not match contents", id, size)
		}
	}
	return mod, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(bytes.NewReader(d.data[d.pos:]))
	if err != nil {
		return 0, err
	}
	d.pos += int(n)
	return v, nil
}

func (d *decoder) i64Const() (int64, error) {
	v, n, err := leb128.DecodeInt64(bytes.NewReader(d.data[d.pos:]))
	if err != nil {
		return 0, err
	}
	d.pos += int(n)
	return v, nil
}

func (d *decoder) valType() (ValueType, error) {
	b, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch ValueType(b) {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeFuncref:
		return ValueType(b), nil
	default:
		return 0, fmt.Errorf("wasm: unknown value type 0x%x", b)
	}
}

func (d *decoder) name() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) limits() (Limits, error) {
	flag, err := d.byte()
	if err != nil {
		return Limits{}, err
	}
	min, err := d.u32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	if flag == 1 {
		max, err := d.u32()
		if err != nil {
			return Limits{}, err
		}
		l.Max, l.HasMax = max, true
	}
	return l, nil
}

// constI32Expr reads a constant expression producing a single i32,
// terminated by an explicit `end` (0x0B) opcode. Only i32.const is
// supported: it is the only form an active segment's offset ever needs
// in this module shape (global initializers go through constGlobalInit).
func (d *decoder) constI32Expr() (uint32, error) {
	op, err := d.byte()
	if err != nil {
		return 0, err
	}
	if op != 0x41 { // i32.const
		return 0, fmt.Errorf("wasm: unsupported constant expression opcode 0x%x", op)
	}
	v, err := d.i64Const()
	if err != nil {
		return 0, err
	}
	end, err := d.byte()
	if err != nil {
		return 0, err
	}
	if end != 0x0B {
		return 0, fmt.Errorf("wasm: constant expression missing end")
	}
	return uint32(v), nil
}

func (d *decoder) constGlobalInit(t ValueType) (uint64, error) {
	op, err := d.byte()
	if err != nil {
		return 0, err
	}
	var v uint64
	switch op {
	case 0x41: // i32.const
		iv, err := d.i64Const()
		if err != nil {
			return 0, err
		}
		v = uint64(uint32(iv))
	case 0x42: // i64.const
		iv, err := d.i64Const()
		if err != nil {
			return 0, err
		}
		v = uint64(iv)
	case 0x43: // f32.const
		b, err := d.bytes(4)
		if err != nil {
			return 0, err
		}
		v = uint64(le32(b))
	case 0x44: // f64.const
		b, err := d.bytes(8)
		if err != nil {
			return 0, err
		}
		v = le64(b)
	default:
		return 0, fmt.Errorf("wasm: unsupported global initializer opcode 0x%x", op)
	}
	_ = t
	end, err := d.byte()
	if err != nil {
		return 0, err
	}
	if end != 0x0B {
		return 0, fmt.Errorf("wasm: global initializer missing end")
	}
	return v, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b[:4])) | uint64(le32(b[4:]))<<32
}

func (d *decoder) readTypeSection() ([]TypeInfo, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	types := make([]TypeInfo, count)
	for i := range types {
		form, err := d.byte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("wasm: type %d: expected func form 0x60, got 0x%x", i, form)
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		params := make([]ValueType, n)
		for j := range params {
			if params[j], err = d.valType(); err != nil {
				return nil, err
			}
		}
		n, err = d.u32()
		if err != nil {
			return nil, err
		}
		results := make([]ValueType, n)
		for j := range results {
			if results[j], err = d.valType(); err != nil {
				return nil, err
			}
		}
		types[i] = TypeInfo{Params: params, Results: results}
	}
	return types, nil
}

func (d *decoder) readImportSection() ([]Import, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := d.name()
		if err != nil {
			return nil, err
		}
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		kind, err := d.byte()
		if err != nil {
			return nil, err
		}
		switch kind {
		case externTypeFunc:
			typeIdx, err := d.u32()
			if err != nil {
				return nil, err
			}
			if mod != string(ImportModuleWASIPreview1) {
				return nil, fmt.Errorf("wasm: unsupported import module %q", mod)
			}
			imports = append(imports, Import{Module: ImportModuleWASIPreview1, Name: name, TypeIdx: typeIdx})
		default:
			return nil, fmt.Errorf("wasm: unsupported import kind %d for %q.%q", kind, mod, name)
		}
	}
	return imports, nil
}

func (d *decoder) readFunctionSection() ([]uint32, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = d.u32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) readTableSection() (*Limits, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, fmt.Errorf("wasm: exactly one table is supported, got %d", count)
	}
	elemType, err := d.valType()
	if err != nil {
		return nil, err
	}
	if elemType != ValueTypeFuncref {
		return nil, fmt.Errorf("wasm: only funcref tables are supported")
	}
	l, err := d.limits()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (d *decoder) readMemorySection() (*Limits, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, fmt.Errorf("wasm: exactly one memory is supported, got %d", count)
	}
	l, err := d.limits()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (d *decoder) readGlobalSection() ([]Global, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	globals := make([]Global, count)
	for i := range globals {
		t, err := d.valType()
		if err != nil {
			return nil, err
		}
		mutByte, err := d.byte()
		if err != nil {
			return nil, err
		}
		init, err := d.constGlobalInit(t)
		if err != nil {
			return nil, err
		}
		globals[i] = Global{Type: t, Mutable: mutByte == 1, Init: init}
	}
	return globals, nil
}

func (d *decoder) readExportSection() (map[string]uint32, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	exports := make(map[string]uint32, count)
	for i := uint32(0); i < count; i++ {
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		kind, err := d.byte()
		if err != nil {
			return nil, err
		}
		idx, err := d.u32()
		if err != nil {
			return nil, err
		}
		if kind == externTypeFunc {
			exports[name] = idx
		}
	}
	return exports, nil
}

func (d *decoder) readElementSection() ([]ElementSegment, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if count > 1 {
		return nil, fmt.Errorf("wasm: at most one element segment is supported, got %d", count)
	}
	segs := make([]ElementSegment, count)
	for i := range segs {
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		if flags != 0 {
			return nil, fmt.Errorf("wasm: only active table-0 element segments are supported")
		}
		offset, err := d.constI32Expr()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint32, n)
		for j := range idxs {
			if idxs[j], err = d.u32(); err != nil {
				return nil, err
			}
		}
		segs[i] = ElementSegment{Offset: offset, FuncIdx: idxs}
	}
	return segs, nil
}

func (d *decoder) readDataSection() ([]DataSegment, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if count > 1 {
		return nil, fmt.Errorf("wasm: at most one data segment is supported, got %d", count)
	}
	segs := make([]DataSegment, count)
	for i := range segs {
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		if flags != 0 {
			return nil, fmt.Errorf("wasm: only active memory-0 data segments are supported")
		}
		offset, err := d.constI32Expr()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.bytes(int(n))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, len(b))
		copy(buf, b)
		segs[i] = DataSegment{Offset: offset, Bytes: buf}
	}
	return segs, nil
}

func (d *decoder) readCodeSection(mod *Module) error {
	count, err := d.u32()
	if err != nil {
		return err
	}
	if int(count) != len(mod.Funcs) {
		return fmt.Errorf("wasm: code section has %d entries, function section declared %d", count, len(mod.Funcs))
	}
	for i := range mod.Funcs {
		size, err := d.u32()
		if err != nil {
			return err
		}
		bodyEnd := d.pos + int(size)
		f := &mod.Funcs[i]
		typeInfo := &mod.Types[f.TypeIdx]

		localWidths := bitpack.NewBits(int(typeInfo.ParamCount()))
		for j := uint32(0); j < typeInfo.ParamCount(); j++ {
			localWidths.Set(int(j), typeInfo.ParamIs64(j))
		}

		localDeclCount, err := d.u32()
		if err != nil {
			return err
		}
		var numLocals uint32
		for j := uint32(0); j < localDeclCount; j++ {
			n, err := d.u32()
			if err != nil {
				return err
			}
			t, err := d.valType()
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				localWidths.Set(int(typeInfo.ParamCount()+numLocals+k), t.Is64())
			}
			numLocals += n
		}
		f.NumLocals = numLocals
		f.LocalWidths = localWidths

		if bodyEnd > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		f.Code = d.data[d.pos:bodyEnd]
		d.pos = bodyEnd
	}
	return nil
}
