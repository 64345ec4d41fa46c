// Package wasm holds the module-level data model produced by reading a
// WebAssembly binary: types, imports, functions, globals, memory and
// table limits, and the raw section bytes the decoder consumes.
package wasm

import "github.com/golang-wasm/zigvm/internal/bitpack"

// ValueType is one of the four WebAssembly 1.0 numeric value types.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7F
	ValueTypeI64 ValueType = 0x7E
	ValueTypeF32 ValueType = 0x7D
	ValueTypeF64 ValueType = 0x7C
	// ValueTypeFuncref is the only reference type this interpreter needs:
	// it backs call_indirect's table, never a first-class value on the
	// operand stack.
	ValueTypeFuncref ValueType = 0x70
)

// Is64 reports whether a value type occupies a 64-bit stack slot.
func (v ValueType) Is64() bool {
	return v == ValueTypeI64 || v == ValueTypeF64
}

// TypeInfo is a function signature: its parameter and result value
// types in order. ParamIs64/ResultIs64 report the slot width (32 or 64
// bits) the decoder and interpreter work from.
type TypeInfo struct {
	Params  []ValueType
	Results []ValueType
}

// ParamCount returns the number of parameters.
func (t *TypeInfo) ParamCount() uint32 { return uint32(len(t.Params)) }

// ResultCount returns the number of results.
func (t *TypeInfo) ResultCount() uint32 { return uint32(len(t.Results)) }

// ParamIs64 reports whether parameter i occupies a 64-bit slot.
func (t *TypeInfo) ParamIs64(i uint32) bool { return t.Params[i].Is64() }

// ResultIs64 reports whether result i occupies a 64-bit slot.
func (t *TypeInfo) ResultIs64(i uint32) bool { return t.Results[i].Is64() }

// Function is a module-defined (non-imported) function: its raw body,
// its signature, its declared local count, and the width of every local
// slot (parameters included, at index 0..ParamCount-1).
type Function struct {
	TypeIdx     uint32
	Code        []byte // raw, un-decoded function body (post locals-declaration)
	NumLocals   uint32 // count of declared locals, excluding parameters
	LocalWidths *bitpack.Bits
}

// ImportModule enumerates the single host module this interpreter binds,
// per the closed WASI surface the spec requires.
type ImportModule string

const ImportModuleWASIPreview1 ImportModule = "wasi_snapshot_preview1"

// Import is a single function imported from ImportModuleWASIPreview1.
type Import struct {
	Module  ImportModule
	Name    string
	TypeIdx uint32
}

// Global is a single module-defined global variable.
type Global struct {
	Type    ValueType
	Mutable bool
	// Init is the constant-expression initializer, already evaluated to
	// its runtime bit pattern (i32.const/i64.const/f32.const/f64.const
	// are the only constant expressions the binary reader accepts).
	Init uint64
}

// Limits is a resizable-entity's minimum and optional maximum, shared by
// memory and table declarations.
type Limits struct {
	Min uint32
	Max uint32
	HasMax bool
}

// ElementSegment is a single active element segment initializing the
// module's funcref table, starting at a constant i32 offset.
type ElementSegment struct {
	Offset  uint32
	FuncIdx []uint32
}

// DataSegment is a single active data segment initializing linear
// memory, starting at a constant i32 offset.
type DataSegment struct {
	Offset uint32
	Bytes  []byte
}

// Module is the fully parsed result of reading a .wasm binary: every
// section's contents, indexed the way the WebAssembly binary format
// indexes them (imports first, then module-defined entries).
type Module struct {
	Types    []TypeInfo
	Imports  []Import
	Funcs    []Function
	Memory   *Limits
	Table    *Limits
	Globals  []Global
	// Exports maps exported function names to function indices. The
	// start section, if present, is read and ignored: this interpreter
	// always calls the "_start" export explicitly, matching the source
	// program's shape.
	Exports  map[string]uint32
	Elements []ElementSegment
	Data     []DataSegment
	// DataCount is the value of an optional data count section; nil if
	// the section was absent.
	DataCount *uint32
}

// FuncCount returns the total number of functions visible by function
// index: imported functions first, then module-defined ones.
func (m *Module) FuncCount() uint32 {
	return uint32(len(m.Imports) + len(m.Funcs))
}

// FuncTypeIdx returns the type index of function index i across both
// imported and module-defined functions.
func (m *Module) FuncTypeIdx(i uint32) uint32 {
	if i < uint32(len(m.Imports)) {
		return m.Imports[i].TypeIdx
	}
	return m.Funcs[i-uint32(len(m.Imports))].TypeIdx
}

// IsImportedFunc reports whether function index i names an imported
// function rather than a module-defined one.
func (m *Module) IsImportedFunc(i uint32) bool {
	return i < uint32(len(m.Imports))
}
