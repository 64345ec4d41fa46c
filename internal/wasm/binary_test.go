package wasm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// section builds one section: id, LEB128 length, then payload.
func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(payload)))...)
	return append(out, payload...)
}

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb64(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func name(s string) []byte {
	out := uleb128(uint32(len(s)))
	return append(out, s...)
}

// buildMinimalModule assembles a module with one imported function
// (wasi_snapshot_preview1.proc_exit, type () -> ()), one defined function
// of type (i32) -> (i32) exported as "_start", whose body is just
// local.get 0 followed by end.
func buildMinimalModule(t *testing.T) []byte {
	t.Helper()

	typeSec := section(sectionType, append(
		[]byte{2}, // 2 types
		append(
			// type 0: () -> ()
			append([]byte{0x60}, append(uleb128(0), uleb128(0)...)...),
			// type 1: (i32) -> (i32)
			append([]byte{0x60}, append(append(uleb128(1), byte(ValueTypeI32)), append(uleb128(1), byte(ValueTypeI32))...)...)...,
		)...,
	))

	importSec := section(sectionImport, append(
		uleb128(1), // 1 import
		append(name("wasi_snapshot_preview1"), append(name("proc_exit"), append([]byte{externTypeFunc}, uleb128(0)...)...)...)...,
	))

	funcSec := section(sectionFunction, append(uleb128(1), uleb128(1)...))

	exportSec := section(sectionExport, append(
		uleb128(1),
		append(name("_start"), append([]byte{externTypeFunc}, uleb128(1)...)...)...,
	))

	body := append([]byte{0x00}, 0x20, 0x00, 0x0B) // 0 locals, local.get 0, end
	codeSec := section(sectionCode, append(
		uleb128(1),
		append(uleb128(uint32(len(body))), body...)...,
	))

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{version, 0, 0, 0})
	buf.Write(typeSec)
	buf.Write(importSec)
	buf.Write(funcSec)
	buf.Write(exportSec)
	buf.Write(codeSec)
	return buf.Bytes()
}

func TestDecodeModule_Minimal(t *testing.T) {
	mod, err := DecodeModule(bytes.NewReader(buildMinimalModule(t)))
	require.NoError(t, err)

	require.Len(t, mod.Types, 2)
	require.Len(t, mod.Imports, 1)
	require.Equal(t, ImportModuleWASIPreview1, mod.Imports[0].Module)
	require.Equal(t, "proc_exit", mod.Imports[0].Name)

	require.Len(t, mod.Funcs, 1)
	require.Equal(t, uint32(1), mod.Funcs[0].TypeIdx)
	require.Equal(t, uint32(0), mod.Funcs[0].NumLocals)

	startIdx, ok := mod.Exports["_start"]
	require.True(t, ok)
	require.Equal(t, uint32(1), startIdx)
	require.True(t, mod.IsImportedFunc(0))
	require.False(t, mod.IsImportedFunc(startIdx))
	require.Equal(t, uint32(1), mod.FuncTypeIdx(startIdx))
}

func TestDecodeModule_RejectsBadMagic(t *testing.T) {
	_, err := DecodeModule(bytes.NewReader([]byte("not a wasm file")))
	require.Error(t, err)
}

func TestDecodeModule_RejectsUnsupportedVersion(t *testing.T) {
	data := append([]byte(magic), 2, 0, 0, 0)
	_, err := DecodeModule(bytes.NewReader(data))
	require.Error(t, err)
}

func TestDecodeModule_RejectsMultipleMemories(t *testing.T) {
	limitEntry := append([]byte{0}, uleb128(1)...)
	var memPayload []byte
	memPayload = append(memPayload, uleb128(2)...)
	memPayload = append(memPayload, limitEntry...)
	memPayload = append(memPayload, limitEntry...)
	memSec := section(sectionMemory, memPayload)

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{version, 0, 0, 0})
	buf.Write(memSec)

	_, err := DecodeModule(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
}

func TestDecodeModule_GlobalInit(t *testing.T) {
	globalSec := section(sectionGlobal, append(
		uleb128(1),
		append([]byte{byte(ValueTypeI32), 1, 0x41}, append(sleb64(42), 0x0B)...)...,
	))
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{version, 0, 0, 0})
	buf.Write(globalSec)

	mod, err := DecodeModule(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, mod.Globals, 1)
	require.True(t, mod.Globals[0].Mutable)
	require.Equal(t, uint64(42), mod.Globals[0].Init)
}
