package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golang-wasm/zigvm/internal/bitpack"
	"github.com/golang-wasm/zigvm/internal/decode"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

type nopHost struct{}

func (nopHost) Resolve(name string) (HostFunc, bool) { return nil, false }

func widths(bits ...bool) *bitpack.Bits {
	b := bitpack.NewBits(len(bits))
	for i, v := range bits {
		b.Set(i, v)
	}
	return b
}

// buildVM decodes a single-function module and returns a VM with that
// function installed at module-defined index 0 (no imports).
func buildVM(t *testing.T, sig wasm.TypeInfo, code []byte, localWidths *bitpack.Bits, numLocals uint32) (*VM, uint32) {
	t.Helper()
	mod := &wasm.Module{Types: []wasm.TypeInfo{sig}}
	fn := wasm.Function{TypeIdx: 0, Code: code, NumLocals: numLocals, LocalWidths: localWidths}
	mod.Funcs = []wasm.Function{fn}

	decoded, err := decode.Decode(mod, &mod.Funcs[0])
	require.NoError(t, err)

	v := New(mod, []Func{{
		TypeIdx:   0,
		NumLocals: numLocals,
		Code:      decoded,
		EntryPC:   decode.ProgramCounter{},
	}}, nopHost{}, nil, "test")
	return v, 0
}

func TestVM_AddTwoParams(t *testing.T) {
	sig := wasm.TypeInfo{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := []byte{
		byte(decode.WasmOpLocalGet), 0,
		byte(decode.WasmOpLocalGet), 1,
		byte(decode.WasmOpI32Add),
		byte(decode.WasmOpEnd),
	}
	v, idx := buildVM(t, sig, code, widths(false, false), 0)

	v.pushU32(2)
	v.pushU32(3)
	require.NoError(t, v.Call(idx))
	require.Equal(t, uint32(5), v.popU32())
}

func TestVM_BlockBranchCarriesResult(t *testing.T) {
	// block (result i32) i32.const 7 br 0 end drop; matches the spec's
	// "Control flow" end-to-end scenario: after running, stack is empty.
	sig := wasm.TypeInfo{}
	code := []byte{
		byte(decode.WasmOpBlock), 0x7F,
		byte(decode.WasmOpI32Const), 7,
		byte(decode.WasmOpBr), 0,
		byte(decode.WasmOpEnd),
		byte(decode.WasmOpDrop),
		byte(decode.WasmOpEnd),
	}
	v, idx := buildVM(t, sig, code, widths(), 0)

	sp := v.sp
	require.NoError(t, v.Call(idx))
	require.Equal(t, sp, v.sp)
}

func TestVM_DivByZeroTraps(t *testing.T) {
	sig := wasm.TypeInfo{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := []byte{
		byte(decode.WasmOpI32Const), 1,
		byte(decode.WasmOpI32Const), 0,
		byte(decode.WasmOpI32DivS),
		byte(decode.WasmOpEnd),
	}
	v, idx := buildVM(t, sig, code, widths(), 0)

	err := v.Call(idx)
	require.ErrorIs(t, err, ErrTrap)
}

func TestVM_MemoryGrowThenSize(t *testing.T) {
	v, _ := buildVM(t, wasm.TypeInfo{}, []byte{byte(decode.WasmOpEnd)}, widths(), 0)

	require.Equal(t, uint32(0), v.Memory.Grow(1))
	require.Equal(t, uint32(1), v.Memory.Grow(1))
	require.Equal(t, uint32(2), v.Memory.Size())
}

func TestVM_CallIndirectDispatchesByTableEntry(t *testing.T) {
	// Two functions of identical type; element segment maps table index 0
	// to function 1 and table index 1 to function 0. Calling through
	// call_indirect with index 1 must run function 0.
	sig := wasm.TypeInfo{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	mod := &wasm.Module{
		Types: []wasm.TypeInfo{sig},
		Table: &wasm.Limits{Min: 2},
		Elements: []wasm.ElementSegment{
			{Offset: 0, FuncIdx: []uint32{1, 0}},
		},
	}
	fn0 := wasm.Function{TypeIdx: 0, Code: []byte{
		byte(decode.WasmOpI32Const), 42,
		byte(decode.WasmOpEnd),
	}, LocalWidths: widths()}
	fn1 := wasm.Function{TypeIdx: 0, Code: []byte{
		byte(decode.WasmOpI32Const), 99,
		byte(decode.WasmOpEnd),
	}, LocalWidths: widths()}
	mod.Funcs = []wasm.Function{fn0, fn1}

	d0, err := decode.Decode(mod, &mod.Funcs[0])
	require.NoError(t, err)
	d1, err := decode.Decode(mod, &mod.Funcs[1])
	require.NoError(t, err)

	caller := wasm.Function{TypeIdx: 0, LocalWidths: widths(), Code: []byte{
		byte(decode.WasmOpI32Const), 1,
		byte(decode.WasmOpCallIndirect), 0, 0,
		byte(decode.WasmOpEnd),
	}}
	mod.Funcs = append(mod.Funcs, caller)
	d2, err := decode.Decode(mod, &mod.Funcs[2])
	require.NoError(t, err)

	v := New(mod, []Func{
		{TypeIdx: 0, Code: d0, EntryPC: decode.ProgramCounter{}},
		{TypeIdx: 0, Code: d1, EntryPC: decode.ProgramCounter{}},
		{TypeIdx: 0, Code: d2, EntryPC: decode.ProgramCounter{}},
	}, nopHost{}, nil, "test")

	require.NoError(t, v.Call(2))
	require.Equal(t, uint32(42), v.popU32())
}
