package decode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golang-wasm/zigvm/internal/bitpack"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

func widths(bits ...bool) *bitpack.Bits {
	b := bitpack.NewBits(len(bits))
	for i, v := range bits {
		b.Set(i, v)
	}
	return b
}

// moduleWithFunc builds a minimal single-function module so decode.Decode
// can be exercised without going through the binary reader.
func moduleWithFunc(sig wasm.TypeInfo, code []byte, localWidths *bitpack.Bits, numLocals uint32) (*wasm.Module, *wasm.Function) {
	mod := &wasm.Module{Types: []wasm.TypeInfo{sig}}
	fn := &wasm.Function{TypeIdx: 0, Code: code, NumLocals: numLocals, LocalWidths: localWidths}
	mod.Funcs = []wasm.Function{*fn}
	return mod, &mod.Funcs[0]
}

func TestDecode_AddTwoParams(t *testing.T) {
	sig := wasm.TypeInfo{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := []byte{
		byte(WasmOpLocalGet), 0,
		byte(WasmOpLocalGet), 1,
		byte(WasmOpI32Add),
		byte(WasmOpEnd),
	}
	mod, fn := moduleWithFunc(sig, code, widths(false, false), 0)

	got, err := Decode(mod, fn)
	require.NoError(t, err)

	require.Equal(t, []Op{OpLocalGet32, OpLocalGet32, OpWasm, OpReturn32}, got.Opcodes)
}

func TestDecode_IfElse(t *testing.T) {
	sig := wasm.TypeInfo{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := []byte{
		byte(WasmOpI32Const), 1,
		byte(WasmOpIf), 0x7F, // i32 result block type
		byte(WasmOpI32Const), 2,
		byte(WasmOpElse),
		byte(WasmOpI32Const), 3,
		byte(WasmOpEnd),
		byte(WasmOpEnd),
	}
	mod, fn := moduleWithFunc(sig, code, widths(), 0)

	got, err := Decode(mod, fn)
	require.NoError(t, err)
	require.Contains(t, got.Opcodes, OpBrIfEqzVoid)
	require.Contains(t, got.Opcodes, OpBr32)
	require.Equal(t, OpReturn32, got.Opcodes[len(got.Opcodes)-1])
}

func TestDecode_Loop(t *testing.T) {
	sig := wasm.TypeInfo{}
	code := []byte{
		byte(WasmOpLoop), 0x40, // empty block type
		byte(WasmOpBr), 0,
		byte(WasmOpEnd),
		byte(WasmOpEnd),
	}
	mod, fn := moduleWithFunc(sig, code, widths(), 0)

	got, err := Decode(mod, fn)
	require.NoError(t, err)
	require.Equal(t, OpBrVoid, got.Opcodes[0])
	// The branch must target the loop header (opcode index 0), not fall through.
	require.Equal(t, uint32(0), got.Operands[1])
}

func TestDecode_Unreachable(t *testing.T) {
	sig := wasm.TypeInfo{}
	code := []byte{
		byte(WasmOpUnreachable),
		byte(WasmOpI32Const), 5, // dead code after unreachable; must still parse
		byte(WasmOpDrop),
		byte(WasmOpEnd),
	}
	mod, fn := moduleWithFunc(sig, code, widths(), 0)

	got, err := Decode(mod, fn)
	require.NoError(t, err)
	require.Equal(t, []Op{OpUnreachable, OpReturnVoid}, got.Opcodes)
}
