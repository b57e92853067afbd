package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmforge/wasmcore/wasm"
)

func cursorWithFeatures(data []byte, features wasm.Features) *Cursor {
	c := NewCursor(data)
	c.Features = features
	return c
}

func TestReadInstruction_CallIndirectReservedByte(t *testing.T) {
	// call_indirect type=0, then a nonzero reserved table byte.
	c := NewCursor([]byte{0x11, 0x00, 0x01})
	_, err := ReadInstruction(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected reserved byte 0, got 1")
}

func TestReadInstruction_CallIndirectTableIndexWithReferenceTypes(t *testing.T) {
	c := cursorWithFeatures([]byte{0x11, 0x00, 0x02}, wasm.NewFeatures(wasm.WithFeature(wasm.FeatureReferenceTypes, true)))
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeCallIndirect, instr.Opcode)
	require.Equal(t, [2]wasm.Index{0, 2}, instr.Immediate.IndexPair)
}

func TestReadInstruction_MemorySizeReservedByte(t *testing.T) {
	c := NewCursor([]byte{0x3f, 0x01})
	_, err := ReadInstruction(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected reserved byte 0")

	c2 := NewCursor([]byte{0x3f, 0x00})
	instr, err := ReadInstruction(c2)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeMemorySize, instr.Opcode)
}

func TestReadInstruction_MemoryCopyReservedBytes(t *testing.T) {
	c := NewCursor([]byte{0xfc, 10, 0x00, 0x00})
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeMemoryCopy, instr.Opcode)

	c2 := NewCursor([]byte{0xfc, 10, 0x00, 0x07})
	_, err = ReadInstruction(c2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected reserved byte 0, got 7")
}

func TestReadInstruction_BrTable(t *testing.T) {
	// br_table with targets [1 0] and default 2.
	c := NewCursor([]byte{0x0e, 2, 1, 0, 2})
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeBrTable, instr.Opcode)
	require.Equal(t, []wasm.Index{1, 0}, instr.Immediate.BrTable.Targets)
	require.Equal(t, wasm.Index(2), instr.Immediate.BrTable.Default)
}

func TestReadInstruction_SelectT(t *testing.T) {
	c := NewCursor([]byte{0x1c, 1, 0x7f})
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeSelectT, instr.Opcode)
	require.Equal(t, []wasm.ValueVariant{wasm.NumericValue(wasm.ValueTypeI32)}, instr.Immediate.SelectTypes)
}

func TestReadInstruction_V128Const(t *testing.T) {
	data := append([]byte{0xfd, 0x0c}, make([]byte, 16)...)
	data[2] = 0xaa
	c := NewCursor(data)
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, byte(0xaa), instr.Immediate.V128[0])
}

func TestReadInstruction_SIMDLaneImmediate(t *testing.T) {
	c := NewCursor([]byte{0xfd, 0x0e, 3}) // i8x16.extract_lane_s lane 3
	instr, err := ReadInstruction(c)
	require.NoError(t, err)
	require.Equal(t, wasm.ImmSIMDLane, instr.Immediate.Kind)
	require.Equal(t, byte(3), instr.Immediate.Lane)
}

func TestReadInstruction_AtomicFenceReservedByte(t *testing.T) {
	c := NewCursor([]byte{0xfe, 0x03, 0x01})
	_, err := ReadInstruction(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reserved byte")
}

func TestReadInstruction_UnknownMiscSubOpcode(t *testing.T) {
	c := NewCursor([]byte{0xfc, 0x7f})
	_, err := ReadInstruction(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported misc opcode")
}

func TestReadBlockType_Forms(t *testing.T) {
	void, err := readBlockType(NewCursor([]byte{0x40}))
	require.NoError(t, err)
	require.Equal(t, wasm.BlockTypeVoid, void.Kind)

	val, err := readBlockType(NewCursor([]byte{0x7f}))
	require.NoError(t, err)
	require.Equal(t, wasm.BlockTypeValue, val.Kind)
	require.Equal(t, wasm.NumericValue(wasm.ValueTypeI32), val.Value)

	idx, err := readBlockType(NewCursor([]byte{0x05}))
	require.NoError(t, err)
	require.Equal(t, wasm.BlockTypeIndex, idx.Kind)
	require.Equal(t, wasm.Index(5), idx.TypeIdx)
}

func TestReadConstantExpr_IllegalInstruction(t *testing.T) {
	// i32.add is not a constant instruction.
	c := NewCursor([]byte{0x6a, 0x0b})
	_, err := readConstantExpr(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Illegal instruction in constant expression")
}

func TestReadConstantExpr_MissingEnd(t *testing.T) {
	c := NewCursor([]byte{0x41, 0x00, 0x41})
	_, err := readConstantExpr(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected end instruction")
}

func TestReadConstantExpr_GlobalGet(t *testing.T) {
	c := NewCursor([]byte{0x23, 0x00, 0x0b})
	expr, err := readConstantExpr(c)
	require.NoError(t, err)
	require.Equal(t, wasm.OpcodeGlobalGet, expr.Instr.Opcode)
}
