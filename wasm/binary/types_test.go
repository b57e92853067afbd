package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmforge/wasmcore/wasm"
)

func TestReadValueType_Numeric(t *testing.T) {
	c := NewCursor([]byte{0x7f})
	v, err := ReadValueType(c)
	require.NoError(t, err)
	require.Equal(t, wasm.NumericValue(wasm.ValueTypeI32), v)
}

func TestReadValueType_ShortFuncref(t *testing.T) {
	c := NewCursor([]byte{0x70})
	v, err := ReadValueType(c)
	require.NoError(t, err)
	require.Equal(t, wasm.ReferenceValue(wasm.FuncRefType()), v)
}

func TestReadValueType_InvalidByte(t *testing.T) {
	c := NewCursor([]byte{0x00})
	_, err := ReadValueType(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Unknown value type")
}

func TestReadHeapType_FixedKindsAndIndex(t *testing.T) {
	c := NewCursor([]byte{0x70}) // s32 LEB128 for -0x10 (func)
	h, err := ReadHeapType(c)
	require.NoError(t, err)
	require.Equal(t, wasm.FuncHeapType(), h)

	c2 := NewCursor([]byte{0x05}) // positive index 5
	h2, err := ReadHeapType(c2)
	require.NoError(t, err)
	require.Equal(t, wasm.IndexHeapType(5), h2)
}

func TestReadLimits_WithMax(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x05})
	l, err := ReadLimits(c)
	require.NoError(t, err)
	require.Equal(t, uint32(2), l.Min)
	require.NotNil(t, l.Max)
	require.Equal(t, uint32(5), *l.Max)
}

func TestReadLimits_NoMax(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x03})
	l, err := ReadLimits(c)
	require.NoError(t, err)
	require.Equal(t, uint32(3), l.Min)
	require.Nil(t, l.Max)
}

func TestReadGlobalType_InvalidMutability(t *testing.T) {
	c := NewCursor([]byte{0x7f, 0x02})
	_, err := ReadGlobalType(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid mutability")
}

func TestReadFieldType_PackedStorage(t *testing.T) {
	c := NewCursor([]byte{0x78, 0x01}) // i8, mutable
	ft, err := ReadFieldType(c)
	require.NoError(t, err)
	require.Equal(t, wasm.StorageTypePacked, ft.Storage.Kind)
	require.True(t, ft.Mutable)
}
