package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmforge/wasmcore/wasm"
)

func TestSectionIterator_WalksHeadersLazily(t *testing.T) {
	data := append([]byte{}, header()...)
	data = append(data, 1, 4, 1, 0x60, 0, 0) // type section
	data = append(data, 3, 2, 1, 0)          // function section

	it, err := NewSectionIterator(data, 0)
	require.NoError(t, err)

	s1, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wasm.SectionIDType, s1.ID)
	require.Equal(t, []byte{1, 0x60, 0, 0}, s1.Payload)

	s2, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wasm.SectionIDFunction, s2.ID)

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSectionIterator_RejectsBadHeader(t *testing.T) {
	_, err := NewSectionIterator([]byte{1, 2, 3, 4, 1, 0, 0, 0}, 0)
	require.Error(t, err)
}

func TestSectionIterator_TruncatedPayloadEndsIteration(t *testing.T) {
	data := append([]byte{}, header()...)
	data = append(data, 1, 9, 1) // claims 9 payload bytes, has 1

	it, err := NewSectionIterator(data, 0)
	require.NoError(t, err)
	_, _, err = it.Next()
	require.Error(t, err)
}

func TestInstructionIterator_StepsThroughBody(t *testing.T) {
	// i32.const 7, drop, end
	it := NewInstructionIterator([]byte{0x41, 0x07, 0x1a, 0x0b}, 0, nil)

	i1, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wasm.OpcodeI32Const, i1.Opcode)
	require.Equal(t, int32(7), i1.Immediate.I32)

	i2, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wasm.OpcodeDrop, i2.Opcode)

	i3, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wasm.OpcodeEnd, i3.Opcode)

	_, ok, _ = it.Next()
	require.False(t, ok)
}

func TestInstructionIterator_DecodeErrorEndsIteration(t *testing.T) {
	it := NewInstructionIterator([]byte{0xfc, 0x7f}, 0, nil)
	_, ok, err := it.Next()
	require.Error(t, err)
	require.False(t, ok)
}
