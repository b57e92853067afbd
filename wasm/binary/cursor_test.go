package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor_ReadByteAdvancesOffset(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	b, err := c.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), b)
	require.Equal(t, 1, c.Offset())
}

func TestCursor_ReadByte_EOF(t *testing.T) {
	c := NewCursor(nil)
	_, err := c.ReadByte()
	require.Error(t, err)
	require.True(t, c.Errors.HasErrors())
}

func TestCursor_ReadU32_LEB128(t *testing.T) {
	c := NewCursor([]byte{0xe5, 0x8e, 0x26})
	v, err := c.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(624485), v)
}

func TestCursor_ReadCount_RejectsAbsurdLength(t *testing.T) {
	c := NewCursor([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	_, err := c.ReadCount()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Count extends past end")
}

func TestCursor_ReadString_RoundTrip(t *testing.T) {
	// length-prefix 5, then "hello"
	c := NewCursor([]byte{5, 'h', 'e', 'l', 'l', 'o'})
	s, err := c.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestCursor_ReadString_InvalidUTF8(t *testing.T) {
	c := NewCursor([]byte{1, 0xff})
	_, err := c.ReadString()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid UTF-8")
}

func TestCursor_ReadF32_LittleEndian(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x00, 0x80, 0x3f}) // 1.0f
	bits, err := c.ReadF32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x3f800000), bits)
}

func TestCursor_PushPopContext(t *testing.T) {
	c := NewCursor([]byte{0x00})
	c.Push("type section")
	_, _ = c.ReadByte()
	c.Pop()
	require.False(t, c.Errors.HasErrors())
}

func TestCursor_DoneAndRest(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	require.False(t, c.Done())
	_, _ = c.ReadByte()
	rest := c.Rest()
	require.Equal(t, []byte{2, 3}, rest)
	require.True(t, c.Done())
}
