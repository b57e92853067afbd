package leb128

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected uint32
		n        int
	}{
		{name: "zero", input: []byte{0x00}, expected: 0, n: 1},
		{name: "one byte", input: []byte{0x7f}, expected: 127, n: 1},
		{name: "two bytes", input: []byte{0x80, 0x01}, expected: 128, n: 2},
		{name: "max u32", input: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, expected: 0xffffffff, n: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := DecodeUint32(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, v)
			require.Equal(t, tt.n, n)
		})
	}
}

func TestDecodeUint32_Overlong(t *testing.T) {
	// Last byte's high nibble must be zero extension: 0x2 expected, got 0x12.
	_, _, err := DecodeUint32([]byte{0xF0, 0xF0, 0xF0, 0xF0, 0x12})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Last byte of u32 must be zero extension")
	require.Contains(t, err.Error(), "0x12")
}

func TestDecodeInt32_Canonical(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected int32
	}{
		{name: "zero", input: []byte{0x00}, expected: 0},
		{name: "-1 one byte", input: []byte{0x7f}, expected: -1},
		{name: "-1 two bytes", input: []byte{0xff, 0x7f}, expected: -1},
		{name: "max positive", input: []byte{0xff, 0xff, 0xff, 0xff, 0x07}, expected: 0x7fffffff},
		{name: "min negative", input: []byte{0x80, 0x80, 0x80, 0x80, 0x78}, expected: -0x80000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, err := DecodeInt32(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, v)
		})
	}
}

func TestDecodeInt32_NonCanonical(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		message string
	}{
		{
			name:    "zero extension bits set above a positive value",
			input:   []byte{0xf0, 0xf0, 0xf0, 0xf0, 0x15},
			message: "Last byte of s32 must be sign extension: expected 0x5 or 0x7d, got 0x15",
		},
		{
			name:    "incomplete sign extension of a negative value",
			input:   []byte{0xff, 0xff, 0xff, 0xff, 0x73},
			message: "Last byte of s32 must be sign extension: expected 0x3 or 0x7b, got 0x73",
		},
		{
			name:    "continuation bit set on the final byte",
			input:   []byte{0xff, 0xff, 0xff, 0xff, 0xf7},
			message: "Last byte of s32 must be sign extension: expected 0x7 or 0x7f, got 0xf7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeInt32(tt.input)
			require.Error(t, err)
			require.Equal(t, tt.message, err.Error())
		})
	}
}

func TestDecodeInt64_NonCanonical(t *testing.T) {
	input := []byte{0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0}
	_, _, err := DecodeInt64(input)
	require.Error(t, err)
	require.Equal(t, "Last byte of s64 must be sign extension: expected 0x0 or 0x7f, got 0xf0", err.Error())
}

func TestDecodeUint32_EOF(t *testing.T) {
	_, _, err := DecodeUint32([]byte{0x80})
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 0xffffffff} {
		b := EncodeUint32(nil, v)
		got, n, err := DecodeUint32(b)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(b), n)
	}
}
