// Package leb128 implements the LEB128 variable-length integer encoding
// used throughout the WebAssembly binary format.
package leb128

import "fmt"

// MaxVarint32Len is the maximum number of bytes a canonically-encoded
// unsigned or signed 32-bit LEB128 value may occupy.
const MaxVarint32Len = 5

// MaxVarint64Len is the maximum number of bytes a canonically-encoded
// signed 64-bit LEB128 value may occupy.
const MaxVarint64Len = 10

// DecodeUint32 reads an unsigned 32-bit LEB128 integer from b, returning the
// value, the number of bytes consumed, and an error if the encoding is
// malformed or non-canonical.
//
// Per the Wasm spec, the final byte's bits beyond the 32-bit value's width
// must be zero; a violation is reported with the exact expected/actual
// nibble so callers can surface the spec-test's reference message.
func DecodeUint32(b []byte) (v uint32, n int, err error) {
	var shift uint
	for n = 0; n < MaxVarint32Len; n++ {
		if n >= len(b) {
			return 0, 0, fmt.Errorf("unexpected EOF decoding u32")
		}
		c := b[n]
		if n == MaxVarint32Len-1 {
			// Only the low 4 bits of the 5th byte are part of a 32-bit
			// value; everything else must be zero-extension.
			const validMask = 0x0f
			if c&0x80 != 0 {
				return 0, 0, fmt.Errorf("u32 has too many bytes")
			}
			if c&^validMask != 0 {
				return 0, 0, fmt.Errorf("Last byte of u32 must be zero extension: expected 0x%x, got 0x%x", c&validMask, c)
			}
			v |= uint32(c&validMask) << shift
			n++
			return v, n, nil
		}
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			n++
			return v, n, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("u32 has too many bytes")
}

// DecodeInt32 reads a signed 32-bit LEB128 integer. The final byte's
// sign-extension bits must equal the sign bit of the represented value;
// a mismatch yields the spec-test's canonical message.
func DecodeInt32(b []byte) (v int32, n int, err error) {
	r, n, err := decodeSigned(b, 32)
	return int32(r), n, err
}

// DecodeInt64 reads a signed 64-bit LEB128 integer, same rules as
// DecodeInt32 but over 64 bits.
func DecodeInt64(b []byte) (v int64, n int, err error) {
	r, n, err := decodeSigned(b, 64)
	return r, n, err
}

// decodeSigned reads a width-bit (32 or 64) signed LEB128 integer. maxLen is
// ceil(width/7), computed as (width+6)/7; on the final byte of that length, the bits above
// `width` must equal the sign-extension of the value's top bit, otherwise
// the encoding is rejected with the spec-test's canonical message shape
// ("Last byte of sN must be sign extension: expected X or Y, got Z").
func decodeSigned(b []byte, width uint) (v int64, n int, err error) {
	maxLen := int((width + 6) / 7)
	var raw uint64
	var shift uint
	for {
		if n >= maxLen {
			return 0, 0, fmt.Errorf("s%d has too many bytes", width)
		}
		if n >= len(b) {
			return 0, 0, fmt.Errorf("unexpected EOF decoding s%d", width)
		}
		c := b[n]
		n++

		if shift+7 > width {
			// This byte straddles the value's true bit width: only the low
			// validBits bits are data, the top of them the sign. Everything
			// above, continuation flag included, must sign-extend that bit,
			// leaving exactly two canonical forms of the byte given its low
			// data bits; anything else is reported with both candidates and
			// the full byte.
			validBits := width - shift
			lowMask := byte(1<<(validBits-1)) - 1
			zeroExt := c & lowMask
			oneExt := zeroExt | (0x7f &^ lowMask)
			if c != zeroExt && c != oneExt {
				return 0, 0, fmt.Errorf(
					"Last byte of s%d must be sign extension: expected 0x%x or 0x%x, got 0x%x",
					width, zeroExt, oneExt, c)
			}
			dataMask := byte(1<<validBits) - 1
			raw |= uint64(c&dataMask) << shift
			shift += validBits
			break
		}

		raw |= uint64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}

	// Sign-extend the truncated width-bit value to a full int64.
	v = int64(raw << (64 - shift))
	v >>= 64 - shift
	return v, n, nil
}

// DecodeUint64 reads an unsigned 64-bit LEB128 integer (used internally by
// count/length readers that accept values wider than 32 bits before
// narrowing and range-checking).
func DecodeUint64(b []byte) (v uint64, n int, err error) {
	var shift uint
	for {
		if n >= MaxVarint64Len {
			return 0, 0, fmt.Errorf("u64 has too many bytes")
		}
		if n >= len(b) {
			return 0, 0, fmt.Errorf("unexpected EOF decoding u64")
		}
		c := b[n]
		v |= uint64(c&0x7f) << shift
		n++
		if c&0x80 == 0 {
			return v, n, nil
		}
		shift += 7
	}
}

// EncodeUint32 appends the canonical LEB128 encoding of v to dst, returning
// the extended slice. Test fixtures are its only consumer: production
// writers of Wasm binaries use an external encoder, not this package.
func EncodeUint32(dst []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, c|0x80)
		} else {
			dst = append(dst, c)
			return dst
		}
	}
}

// EncodeInt64 appends the canonical signed LEB128 encoding of v to dst. Used
// only by test fixtures, same rationale as EncodeUint32.
func EncodeInt64(dst []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		signBitSet := c&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			dst = append(dst, c)
			return dst
		}
		dst = append(dst, c|0x80)
	}
}
