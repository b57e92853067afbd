// Package binary decodes the WebAssembly binary module format into the
// wasm package's in-memory types, either eagerly (DecodeModule), lazily
// one section or instruction at a time (SectionIterator,
// InstructionIterator), or through the wasm/visit streaming driver.
package binary

import (
	"unicode/utf8"

	"github.com/wasmforge/wasmcore/leb128"
	"github.com/wasmforge/wasmcore/wasm"
)

// Cursor is a forward-only byte reader over a module image, tracking its
// absolute offset for diagnostics and owning the decode's ErrorSink
// context-frame stack. Features carries the proposal set the
// enclosing decode was started with, for the handful of encodings whose
// shape is feature-dependent (call_indirect's table byte).
type Cursor struct {
	data     []byte
	pos      int
	Errors   *wasm.ErrorSink
	Features wasm.Features
}

// NewCursor wraps data for decoding, starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, Errors: wasm.NewErrorSink()}
}

// Offset is the cursor's current absolute byte position.
func (c *Cursor) Offset() int { return c.pos }

// Len is the number of unread bytes remaining.
func (c *Cursor) Len() int { return len(c.data) - c.pos }

// Done reports whether every byte has been consumed.
func (c *Cursor) Done() bool { return c.pos >= len(c.data) }

// Rest consumes and returns every remaining byte.
func (c *Cursor) Rest() []byte {
	b := c.data[c.pos:]
	c.pos = len(c.data)
	return b
}

// Push begins a named context frame at the cursor's current offset; pair
// with a deferred Pop.
func (c *Cursor) Push(description string) { c.Errors.PushContext(c.pos, description) }

// Pop ends the innermost context frame.
func (c *Cursor) Pop() { c.Errors.PopContext() }

// fail records and returns an error at the cursor's current offset.
func (c *Cursor) fail(format string, args ...interface{}) error {
	return c.Errors.Record(c.pos, format, args...)
}

// ReadByte consumes and returns a single raw byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, c.fail("unexpected end of input")
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// ReadBytes consumes and returns the next n raw bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, c.fail("unexpected end of input: wanted %d bytes, have %d", n, c.Len())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU32 reads an unsigned LEB128 u32.
func (c *Cursor) ReadU32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(c.data[c.pos:])
	if err != nil {
		return 0, c.fail("%s", err.Error())
	}
	c.pos += n
	return v, nil
}

// ReadU64 reads an unsigned LEB128 u64.
func (c *Cursor) ReadU64() (uint64, error) {
	v, n, err := leb128.DecodeUint64(c.data[c.pos:])
	if err != nil {
		return 0, c.fail("%s", err.Error())
	}
	c.pos += n
	return v, nil
}

// ReadS32 reads a signed LEB128 s32.
func (c *Cursor) ReadS32() (int32, error) {
	v, n, err := leb128.DecodeInt32(c.data[c.pos:])
	if err != nil {
		return 0, c.fail("%s", err.Error())
	}
	c.pos += n
	return v, nil
}

// ReadS64 reads a signed LEB128 s64.
func (c *Cursor) ReadS64() (int64, error) {
	v, n, err := leb128.DecodeInt64(c.data[c.pos:])
	if err != nil {
		return 0, c.fail("%s", err.Error())
	}
	c.pos += n
	return v, nil
}

// ReadF32 reads 4 little-endian raw bytes as IEEE-754 bits.
func (c *Cursor) ReadF32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadF64 reads 8 little-endian raw bytes as IEEE-754 bits.
func (c *Cursor) ReadF64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// ReadCount reads a u32 vector-length prefix, rejecting absurd counts
// early so a corrupt length doesn't cause an enormous preallocation.
func (c *Cursor) ReadCount() (uint32, error) {
	n, err := c.ReadU32()
	if err != nil {
		return 0, err
	}
	if int(n) > c.Len() {
		return 0, c.fail("Count extends past end: %d > %d", n, c.Len())
	}
	return n, nil
}

// ReadString reads a length-prefixed UTF-8 string (name, import/export
// identifiers, custom section names).
func (c *Cursor) ReadString() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", c.fail("invalid UTF-8 encoding")
	}
	return string(b), nil
}

// ReadReservedByte consumes one byte that the current encoding requires to
// be zero (memory.* single-memory forms, call_indirect's table byte before
// reference-types).
func (c *Cursor) ReadReservedByte() error {
	b, err := c.ReadByte()
	if err != nil {
		return err
	}
	if b != 0 {
		c.pos--
		return c.fail("Expected reserved byte 0, got %d", b)
	}
	return nil
}
