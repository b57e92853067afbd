package binary

import "github.com/wasmforge/wasmcore/wasm"

// ReadValueType reads a single byte-encoded value type, numeric or
// (when reference-types/GC is enabled) reference.
func ReadValueType(c *Cursor) (wasm.ValueVariant, error) {
	b, err := c.ReadByte()
	if err != nil {
		return wasm.ValueVariant{}, err
	}
	switch b {
	case byte(wasm.ValueTypeI32), byte(wasm.ValueTypeI64), byte(wasm.ValueTypeF32), byte(wasm.ValueTypeF64), byte(wasm.ValueTypeV128):
		return wasm.NumericValue(wasm.ValueType(b)), nil
	case 0x70, 0x6f, 0x68: // funcref, externref, exnref short forms
		return wasm.ReferenceValue(shortRefType(b)), nil
	case 0x6b, 0x6c, 0x6d, 0x6e, 0x63, 0x64: // (ref ht)/(ref null ht) long forms
		c.pos--
		return readLongRefType(c)
	}
	return wasm.ValueVariant{}, c.fail("Unknown value type: 0x%02x", b)
}

func shortRefType(b byte) wasm.ReferenceType {
	switch b {
	case 0x70:
		return wasm.FuncRefType()
	case 0x6f:
		return wasm.ExternRefType()
	case 0x68:
		return wasm.ExnRefType()
	}
	return wasm.ReferenceType{}
}

// readLongRefType reads the GC/function-references proposal's explicit
// (ref null? heaptype) encoding, where the leading byte distinguishes
// nullable (0x6c/similar) from non-null, followed by a heap-type byte or
// LEB128 type index.
func readLongRefType(c *Cursor) (wasm.ValueVariant, error) {
	b, err := c.ReadByte()
	if err != nil {
		return wasm.ValueVariant{}, err
	}
	nullable := b == 0x6c || b == 0x6b
	heap, err := ReadHeapType(c)
	if err != nil {
		return wasm.ValueVariant{}, err
	}
	return wasm.ReferenceValue(wasm.ReferenceType{Heap: heap, Nullable: nullable}), nil
}

// ReadHeapType reads a heap type: either a negative-LEB128-encoded fixed
// kind byte (func/extern/any/eq/i31/exn) or a non-negative type index.
func ReadHeapType(c *Cursor) (wasm.HeapType, error) {
	s, err := c.ReadS32()
	if err != nil {
		return wasm.HeapType{}, err
	}
	if s >= 0 {
		return wasm.IndexHeapType(wasm.Index(s)), nil
	}
	switch s {
	case -0x10:
		return wasm.FuncHeapType(), nil
	case -0x11:
		return wasm.ExternHeapType(), nil
	case -0x12:
		return wasm.AnyHeapType(), nil
	case -0x13:
		return wasm.EqHeapType(), nil
	case -0x14:
		return wasm.I31HeapType(), nil
	case -0x18:
		return wasm.ExnHeapType(), nil
	}
	return wasm.HeapType{}, c.fail("Unknown heap type: %d", s)
}

// ReadReferenceType reads a short-form (funcref/externref/exnref) or
// long-form reference type.
func ReadReferenceType(c *Cursor) (wasm.ReferenceType, error) {
	v, err := ReadValueType(c)
	if err != nil {
		return wasm.ReferenceType{}, err
	}
	if v.Kind != wasm.ValueVariantReference {
		return wasm.ReferenceType{}, c.fail("expected reference type")
	}
	return v.Reference, nil
}

// ReadPackedType reads an i8/i16 storage-only packed type byte.
func ReadPackedType(c *Cursor) (wasm.PackedType, error) {
	b, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case byte(wasm.PackedTypeI8), byte(wasm.PackedTypeI16):
		return wasm.PackedType(b), nil
	}
	return 0, c.fail("invalid packed type 0x%02x", b)
}

// ReadStorageType reads a field's storage type: a packed type (0x78/0x77)
// or a full value type.
func ReadStorageType(c *Cursor) (wasm.StorageType, error) {
	if c.Len() == 0 {
		return wasm.StorageType{}, c.fail("unexpected end of input")
	}
	peek := c.data[c.pos]
	if peek == byte(wasm.PackedTypeI8) || peek == byte(wasm.PackedTypeI16) {
		p, err := ReadPackedType(c)
		if err != nil {
			return wasm.StorageType{}, err
		}
		return wasm.PackedStorage(p), nil
	}
	v, err := ReadValueType(c)
	if err != nil {
		return wasm.StorageType{}, err
	}
	return wasm.ValueStorage(v), nil
}

// ReadFieldType reads a struct/array field: storage type plus a
// mutability flag byte.
func ReadFieldType(c *Cursor) (wasm.FieldType, error) {
	st, err := ReadStorageType(c)
	if err != nil {
		return wasm.FieldType{}, err
	}
	mut, err := c.ReadByte()
	if err != nil {
		return wasm.FieldType{}, err
	}
	if mut > 1 {
		return wasm.FieldType{}, c.fail("invalid mutability byte 0x%02x", mut)
	}
	return wasm.FieldType{Storage: st, Mutable: mut == 1}, nil
}

// ReadLimits reads a limits record: flags byte (bit 0: has-max, bit 1:
// shared), min, and optional max. Flag bits beyond those two must be zero.
func ReadLimits(c *Cursor) (wasm.Limits, error) {
	flags, err := c.ReadByte()
	if err != nil {
		return wasm.Limits{}, err
	}
	if flags&^0x03 != 0 {
		return wasm.Limits{}, c.fail("Invalid flags value: %d", flags)
	}
	min, err := c.ReadU32()
	if err != nil {
		return wasm.Limits{}, err
	}
	l := wasm.Limits{Min: min, Shared: flags&0x02 != 0}
	if flags&0x01 != 0 {
		max, err := c.ReadU32()
		if err != nil {
			return wasm.Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

// ReadTableType reads a reference type followed by limits.
func ReadTableType(c *Cursor) (wasm.TableType, error) {
	rt, err := ReadReferenceType(c)
	if err != nil {
		return wasm.TableType{}, err
	}
	lim, err := ReadLimits(c)
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{Limits: lim, RefType: rt}, nil
}

// ReadGlobalType reads a value type followed by a mutability flag byte.
func ReadGlobalType(c *Cursor) (wasm.GlobalType, error) {
	vt, err := ReadValueType(c)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	mut, err := c.ReadByte()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	if mut > 1 {
		return wasm.GlobalType{}, c.fail("invalid mutability byte 0x%02x", mut)
	}
	return wasm.GlobalType{ValType: vt, Mutable: mut == 1}, nil
}
