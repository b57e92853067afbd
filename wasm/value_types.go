package wasm

import "fmt"

// ValueType is a numeric value type: i32, i64, f32, f64, or v128.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
	ValueTypeV128 ValueType = 0x7b
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(v))
}

// PackedType is a storage-only field type: i8 or i16. Never appears on the
// operand stack.
type PackedType byte

const (
	PackedTypeI8  PackedType = 0x78
	PackedTypeI16 PackedType = 0x77
)

func (p PackedType) String() string {
	switch p {
	case PackedTypeI8:
		return "i8"
	case PackedTypeI16:
		return "i16"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(p))
}

// HeapTypeKind identifies a non-index heap type.
type HeapTypeKind byte

const (
	HeapTypeKindFunc HeapTypeKind = iota
	HeapTypeKindExtern
	HeapTypeKindAny
	HeapTypeKindEq
	HeapTypeKindI31
	HeapTypeKindExn
	HeapTypeKindNone // not a heap kind byte; used internally as a zero value marker
)

func (k HeapTypeKind) String() string {
	switch k {
	case HeapTypeKindFunc:
		return "func"
	case HeapTypeKindExtern:
		return "extern"
	case HeapTypeKindAny:
		return "any"
	case HeapTypeKindEq:
		return "eq"
	case HeapTypeKindI31:
		return "i31"
	case HeapTypeKindExn:
		return "exn"
	}
	return "none"
}

// HeapType is the referent kind of a reference type: either one of the
// fixed kinds above, or a concrete defined-type index.
type HeapType struct {
	IsIndex bool
	Kind    HeapTypeKind
	Index   Index
}

func FuncHeapType() HeapType   { return HeapType{Kind: HeapTypeKindFunc} }
func ExternHeapType() HeapType { return HeapType{Kind: HeapTypeKindExtern} }
func AnyHeapType() HeapType    { return HeapType{Kind: HeapTypeKindAny} }
func EqHeapType() HeapType     { return HeapType{Kind: HeapTypeKindEq} }
func I31HeapType() HeapType    { return HeapType{Kind: HeapTypeKindI31} }
func ExnHeapType() HeapType    { return HeapType{Kind: HeapTypeKindExn} }
func IndexHeapType(idx Index) HeapType { return HeapType{IsIndex: true, Index: idx} }

func (h HeapType) String() string {
	if h.IsIndex {
		return fmt.Sprintf("%d", h.Index)
	}
	return h.Kind.String()
}

// ReferenceType is a (heap type, nullable) pair. Canonical short forms
// funcref/externref/exnref are ref-null-{func,extern,exn}.
type ReferenceType struct {
	Heap     HeapType
	Nullable bool
}

func FuncRefType() ReferenceType   { return ReferenceType{Heap: FuncHeapType(), Nullable: true} }
func ExternRefType() ReferenceType { return ReferenceType{Heap: ExternHeapType(), Nullable: true} }
func ExnRefType() ReferenceType    { return ReferenceType{Heap: ExnHeapType(), Nullable: true} }

func (r ReferenceType) String() string {
	null := ""
	if r.Nullable {
		null = "null "
	}
	return fmt.Sprintf("(ref %s%s)", null, r.Heap)
}

// Rtt is a runtime type used by the GC proposal for downcasts.
type Rtt struct {
	Depth uint32
	Heap  HeapType
}

func (r Rtt) String() string { return fmt.Sprintf("(rtt %d %s)", r.Depth, r.Heap) }

// ValueVariantKind discriminates the ValueVariant union.
type ValueVariantKind byte

const (
	ValueVariantNumeric ValueVariantKind = iota
	ValueVariantReference
	ValueVariantRtt
)

// ValueVariant is a value type in the broad sense: a numeric type,
// a reference type, or an rtt. Function params/results, locals, and
// globals are all typed with the numeric subset unless the relevant
// proposal (reference-types, GC) is enabled.
type ValueVariant struct {
	Kind      ValueVariantKind
	Numeric   ValueType
	Reference ReferenceType
	Rtt       Rtt
}

func NumericValue(v ValueType) ValueVariant {
	return ValueVariant{Kind: ValueVariantNumeric, Numeric: v}
}

func ReferenceValue(r ReferenceType) ValueVariant {
	return ValueVariant{Kind: ValueVariantReference, Reference: r}
}

func RttValue(r Rtt) ValueVariant {
	return ValueVariant{Kind: ValueVariantRtt, Rtt: r}
}

func (v ValueVariant) String() string {
	switch v.Kind {
	case ValueVariantReference:
		return v.Reference.String()
	case ValueVariantRtt:
		return v.Rtt.String()
	default:
		return v.Numeric.String()
	}
}

// StorageTypeKind discriminates StorageType.
type StorageTypeKind byte

const (
	StorageTypeValue StorageTypeKind = iota
	StorageTypePacked
)

// StorageType is a value type or a packed type; used only for struct/array
// field storage, never the operand stack.
type StorageType struct {
	Kind   StorageTypeKind
	Value  ValueVariant
	Packed PackedType
}

func ValueStorage(v ValueVariant) StorageType  { return StorageType{Kind: StorageTypeValue, Value: v} }
func PackedStorage(p PackedType) StorageType   { return StorageType{Kind: StorageTypePacked, Packed: p} }

func (s StorageType) String() string {
	if s.Kind == StorageTypePacked {
		return s.Packed.String()
	}
	return s.Value.String()
}

// FieldType is a storage type plus mutability, the element of a struct or
// array type.
type FieldType struct {
	Storage StorageType
	Mutable bool
}
