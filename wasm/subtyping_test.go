package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSameHeap_FixedKinds(t *testing.T) {
	ctx := NewCtx(0, nil)
	require.True(t, ctx.IsSameHeap(FuncHeapType(), FuncHeapType()))
	require.False(t, ctx.IsSameHeap(FuncHeapType(), ExternHeapType()))
}

func TestIsSameTypeIndex_MutuallyRecursiveStructs(t *testing.T) {
	// Type 0 and type 1 are structurally identical structs that each
	// reference the other; without the coinductive assumption cache,
	// comparing them would recurse forever.
	structReferring := func(target Index) DefinedType {
		return DefinedType{
			Kind: DefinedTypeStruct,
			Struct: StructType{Fields: []FieldType{
				{Storage: ValueStorage(ReferenceValue(ReferenceType{Heap: IndexHeapType(target), Nullable: true}))},
			}},
		}
	}
	ctx := NewCtx(FeatureGC, []DefinedType{structReferring(1), structReferring(0)})
	require.True(t, ctx.IsSameTypeIndex(0, 1))
}

func TestIsMatchHeap_GCHierarchy(t *testing.T) {
	ctx := NewCtx(FeatureGC, nil)
	require.True(t, ctx.IsMatchHeap(AnyHeapType(), EqHeapType()))
	require.True(t, ctx.IsMatchHeap(AnyHeapType(), I31HeapType()))
	require.True(t, ctx.IsMatchHeap(EqHeapType(), I31HeapType()))
	require.False(t, ctx.IsMatchHeap(I31HeapType(), EqHeapType()))
}

func TestIsMatchHeap_GCDisabled(t *testing.T) {
	ctx := NewCtx(0, nil)
	require.False(t, ctx.IsMatchHeap(AnyHeapType(), EqHeapType()))
}

func TestIsMatchReference_NullabilityIsContravariant(t *testing.T) {
	ctx := NewCtx(0, nil)
	nonNullFunc := ReferenceType{Heap: FuncHeapType(), Nullable: false}
	nullableFunc := ReferenceType{Heap: FuncHeapType(), Nullable: true}
	require.True(t, ctx.IsMatchReference(nullableFunc, nonNullFunc))
	require.False(t, ctx.IsMatchReference(nonNullFunc, nullableFunc))
}

func TestIsMatchFunctionType_ParamsContravariantResultsCovariant(t *testing.T) {
	ctx := NewCtx(FeatureGC, []DefinedType{
		{Kind: DefinedTypeFunction, Function: FunctionType{
			Params:  []ValueVariant{ReferenceValue(ReferenceType{Heap: EqHeapType(), Nullable: true})},
			Results: []ValueVariant{ReferenceValue(ReferenceType{Heap: AnyHeapType(), Nullable: true})},
		}},
		{Kind: DefinedTypeFunction, Function: FunctionType{
			Params:  []ValueVariant{ReferenceValue(ReferenceType{Heap: AnyHeapType(), Nullable: true})},
			Results: []ValueVariant{ReferenceValue(ReferenceType{Heap: EqHeapType(), Nullable: true})},
		}},
	})
	// A function accepting `any` and returning `eq` is a subtype of one
	// accepting `eq` and returning `any`.
	require.True(t, ctx.isMatchTypeIndex(0, 1))
	require.False(t, ctx.isMatchTypeIndex(1, 0))
}
