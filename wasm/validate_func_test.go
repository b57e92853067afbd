package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func instr(op Opcode) Instruction { return Instruction{Opcode: op} }

func i32Add() Instruction { return instr(Opcode(0x6a)) }

func newModuleContext(t *testing.T, features Features) *ModuleContext {
	t.Helper()
	return NewModuleContext(features)
}

func TestValidateFunction_AddingTwoLocals(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Params: []ValueVariant{i32v(), i32v()}, Results: []ValueVariant{i32v()}}
	body := []Instruction{
		instr(OpcodeLocalGet), // placeholder replaced below
	}
	body[0].Immediate.Index = 0
	body = append(body, instr(OpcodeLocalGet))
	body[1].Immediate.Index = 1
	body = append(body, i32Add())
	body = append(body, instr(OpcodeEnd))
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
	require.False(t, sink.HasErrors())
}

func TestValidateFunction_TypeMismatchRecordsError(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Params: []ValueVariant{i64v()}, Results: []ValueVariant{i32v()}}
	local0 := instr(OpcodeLocalGet)
	local0.Immediate.Index = 0
	body := []Instruction{local0, instr(OpcodeI32Const)} // i64 local then i32.const, then add expects two i32
	body = append(body, i32Add())
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.Error(t, err)
}

func TestValidateFunction_StackValueLimitExceeded(t *testing.T) {
	orig := StackValueLimit
	StackValueLimit = 2
	defer func() { StackValueLimit = orig }()

	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Results: []ValueVariant{i32v(), i32v(), i32v()}}
	body := []Instruction{instr(OpcodeI32Const), instr(OpcodeI32Const), instr(OpcodeI32Const)}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds limit")
}

func TestValidateFunction_BlockWithResultMustLeaveValue(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Results: []ValueVariant{i32v()}}
	block := instr(OpcodeBlock)
	block.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i32v()}
	body := []Instruction{
		block,
		instr(OpcodeI32Const),
		instr(OpcodeEnd),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_UnreachableMakesStackPolymorphic(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Results: []ValueVariant{i32v(), i64v()}}
	body := []Instruction{
		instr(OpcodeUnreachable),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_BrToBlockTakesBlockResult(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{Results: []ValueVariant{i32v()}}

	block := instr(OpcodeBlock)
	block.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i32v()}

	br := instr(OpcodeBr)
	br.Immediate.Index = 0

	body := []Instruction{
		block,
		instr(OpcodeI32Const),
		br,
		instr(OpcodeEnd),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_BrToLoopTargetsStartNotEnd(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	ft := FunctionType{}

	loop := instr(OpcodeLoop)
	loop.Immediate.Block = BlockType{Kind: BlockTypeVoid}

	br := instr(OpcodeBr)
	br.Immediate.Index = 0

	body := []Instruction{
		loop,
		br,
		instr(OpcodeEnd),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_RefFuncRequiresDeclaredFunction(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureReferenceTypes, true)))
	mc.Types = []DefinedType{{Kind: DefinedTypeFunction}}
	mc.Functions = []Index{0}
	sink := NewErrorSink()

	refFunc := instr(OpcodeRefFunc)
	refFunc.Immediate.Index = 0

	ft := FunctionType{Results: []ValueVariant{ReferenceValue(FuncRefType())}}
	body := []Instruction{refFunc, instr(OpcodeEnd)}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not declared")

	mc.DeclaredFunctions[0] = true
	sink2 := NewErrorSink()
	err = ValidateFunction(mc, ft, nil, body, sink2)
	require.NoError(t, err)
}

func TestValidateFunction_TailCallRequiresFeature(t *testing.T) {
	mc := newModuleContext(t, 0)
	mc.Types = []DefinedType{{Kind: DefinedTypeFunction}}
	mc.Functions = []Index{0}
	sink := NewErrorSink()

	rc := instr(OpcodeReturnCall)
	rc.Immediate.Index = 0
	err := ValidateFunction(mc, FunctionType{}, nil, []Instruction{rc}, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tail-call")
}

func TestValidateFunction_MemoryInitRequiresBulkMemoryAndValidSegment(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureBulkMemoryOperations, true)))
	mc.Memories = []MemoryType{{}}
	mc.DataSegmentCount = 1
	sink := NewErrorSink()

	memInit := instr(OpcodeMemoryInit)
	memInit.Immediate.IndexPair = [2]Index{5, 0} // segment 5 doesn't exist
	body := []Instruction{
		instr(OpcodeI32Const), instr(OpcodeI32Const), instr(OpcodeI32Const),
		memInit,
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown data segment")
}

func memArgInstr(op Opcode, memIdx Index) Instruction {
	i := instr(op)
	i.Immediate.MemArg = MemArg{MemoryIndex: memIdx}
	return i
}

func TestValidateFunction_SIMDLaneOps(t *testing.T) {
	tests := []struct {
		name    string
		feature Features
		wantErr string
	}{
		{name: "disabled", feature: 0, wantErr: "simd"},
		{name: "enabled", feature: NewFeatures(WithFeature(FeatureSIMD, true))},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mc := newModuleContext(t, tc.feature)
			mc.Memories = []MemoryType{{}}
			sink := NewErrorSink()

			load := memArgInstr(OpcodeV128Load, 0)
			extract := instr(OpcodeI8x16ExtractLaneS)
			replace := instr(OpcodeF64x2ReplaceLane)

			body := []Instruction{
				instr(OpcodeI32Const), load, // v128 on stack via load
				extract, // -> i32
				instr(OpcodeDrop),
				instr(OpcodeV128Const),
				instr(OpcodeF64Const),
				replace, // consumes v128 + f64 -> v128
				instr(OpcodeDrop),
			}
			err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateFunction_AtomicRMWRequiresSharedMemory(t *testing.T) {
	rmwAdd, ok := LookupAtomicMemOp(prefixedOpcode(PrefixAtomic, 0x1E)) // i32.atomic.rmw.add
	require.True(t, ok)
	require.Equal(t, "add", rmwAdd.RMW)

	tests := []struct {
		name    string
		shared  bool
		wantErr string
	}{
		{name: "non-shared memory rejected", shared: false, wantErr: "shared"},
		{name: "shared memory accepted", shared: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mc := newModuleContext(t, NewFeatures(WithFeature(FeatureThreads, true)))
			mc.Memories = []MemoryType{{Limits: Limits{Shared: tc.shared}}}
			sink := NewErrorSink()

			rmw := instr(prefixedOpcode(PrefixAtomic, 0x1E))
			body := []Instruction{
				instr(OpcodeI32Const), instr(OpcodeI32Const),
				rmw,
				instr(OpcodeDrop),
			}
			err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateFunction_AtomicCmpxchgAndNotify(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureThreads, true)))
	mc.Memories = []MemoryType{{Limits: Limits{Shared: true}}}
	sink := NewErrorSink()

	cmpxchg := instr(prefixedOpcode(PrefixAtomic, 0x48)) // i32.atomic.rmw.cmpxchg
	notify := memArgInstr(OpcodeAtomicNotify, 0)

	body := []Instruction{
		instr(OpcodeI32Const), instr(OpcodeI32Const), instr(OpcodeI32Const),
		cmpxchg,
		instr(OpcodeDrop),
		instr(OpcodeI32Const), instr(OpcodeI32Const),
		notify,
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func structType(fields ...FieldType) DefinedType {
	return DefinedType{Kind: DefinedTypeStruct, Struct: StructType{Fields: fields}}
}

func TestValidateFunction_StructNewGetSet(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureGC, true)))
	mc.Types = []DefinedType{
		structType(FieldType{Storage: ValueStorage(i32v()), Mutable: true}),
	}
	sink := NewErrorSink()

	newS := instr(OpcodeStructNew)
	newS.Immediate.Index = 0

	get := instr(OpcodeStructGet)
	get.Immediate.StructField = [2]Index{0, 0}

	set := instr(OpcodeStructSet)
	set.Immediate.StructField = [2]Index{0, 0}

	body := []Instruction{
		instr(OpcodeI32Const), newS, // struct.new consumes the one i32 field
		get,
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)

	sink2 := NewErrorSink()
	body2 := []Instruction{
		instr(OpcodeI32Const), newS,
		instr(OpcodeI32Const),
		set,
	}
	err = ValidateFunction(mc, FunctionType{}, nil, body2, sink2)
	require.NoError(t, err)
}

func TestValidateFunction_StructRequiresGCFeature(t *testing.T) {
	mc := newModuleContext(t, 0)
	mc.Types = []DefinedType{structType(FieldType{Storage: ValueStorage(i32v())})}
	sink := NewErrorSink()

	newS := instr(OpcodeStructNew)
	newS.Immediate.Index = 0
	body := []Instruction{instr(OpcodeI32Const), newS, instr(OpcodeDrop)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "gc")
}

func TestValidateFunction_ArrayNewGetSetLen(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureGC, true)))
	mc.Types = []DefinedType{
		{Kind: DefinedTypeArray, Array: ArrayType{Field: FieldType{Storage: ValueStorage(i32v()), Mutable: true}}},
	}
	sink := NewErrorSink()

	newA := instr(OpcodeArrayNewDefault)
	newA.Immediate.Index = 0
	length := instr(OpcodeArrayLen)

	body := []Instruction{
		instr(OpcodeI32Const), newA, // array.new_default: just the length operand
		length,
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_I31RoundTrip(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureGC, true)))
	sink := NewErrorSink()
	body := []Instruction{
		instr(OpcodeI32Const),
		instr(OpcodeI31New),
		instr(OpcodeI31GetU),
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_RttCanonAndSub(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureGC, true)))
	mc.Types = []DefinedType{{Kind: DefinedTypeStruct}}
	sink := NewErrorSink()

	canon := instr(OpcodeRttCanon)
	canon.Immediate.Rtt.Heap = IndexHeapType(0)

	sub := instr(OpcodeRttSub)
	sub.Immediate.Heap = IndexHeapType(0)

	body := []Instruction{canon, sub, instr(OpcodeDrop)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_RefTestCastBrOnCast(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureGC, true), WithFeature(FeatureReferenceTypes, true)))
	mc.Types = []DefinedType{{Kind: DefinedTypeStruct}}
	sink := NewErrorSink()

	block := instr(OpcodeBlock)
	block.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: ReferenceValue(ReferenceType{Heap: EqHeapType(), Nullable: true})}

	brOnCast := instr(OpcodeBrOnCast)
	brOnCast.Immediate.BrOnCast = struct {
		Label Index
		Heap  HeapType
	}{Label: 0, Heap: IndexHeapType(0)}

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = EqHeapType()

	body := []Instruction{
		block,
		refNull,
		brOnCast,
		instr(OpcodeDrop),
		instr(OpcodeRefNull), // fallthrough value for the block result
		instr(OpcodeEnd),
		instr(OpcodeDrop),
	}
	body[len(body)-3].Immediate.Heap = EqHeapType()
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func eventFunctionType(params ...ValueVariant) DefinedType {
	return DefinedType{Kind: DefinedTypeFunction, Function: FunctionType{Params: params}}
}

func TestValidateFunction_TryCatchThrow(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureExceptionHandling, true)))
	mc.Types = []DefinedType{eventFunctionType(i32v())}
	mc.Events = []EventType{{Attribute: EventAttributeException, TypeIndex: 0}}
	sink := NewErrorSink()

	try := instr(OpcodeTry)
	try.Immediate.Block = BlockType{Kind: BlockTypeVoid}

	throw := instr(OpcodeThrow)
	throw.Immediate.Index = 0

	catch := instr(OpcodeCatch)
	catch.Immediate.Index = 0

	body := []Instruction{
		try,
		instr(OpcodeI32Const),
		throw,
		catch,
		instr(OpcodeDrop),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_ThrowRequiresExceptionHandlingFeature(t *testing.T) {
	mc := newModuleContext(t, 0)
	mc.Types = []DefinedType{eventFunctionType()}
	mc.Events = []EventType{{TypeIndex: 0}}
	sink := NewErrorSink()

	throw := instr(OpcodeThrow)
	throw.Immediate.Index = 0
	err := ValidateFunction(mc, FunctionType{}, nil, []Instruction{throw}, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exception-handling")
}

func TestValidateFunction_BrOnExn(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureExceptionHandling, true)))
	mc.Types = []DefinedType{eventFunctionType(i32v())}
	mc.Events = []EventType{{TypeIndex: 0}}
	sink := NewErrorSink()

	block := instr(OpcodeBlock)
	block.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i32v()}

	brOnExn := instr(OpcodeBrOnExn)
	brOnExn.Immediate.BrOnExn = struct {
		Label Index
		Event Index
	}{Label: 0, Event: 0}

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = ExnHeapType()

	body := []Instruction{
		block,
		refNull,
		brOnExn,
		instr(OpcodeDrop), // drops the re-pushed exnref on the fallthrough path
		instr(OpcodeI32Const),
		instr(OpcodeEnd),
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func funcRefType(idx Index) ReferenceType {
	return ReferenceType{Heap: IndexHeapType(idx)}
}

func TestValidateFunction_CallRef(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureFunctionReferences, true)))
	mc.Types = []DefinedType{{Kind: DefinedTypeFunction, Function: FunctionType{Params: []ValueVariant{i32v()}, Results: []ValueVariant{i64v()}}}}
	sink := NewErrorSink()

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = IndexHeapType(0)

	body := []Instruction{
		instr(OpcodeI32Const),
		refNull,
		instr(OpcodeCallRef),
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_CallRefRequiresFunctionReferencesFeature(t *testing.T) {
	mc := newModuleContext(t, 0)
	mc.Types = []DefinedType{{Kind: DefinedTypeFunction}}
	sink := NewErrorSink()

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = IndexHeapType(0)
	body := []Instruction{refNull, instr(OpcodeCallRef)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "function-references")
}

func TestValidateFunction_CallRefPolymorphicUnderUnreachable(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureFunctionReferences, true)))
	sink := NewErrorSink()
	body := []Instruction{
		instr(OpcodeUnreachable),
		instr(OpcodeCallRef),
	}
	err := ValidateFunction(mc, FunctionType{Results: []ValueVariant{i32v()}}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_FuncBind(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureFunctionReferences, true)))
	mc.Types = []DefinedType{
		{Kind: DefinedTypeFunction, Function: FunctionType{Params: []ValueVariant{i32v(), i64v()}, Results: []ValueVariant{i32v()}}},
		{Kind: DefinedTypeFunction, Function: FunctionType{Params: []ValueVariant{i64v()}, Results: []ValueVariant{i32v()}}},
	}
	sink := NewErrorSink()

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = IndexHeapType(0)

	bind := instr(OpcodeFuncBind)
	bind.Immediate.Index = 1 // bind to the (i64)->i32 target type

	body := []Instruction{
		instr(OpcodeI32Const),
		refNull,
		bind,
		instr(OpcodeDrop),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_Let(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureFunctionReferences, true)))
	sink := NewErrorSink()

	let := instr(OpcodeLet)
	let.Immediate.Block = BlockType{Kind: BlockTypeVoid}
	let.Immediate.Locals = []LocalGroup{{Count: 1, ValType: i64v()}}

	getLet := instr(OpcodeLocalGet)
	getLet.Immediate.Index = 0 // the let-bound i64 local, not the function's i32 param

	body := []Instruction{
		let,
		getLet,
		instr(OpcodeDrop),
		instr(OpcodeEnd),
	}
	ft := FunctionType{Params: []ValueVariant{i32v()}}
	err := ValidateFunction(mc, ft, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_LetRequiresFunctionReferencesFeature(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()
	let := instr(OpcodeLet)
	let.Immediate.Block = BlockType{Kind: BlockTypeVoid}
	err := ValidateFunction(mc, FunctionType{}, nil, []Instruction{let, instr(OpcodeEnd)}, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "function-references")
}

func TestValidateFunction_UnreachableThenWrongResultType(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()

	block := instr(OpcodeBlock)
	block.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i32v()}

	// block [i32] unreachable end: valid (polymorphic stack supplies the i32).
	body := []Instruction{block, instr(OpcodeUnreachable), instr(OpcodeEnd), instr(OpcodeDrop), instr(OpcodeEnd)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)

	// block [i32] unreachable f32.const end: the concrete f32 on top cannot
	// satisfy the block's i32 result.
	sink2 := NewErrorSink()
	body2 := []Instruction{block, instr(OpcodeUnreachable), instr(OpcodeF32Const), instr(OpcodeEnd), instr(OpcodeDrop), instr(OpcodeEnd)}
	err = ValidateFunction(mc, FunctionType{}, nil, body2, sink2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected stack to contain [i32], got ...[f32]")
}

func TestValidateFunction_SelectWithoutTypeRejectsReferences(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureReferenceTypes, true)))
	sink := NewErrorSink()

	refNull := instr(OpcodeRefNull)
	refNull.Immediate.Heap = FuncHeapType()

	body := []Instruction{
		refNull, refNull,
		instr(OpcodeI32Const),
		instr(OpcodeSelect),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "select without expected type can only be used on i32/i64/f32/f64")
}

func TestValidateFunction_LoadAlignmentExceedsNatural(t *testing.T) {
	mc := newModuleContext(t, 0)
	mc.Memories = []MemoryType{{}}
	sink := NewErrorSink()

	load := instr(OpcodeI32Load)
	load.Immediate.MemArg = MemArg{Align: 3} // 2^3 = 8 > 4-byte access
	body := []Instruction{instr(OpcodeI32Const), load, instr(OpcodeDrop)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "natural alignment")

	sink2 := NewErrorSink()
	load.Immediate.MemArg = MemArg{Align: 2}
	body2 := []Instruction{instr(OpcodeI32Const), load, instr(OpcodeDrop)}
	err = ValidateFunction(mc, FunctionType{}, nil, body2, sink2)
	require.NoError(t, err)
}

func TestValidateFunction_SIMDLaneIndexOutOfRange(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureSIMD, true)))
	sink := NewErrorSink()

	extract := instr(OpcodeI64x2ExtractLane)
	extract.Immediate.Lane = 2 // i64x2 has lanes 0 and 1
	body := []Instruction{instr(OpcodeV128Const), extract, instr(OpcodeDrop)}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestValidateFunction_BrTableTargetTypesMustAgree(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()

	blockI32 := instr(OpcodeBlock)
	blockI32.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i32v()}
	blockI64 := instr(OpcodeBlock)
	blockI64.Immediate.Block = BlockType{Kind: BlockTypeValue, Value: i64v()}

	brTable := instr(OpcodeBrTable)
	brTable.Immediate.BrTable.Targets = []Index{1}
	brTable.Immediate.BrTable.Default = 0

	body := []Instruction{
		blockI64,
		blockI32,
		instr(OpcodeI32Const), // value for the branch
		instr(OpcodeI32Const), // condition
		brTable,
		instr(OpcodeEnd),
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "br_table")
}

func TestValidateFunction_BrTableZeroTargetsIsValid(t *testing.T) {
	mc := newModuleContext(t, 0)
	sink := NewErrorSink()

	brTable := instr(OpcodeBrTable)
	brTable.Immediate.BrTable.Default = 0

	body := []Instruction{
		instr(OpcodeI32Const),
		brTable,
		instr(OpcodeEnd),
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}

func TestValidateFunction_DataCountBoundsMemoryInit(t *testing.T) {
	mc := newModuleContext(t, NewFeatures(WithFeature(FeatureBulkMemoryOperations, true)))
	mc.Memories = []MemoryType{{}}
	two := uint32(2)
	mc.DataCount = &two
	sink := NewErrorSink()

	memInit := instr(OpcodeMemoryInit)
	memInit.Immediate.IndexPair = [2]Index{1, 0}
	body := []Instruction{
		instr(OpcodeI32Const), instr(OpcodeI32Const), instr(OpcodeI32Const),
		memInit,
	}
	err := ValidateFunction(mc, FunctionType{}, nil, body, sink)
	require.NoError(t, err)
}
