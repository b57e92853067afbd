package wasm

import "fmt"

// FuncValidator validates one function body's instruction stream against
// its declared signature and the enclosing module's context. It
// is deliberately stateful and single-use: construct one per function.
type FuncValidator struct {
	mc     *ModuleContext
	ctx    *Ctx
	sink   *ErrorSink
	locals []ValueVariant // params followed by declared locals
	stack  *opdStack

	// letLocals holds one entry per currently-open `let` frame, innermost
	// last; a `let`'s bound locals shadow the function's own locals and get
	// the lowest indices, per the function-references proposal's local
	// index renumbering.
	letLocals [][]ValueVariant
}

// NewFuncValidator builds a validator for a function of signature ft with
// additional declared locals, in module context mc.
func NewFuncValidator(mc *ModuleContext, ft FunctionType, locals []ValueVariant, sink *ErrorSink) *FuncValidator {
	all := make([]ValueVariant, 0, len(ft.Params)+len(locals))
	all = append(all, ft.Params...)
	all = append(all, locals...)
	v := &FuncValidator{
		mc:     mc,
		ctx:    mc.Ctx(),
		sink:   sink,
		locals: all,
		stack:  newOpdStack(),
	}
	v.stack.pushCtrl(ctrlFunction, nil, ft.Results)
	return v
}

func (v *FuncValidator) fail(loc Location, format string, args ...interface{}) error {
	return v.sink.Record(loc.Begin, format, args...)
}

// ValidateFunction runs the reference validation algorithm over
// body, a flat instruction stream in which block/loop/if/else/end appear
// as ordinary instructions marking nested scopes.
func ValidateFunction(mc *ModuleContext, ft FunctionType, locals []ValueVariant, body []Instruction, sink *ErrorSink) error {
	v := NewFuncValidator(mc, ft, locals, sink)
	for _, instr := range body {
		if err := v.Step(instr); err != nil {
			return err
		}
	}
	return v.Finish(Location{})
}

// Finish concludes validation once the instruction stream is exhausted:
// every block-level frame must have been closed by a matching end, and
// the function-level frame, if the body did not close it with an explicit
// end of its own, is closed here against the declared result types.
func (v *FuncValidator) Finish(loc Location) error {
	switch v.stack.depth() {
	case 0:
		return nil
	case 1:
		if _, ok, msg := v.stack.popCtrl(v.ctx); !ok {
			return v.fail(loc, "%s", msg)
		}
		return nil
	}
	return v.fail(loc, "function ended without matching end")
}

// StackValueLimit bounds how many operand-stack values a single function
// body may accumulate at once; exported as a var (rather than a const) so
// tests can shrink it instead of constructing pathological function
// bodies to exercise the limit.
var StackValueLimit = 1 << 20

func (v *FuncValidator) checkStackLimit(loc Location) error {
	if len(v.stack.vals) > StackValueLimit {
		return v.fail(loc, "function may have %d stack values, which exceeds limit %d", len(v.stack.vals), StackValueLimit)
	}
	return nil
}

// Step validates one instruction against the current stack/control state.
func (v *FuncValidator) Step(instr Instruction) error {
	op := instr.Opcode
	loc := instr.Location

	if sig, ok := LookupOpcodeSignature(op); ok {
		if sig.Feature != 0 {
			if err := v.mc.Features.Require(sig.Feature); err != nil {
				return v.fail(loc, "%s: %s", sig.Name, err.Error())
			}
		}
		for _, p := range sig.Params {
			expected := NumericValue(p)
			if _, ok, msg := v.stack.popVal(v.ctx, &expected); !ok {
				return v.fail(loc, "%s: %s", sig.Name, msg)
			}
		}
		for _, r := range sig.Results {
			v.stack.pushVal(NumericValue(r))
		}
		return v.checkStackLimit(loc)
	}

	if info, ok := LookupAtomicMemOp(op); ok {
		if err := v.atomicMemOpStep(loc, instr, info); err != nil {
			return err
		}
		return v.checkStackLimit(loc)
	}

	switch op {
	case OpcodeUnreachable:
		v.stack.markUnreachable()

	case OpcodeNop:
		// no-op

	case OpcodeBlock, OpcodeLoop, OpcodeIf, OpcodeTry:
		ft, err := v.blockFunctionType(instr.Immediate.Block)
		if err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		kind := ctrlBlock
		switch op {
		case OpcodeLoop:
			kind = ctrlLoop
		case OpcodeIf:
			kind = ctrlIf
			cond := NumericValue(ValueTypeI32)
			if _, ok, msg := v.stack.popVal(v.ctx, &cond); !ok {
				return v.fail(loc, "if: %s", msg)
			}
		case OpcodeTry:
			if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
				return v.fail(loc, "%s", err.Error())
			}
			kind = ctrlTry
		}
		if ok, msg := v.stack.popVals(v.ctx, ft.Params); !ok {
			return v.fail(loc, "%s", msg)
		}
		v.stack.pushCtrl(kind, ft.Params, ft.Results)

	case OpcodeElse:
		frame, ok, msg := v.stack.popCtrl(v.ctx)
		if !ok {
			return v.fail(loc, "else: %s", msg)
		}
		if frame.kind != ctrlIf {
			return v.fail(loc, "else: not matching an if")
		}
		v.stack.pushCtrl(ctrlElse, frame.startTypes, frame.endTypes)

	case OpcodeCatch:
		if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok, msg := v.stack.popCtrl(v.ctx)
		if !ok {
			return v.fail(loc, "catch: %s", msg)
		}
		if frame.kind != ctrlTry && frame.kind != ctrlCatch {
			return v.fail(loc, "catch: not matching a try")
		}
		ev, ok := v.mc.EventAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "catch: unknown event %d", instr.Immediate.Index)
		}
		dt, ok := v.mc.TypeAt(ev.TypeIndex)
		if !ok || dt.Kind != DefinedTypeFunction {
			return v.fail(loc, "catch: event %d has an invalid type", instr.Immediate.Index)
		}
		v.stack.pushCtrl(ctrlCatch, frame.startTypes, frame.endTypes)
		v.stack.pushVals(dt.Function.Params)

	case OpcodeThrow:
		if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		ev, ok := v.mc.EventAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "throw: unknown event %d", instr.Immediate.Index)
		}
		dt, ok := v.mc.TypeAt(ev.TypeIndex)
		if !ok || dt.Kind != DefinedTypeFunction {
			return v.fail(loc, "throw: event %d has an invalid type", instr.Immediate.Index)
		}
		if ok, msg := v.stack.popVals(v.ctx, dt.Function.Params); !ok {
			return v.fail(loc, "throw: %s", msg)
		}
		v.stack.markUnreachable()

	case OpcodeRethrow:
		if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok := v.stack.label(uint32(instr.Immediate.Index))
		if !ok {
			return v.fail(loc, "rethrow: invalid label %d", instr.Immediate.Index)
		}
		if frame.kind != ctrlCatch {
			return v.fail(loc, "rethrow: label %d does not target a catch", instr.Immediate.Index)
		}
		v.stack.markUnreachable()

	case OpcodeBrOnExn:
		if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok := v.stack.label(uint32(instr.Immediate.BrOnExn.Label))
		if !ok {
			return v.fail(loc, "br_on_exn: invalid label %d", instr.Immediate.BrOnExn.Label)
		}
		ev, ok := v.mc.EventAt(instr.Immediate.BrOnExn.Event)
		if !ok {
			return v.fail(loc, "br_on_exn: unknown event %d", instr.Immediate.BrOnExn.Event)
		}
		dt, ok := v.mc.TypeAt(ev.TypeIndex)
		if !ok || dt.Kind != DefinedTypeFunction {
			return v.fail(loc, "br_on_exn: event %d has an invalid type", instr.Immediate.BrOnExn.Event)
		}
		exn := ReferenceValue(ExnRefType())
		if _, ok, msg := v.stack.popVal(v.ctx, &exn); !ok {
			return v.fail(loc, "br_on_exn: %s", msg)
		}
		v.stack.pushVals(dt.Function.Params)
		if ok, msg := v.stack.popVals(v.ctx, frame.labelTypes()); !ok {
			return v.fail(loc, "br_on_exn: %s", msg)
		}
		v.stack.pushVal(exn)

	case OpcodeLet:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		ft, err := v.blockFunctionType(instr.Immediate.Block)
		if err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if ok, msg := v.stack.popVals(v.ctx, ft.Params); !ok {
			return v.fail(loc, "%s", msg)
		}
		v.stack.pushCtrl(ctrlLet, ft.Params, ft.Results)
		v.letLocals = append(v.letLocals, expandLocalGroups(instr.Immediate.Locals))

	case OpcodeEnd:
		frame, ok, msg := v.stack.popCtrl(v.ctx)
		if !ok {
			return v.fail(loc, "end: %s", msg)
		}
		if frame.kind == ctrlLet {
			v.letLocals = v.letLocals[:len(v.letLocals)-1]
		}
		v.stack.pushVals(frame.endTypes)

	case OpcodeBr:
		frame, ok := v.stack.label(uint32(instr.Immediate.Index))
		if !ok {
			return v.fail(loc, "br: invalid label %d", instr.Immediate.Index)
		}
		if ok, msg := v.stack.popVals(v.ctx, frame.labelTypes()); !ok {
			return v.fail(loc, "br: %s", msg)
		}
		v.stack.markUnreachable()

	case OpcodeBrIf:
		frame, ok := v.stack.label(uint32(instr.Immediate.Index))
		if !ok {
			return v.fail(loc, "br_if: invalid label %d", instr.Immediate.Index)
		}
		cond := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &cond); !ok {
			return v.fail(loc, "br_if: %s", msg)
		}
		types := frame.labelTypes()
		if ok, msg := v.stack.popVals(v.ctx, types); !ok {
			return v.fail(loc, "br_if: %s", msg)
		}
		v.stack.pushVals(types)

	case OpcodeBrTable:
		def, ok := v.stack.label(uint32(instr.Immediate.BrTable.Default))
		if !ok {
			return v.fail(loc, "br_table: invalid default label")
		}
		defTypes := def.labelTypes()
		for _, t := range instr.Immediate.BrTable.Targets {
			f, ok := v.stack.label(uint32(t))
			if !ok {
				return v.fail(loc, "br_table: invalid label %d", t)
			}
			targetTypes := f.labelTypes()
			if len(targetTypes) != len(defTypes) {
				return v.fail(loc, "br_table: target arity mismatch")
			}
			// Pre-reference-types, every target's branch type must be
			// pointwise identical to the default's; with subtyping in
			// play, equal arity is the per-target requirement and the
			// operand check below covers the rest.
			if !v.mc.Features.Get(FeatureReferenceTypes) {
				for i := range targetTypes {
					if !v.ctx.IsSameValue(targetTypes[i], defTypes[i]) {
						return v.fail(loc, "br_table: target type mismatch")
					}
				}
			}
		}
		cond := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &cond); !ok {
			return v.fail(loc, "br_table: %s", msg)
		}
		if ok, msg := v.stack.popVals(v.ctx, defTypes); !ok {
			return v.fail(loc, "br_table: %s", msg)
		}
		v.stack.markUnreachable()

	case OpcodeReturn:
		fn, _ := v.stack.label(uint32(v.stack.depth() - 1))
		if ok, msg := v.stack.popVals(v.ctx, fn.endTypes); !ok {
			return v.fail(loc, "return: %s", msg)
		}
		v.stack.markUnreachable()

	case OpcodeCall:
		ft, ok := v.mc.FunctionType(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "call: unknown function %d", instr.Immediate.Index)
		}
		if ok, msg := v.stack.popVals(v.ctx, ft.Params); !ok {
			return v.fail(loc, "call: %s", msg)
		}
		v.stack.pushVals(ft.Results)

	case OpcodeCallIndirect:
		typeIdx, tableIdx := instr.Immediate.IndexPair[0], instr.Immediate.IndexPair[1]
		dt, ok := v.mc.TypeAt(typeIdx)
		if !ok || dt.Kind != DefinedTypeFunction {
			return v.fail(loc, "call_indirect: unknown type %d", typeIdx)
		}
		table, ok := v.mc.TableAt(tableIdx)
		if !ok {
			return v.fail(loc, "call_indirect: unknown table %d", tableIdx)
		}
		if !table.RefType.Heap.IsIndex && table.RefType.Heap.Kind != HeapTypeKindFunc {
			return v.fail(loc, "call_indirect: table %d is not a function table", tableIdx)
		}
		idxOperand := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idxOperand); !ok {
			return v.fail(loc, "call_indirect: %s", msg)
		}
		if ok, msg := v.stack.popVals(v.ctx, dt.Function.Params); !ok {
			return v.fail(loc, "call_indirect: %s", msg)
		}
		v.stack.pushVals(dt.Function.Results)

	case OpcodeReturnCall, OpcodeReturnCallIndirect:
		if err := v.mc.Features.Require(FeatureTailCall); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		// Tail calls are validated like call/call_indirect followed by
		// return: the callee's result type must match the enclosing
		// function's result type exactly.
		var callee FunctionType
		if op == OpcodeReturnCall {
			ft, ok := v.mc.FunctionType(instr.Immediate.Index)
			if !ok {
				return v.fail(loc, "return_call: unknown function %d", instr.Immediate.Index)
			}
			callee = ft
		} else {
			typeIdx := instr.Immediate.IndexPair[0]
			dt, ok := v.mc.TypeAt(typeIdx)
			if !ok || dt.Kind != DefinedTypeFunction {
				return v.fail(loc, "return_call_indirect: unknown type %d", typeIdx)
			}
			idxOperand := NumericValue(ValueTypeI32)
			if _, ok, msg := v.stack.popVal(v.ctx, &idxOperand); !ok {
				return v.fail(loc, "return_call_indirect: %s", msg)
			}
			callee = dt.Function
		}
		if ok, msg := v.stack.popVals(v.ctx, callee.Params); !ok {
			return v.fail(loc, "tail call: %s", msg)
		}
		fn, _ := v.stack.label(uint32(v.stack.depth() - 1))
		if !v.ctx.IsMatchValueList(fn.endTypes, callee.Results) {
			return v.fail(loc, "tail call: result type does not match enclosing function")
		}
		v.stack.markUnreachable()

	case OpcodeDrop:
		if _, ok, msg := v.stack.popVal(v.ctx, nil); !ok {
			return v.fail(loc, "drop: %s", msg)
		}

	case OpcodeSelect:
		cond := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &cond); !ok {
			return v.fail(loc, "select: %s", msg)
		}
		a, ok, msg := v.stack.popVal(v.ctx, nil)
		if !ok {
			return v.fail(loc, "select: %s", msg)
		}
		if !a.IsAny && a.Value.Kind != ValueVariantNumeric {
			return v.fail(loc, "select without expected type can only be used on i32/i64/f32/f64")
		}
		if a.IsAny {
			b, ok, msg := v.stack.popVal(v.ctx, nil)
			if !ok {
				return v.fail(loc, "select: %s", msg)
			}
			if !b.IsAny && b.Value.Kind != ValueVariantNumeric {
				return v.fail(loc, "select without expected type can only be used on i32/i64/f32/f64")
			}
			if b.IsAny {
				v.stack.pushAny()
			} else {
				v.stack.pushVal(b.Value)
			}
		} else {
			if _, ok, msg := v.stack.popVal(v.ctx, &a.Value); !ok {
				return v.fail(loc, "select: %s", msg)
			}
			v.stack.pushVal(a.Value)
		}

	case OpcodeSelectT:
		cond := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &cond); !ok {
			return v.fail(loc, "select: %s", msg)
		}
		if ok, msg := v.stack.popVals(v.ctx, instr.Immediate.SelectTypes); !ok {
			return v.fail(loc, "select: %s", msg)
		}
		v.stack.pushVals(instr.Immediate.SelectTypes)

	case OpcodeLocalGet:
		t, err := v.localType(instr.Immediate.Index)
		if err != nil {
			return v.fail(loc, "local.get: %s", err.Error())
		}
		v.stack.pushVal(t)

	case OpcodeLocalSet:
		t, err := v.localType(instr.Immediate.Index)
		if err != nil {
			return v.fail(loc, "local.set: %s", err.Error())
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &t); !ok {
			return v.fail(loc, "local.set: %s", msg)
		}

	case OpcodeLocalTee:
		t, err := v.localType(instr.Immediate.Index)
		if err != nil {
			return v.fail(loc, "local.tee: %s", err.Error())
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &t); !ok {
			return v.fail(loc, "local.tee: %s", msg)
		}
		v.stack.pushVal(t)

	case OpcodeGlobalGet:
		g, ok := v.mc.GlobalAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "global.get: unknown global %d", instr.Immediate.Index)
		}
		v.stack.pushVal(g.ValType)

	case OpcodeGlobalSet:
		g, ok := v.mc.GlobalAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "global.set: unknown global %d", instr.Immediate.Index)
		}
		if !g.Mutable {
			return v.fail(loc, "global.set: global %d is immutable", instr.Immediate.Index)
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &g.ValType); !ok {
			return v.fail(loc, "global.set: %s", msg)
		}

	case OpcodeTableGet:
		t, ok := v.mc.TableAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "table.get: unknown table %d", instr.Immediate.Index)
		}
		idx := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idx); !ok {
			return v.fail(loc, "table.get: %s", msg)
		}
		v.stack.pushVal(ReferenceValue(t.RefType))

	case OpcodeTableSet:
		t, ok := v.mc.TableAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "table.set: unknown table %d", instr.Immediate.Index)
		}
		val := ReferenceValue(t.RefType)
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "table.set: %s", msg)
		}
		idx := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idx); !ok {
			return v.fail(loc, "table.set: %s", msg)
		}

	case OpcodeRefNull:
		// Typed (index) heap types come with function-references and exn
		// with exception-handling; the other heap types need reference-types.
		switch heap := instr.Immediate.Heap; {
		case heap.IsIndex:
			if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
				return v.fail(loc, "%s", err.Error())
			}
		case heap.Kind == HeapTypeKindExn:
			if err := v.mc.Features.Require(FeatureExceptionHandling); err != nil {
				return v.fail(loc, "%s", err.Error())
			}
		default:
			if err := v.requireReferenceTypes(loc); err != nil {
				return err
			}
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: instr.Immediate.Heap, Nullable: true}))

	case OpcodeRefIsNull:
		if err := v.requireReferenceTypes(loc); err != nil {
			return err
		}
		if _, ok, msg := v.stack.popVal(v.ctx, nil); !ok {
			return v.fail(loc, "ref.is_null: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeRefFunc:
		if err := v.requireReferenceTypes(loc); err != nil {
			return err
		}
		if _, ok := v.mc.FunctionType(instr.Immediate.Index); !ok {
			return v.fail(loc, "ref.func: unknown function %d", instr.Immediate.Index)
		}
		if !v.mc.DeclaredFunctions[instr.Immediate.Index] {
			return v.fail(loc, "ref.func: function %d is not declared", instr.Immediate.Index)
		}
		v.stack.pushVal(ReferenceValue(FuncRefType()))

	case OpcodeRefAsNonNull:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		val, ok, msg := v.stack.popVal(v.ctx, nil)
		if !ok {
			return v.fail(loc, "ref.as_non_null: %s", msg)
		}
		if val.IsAny {
			v.stack.pushAny()
		} else {
			r := val.Value.Reference
			r.Nullable = false
			v.stack.pushVal(ReferenceValue(r))
		}

	case OpcodeRefEq:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		eq := ReferenceValue(ReferenceType{Heap: EqHeapType(), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &eq); !ok {
			return v.fail(loc, "ref.eq: %s", msg)
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &eq); !ok {
			return v.fail(loc, "ref.eq: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeBrOnNull:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok := v.stack.label(uint32(instr.Immediate.Index))
		if !ok {
			return v.fail(loc, "br_on_null: invalid label %d", instr.Immediate.Index)
		}
		val, ok, msg := v.stack.popVal(v.ctx, nil)
		if !ok {
			return v.fail(loc, "br_on_null: %s", msg)
		}
		// Branch-taken case (value is null): the label must accept the
		// surrounding value types with the reference dropped.
		if ok, msg := v.stack.popVals(v.ctx, frame.labelTypes()); !ok {
			return v.fail(loc, "br_on_null: %s", msg)
		}
		v.stack.pushVals(frame.labelTypes())
		// Fallthrough case: a non-null reference is left on the stack.
		if val.IsAny {
			v.stack.pushAny()
		} else {
			r := val.Value.Reference
			r.Nullable = false
			v.stack.pushVal(ReferenceValue(r))
		}

	case OpcodeBrOnNonNull:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok := v.stack.label(uint32(instr.Immediate.Index))
		if !ok {
			return v.fail(loc, "br_on_non_null: invalid label %d", instr.Immediate.Index)
		}
		// The label's own types end in the non-null reference produced
		// when the branch is taken; on the fallthrough the reference is
		// a null that gets dropped, leaving the rest on the stack.
		types := frame.labelTypes()
		if len(types) == 0 {
			return v.fail(loc, "br_on_non_null: branch target has no label types")
		}
		if ok, msg := v.stack.popVals(v.ctx, types); !ok {
			return v.fail(loc, "br_on_non_null: %s", msg)
		}
		v.stack.pushVals(types[:len(types)-1])

	case OpcodeMemorySize:
		if _, ok := v.mc.MemoryAt(instr.Immediate.Index); !ok {
			return v.fail(loc, "memory.size: unknown memory %d", instr.Immediate.Index)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeMemoryGrow:
		if _, ok := v.mc.MemoryAt(instr.Immediate.Index); !ok {
			return v.fail(loc, "memory.grow: unknown memory %d", instr.Immediate.Index)
		}
		delta := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &delta); !ok {
			return v.fail(loc, "memory.grow: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeI32Const:
		v.stack.pushVal(NumericValue(ValueTypeI32))
	case OpcodeI64Const:
		v.stack.pushVal(NumericValue(ValueTypeI64))
	case OpcodeF32Const:
		v.stack.pushVal(NumericValue(ValueTypeF32))
	case OpcodeF64Const:
		v.stack.pushVal(NumericValue(ValueTypeF64))

	case OpcodeI32Load, OpcodeI32Load8S, OpcodeI32Load8U, OpcodeI32Load16S, OpcodeI32Load16U:
		if err := v.memOp(loc, instr, nil, ValueTypeI32); err != nil {
			return err
		}
	case OpcodeI64Load, OpcodeI64Load8S, OpcodeI64Load8U, OpcodeI64Load16S, OpcodeI64Load16U, OpcodeI64Load32S, OpcodeI64Load32U:
		if err := v.memOp(loc, instr, nil, ValueTypeI64); err != nil {
			return err
		}
	case OpcodeF32Load:
		if err := v.memOp(loc, instr, nil, ValueTypeF32); err != nil {
			return err
		}
	case OpcodeF64Load:
		if err := v.memOp(loc, instr, nil, ValueTypeF64); err != nil {
			return err
		}
	case OpcodeI32Store, OpcodeI32Store8, OpcodeI32Store16:
		t := ValueTypeI32
		if err := v.memOp(loc, instr, &t, 0); err != nil {
			return err
		}
	case OpcodeI64Store, OpcodeI64Store8, OpcodeI64Store16, OpcodeI64Store32:
		t := ValueTypeI64
		if err := v.memOp(loc, instr, &t, 0); err != nil {
			return err
		}
	case OpcodeF32Store:
		t := ValueTypeF32
		if err := v.memOp(loc, instr, &t, 0); err != nil {
			return err
		}
	case OpcodeF64Store:
		t := ValueTypeF64
		if err := v.memOp(loc, instr, &t, 0); err != nil {
			return err
		}

	case OpcodeMemoryInit:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		segIdx := instr.Immediate.IndexPair[0]
		if !v.mc.DataSegmentInBounds(segIdx) {
			return v.fail(loc, "memory.init: unknown data segment %d", segIdx)
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.IndexPair[1]); !ok {
			return v.fail(loc, "memory.init: unknown memory %d", instr.Immediate.IndexPair[1])
		}
		if ok, msg := v.stack.popVals(v.ctx, threeI32); !ok {
			return v.fail(loc, "memory.init: %s", msg)
		}

	case OpcodeDataDrop:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if !v.mc.DataSegmentInBounds(instr.Immediate.Index) {
			return v.fail(loc, "data.drop: unknown data segment %d", instr.Immediate.Index)
		}

	case OpcodeMemoryCopy:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.Copy[0]); !ok {
			return v.fail(loc, "memory.copy: unknown memory %d", instr.Immediate.Copy[0])
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.Copy[1]); !ok {
			return v.fail(loc, "memory.copy: unknown memory %d", instr.Immediate.Copy[1])
		}
		if ok, msg := v.stack.popVals(v.ctx, threeI32); !ok {
			return v.fail(loc, "memory.copy: %s", msg)
		}

	case OpcodeMemoryFill:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.Index); !ok {
			return v.fail(loc, "memory.fill: unknown memory %d", instr.Immediate.Index)
		}
		if ok, msg := v.stack.popVals(v.ctx, threeI32); !ok {
			return v.fail(loc, "memory.fill: %s", msg)
		}

	case OpcodeTableInit:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		segIdx, tableIdx := instr.Immediate.IndexPair[0], instr.Immediate.IndexPair[1]
		if int(segIdx) >= len(v.mc.ElementSegmentTypes) {
			return v.fail(loc, "table.init: unknown element segment %d", segIdx)
		}
		table, ok := v.mc.TableAt(tableIdx)
		if !ok {
			return v.fail(loc, "table.init: unknown table %d", tableIdx)
		}
		if !v.ctx.IsMatchReference(table.RefType, v.mc.ElementSegmentTypes[segIdx]) {
			return v.fail(loc, "table.init: element type does not match table type")
		}
		if ok, msg := v.stack.popVals(v.ctx, threeI32); !ok {
			return v.fail(loc, "table.init: %s", msg)
		}

	case OpcodeElemDrop:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if int(instr.Immediate.Index) >= len(v.mc.ElementSegmentTypes) {
			return v.fail(loc, "elem.drop: unknown element segment %d", instr.Immediate.Index)
		}

	case OpcodeTableCopy:
		if err := v.mc.Features.Require(FeatureBulkMemoryOperations); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dst, ok := v.mc.TableAt(instr.Immediate.Copy[0])
		if !ok {
			return v.fail(loc, "table.copy: unknown table %d", instr.Immediate.Copy[0])
		}
		src, ok := v.mc.TableAt(instr.Immediate.Copy[1])
		if !ok {
			return v.fail(loc, "table.copy: unknown table %d", instr.Immediate.Copy[1])
		}
		if !v.ctx.IsMatchReference(dst.RefType, src.RefType) {
			return v.fail(loc, "table.copy: table types do not match")
		}
		if ok, msg := v.stack.popVals(v.ctx, threeI32); !ok {
			return v.fail(loc, "table.copy: %s", msg)
		}

	case OpcodeTableGrow:
		table, ok := v.mc.TableAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "table.grow: unknown table %d", instr.Immediate.Index)
		}
		n := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &n); !ok {
			return v.fail(loc, "table.grow: %s", msg)
		}
		init := ReferenceValue(table.RefType)
		if _, ok, msg := v.stack.popVal(v.ctx, &init); !ok {
			return v.fail(loc, "table.grow: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeTableSize:
		if _, ok := v.mc.TableAt(instr.Immediate.Index); !ok {
			return v.fail(loc, "table.size: unknown table %d", instr.Immediate.Index)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeTableFill:
		table, ok := v.mc.TableAt(instr.Immediate.Index)
		if !ok {
			return v.fail(loc, "table.fill: unknown table %d", instr.Immediate.Index)
		}
		n := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &n); !ok {
			return v.fail(loc, "table.fill: %s", msg)
		}
		val := ReferenceValue(table.RefType)
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "table.fill: %s", msg)
		}
		idx := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idx); !ok {
			return v.fail(loc, "table.fill: %s", msg)
		}

	case OpcodeCallRef:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		fn, ok, msg := v.typedFuncRefOperand(loc, "call_ref")
		if !ok {
			return msg
		}
		if fn != nil {
			if ok, m := v.stack.popVals(v.ctx, fn.Params); !ok {
				return v.fail(loc, "call_ref: %s", m)
			}
			v.stack.pushVals(fn.Results)
		}

	case OpcodeReturnCallRef:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		fn, ok, msg := v.typedFuncRefOperand(loc, "return_call_ref")
		if !ok {
			return msg
		}
		if fn != nil {
			if ok, m := v.stack.popVals(v.ctx, fn.Params); !ok {
				return v.fail(loc, "return_call_ref: %s", m)
			}
			enclosing, _ := v.stack.label(uint32(v.stack.depth() - 1))
			if !v.ctx.IsMatchValueList(enclosing.endTypes, fn.Results) {
				return v.fail(loc, "return_call_ref: result type does not match enclosing function")
			}
		}
		v.stack.markUnreachable()

	case OpcodeFuncBind:
		if err := v.mc.Features.Require(FeatureFunctionReferences); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dt, ok := v.mc.TypeAt(instr.Immediate.Index)
		if !ok || dt.Kind != DefinedTypeFunction {
			return v.fail(loc, "func.bind: unknown type %d", instr.Immediate.Index)
		}
		fn, ok, msg := v.typedFuncRefOperand(loc, "func.bind")
		if !ok {
			return msg
		}
		if fn != nil {
			if len(fn.Params) < len(dt.Function.Params) {
				return v.fail(loc, "func.bind: target type has more params than the bound function")
			}
			bound := len(fn.Params) - len(dt.Function.Params)
			if ok, m := v.stack.popVals(v.ctx, fn.Params[:bound]); !ok {
				return v.fail(loc, "func.bind: %s", m)
			}
			if !v.ctx.IsMatchValueList(dt.Function.Params, fn.Params[bound:]) ||
				!v.ctx.IsMatchValueList(fn.Results, dt.Function.Results) {
				return v.fail(loc, "func.bind: bound type is not compatible with the function reference")
			}
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: IndexHeapType(instr.Immediate.Index), Nullable: false}))

	case OpcodeStructNew, OpcodeStructNewDefault:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dt, ok := v.mc.TypeAt(instr.Immediate.Index)
		if !ok || dt.Kind != DefinedTypeStruct {
			return v.fail(loc, "struct.new: unknown struct type %d", instr.Immediate.Index)
		}
		if op == OpcodeStructNew {
			for i := len(dt.Struct.Fields) - 1; i >= 0; i-- {
				f := fieldOperandType(dt.Struct.Fields[i])
				if _, ok, msg := v.stack.popVal(v.ctx, &f); !ok {
					return v.fail(loc, "struct.new: %s", msg)
				}
			}
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: IndexHeapType(instr.Immediate.Index)}))

	case OpcodeStructGet, OpcodeStructGetS, OpcodeStructGetU:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		typeIdx, fieldIdx := instr.Immediate.StructField[0], instr.Immediate.StructField[1]
		dt, ok := v.mc.TypeAt(typeIdx)
		if !ok || dt.Kind != DefinedTypeStruct {
			return v.fail(loc, "struct.get: unknown struct type %d", typeIdx)
		}
		if int(fieldIdx) >= len(dt.Struct.Fields) {
			return v.fail(loc, "struct.get: unknown field %d", fieldIdx)
		}
		field := dt.Struct.Fields[fieldIdx]
		packedAccessor := op == OpcodeStructGetS || op == OpcodeStructGetU
		if (field.Storage.Kind == StorageTypePacked) != packedAccessor {
			return v.fail(loc, "struct.get: wrong accessor for field %d's storage type", fieldIdx)
		}
		ref := ReferenceValue(ReferenceType{Heap: IndexHeapType(typeIdx), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "struct.get: %s", msg)
		}
		v.stack.pushVal(fieldOperandType(field))

	case OpcodeStructSet:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		typeIdx, fieldIdx := instr.Immediate.StructField[0], instr.Immediate.StructField[1]
		dt, ok := v.mc.TypeAt(typeIdx)
		if !ok || dt.Kind != DefinedTypeStruct {
			return v.fail(loc, "struct.set: unknown struct type %d", typeIdx)
		}
		if int(fieldIdx) >= len(dt.Struct.Fields) {
			return v.fail(loc, "struct.set: unknown field %d", fieldIdx)
		}
		field := dt.Struct.Fields[fieldIdx]
		if !field.Mutable {
			return v.fail(loc, "struct.set: field %d is immutable", fieldIdx)
		}
		val := fieldOperandType(field)
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "struct.set: %s", msg)
		}
		ref := ReferenceValue(ReferenceType{Heap: IndexHeapType(typeIdx), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "struct.set: %s", msg)
		}

	case OpcodeArrayNew, OpcodeArrayNewDefault:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dt, ok := v.mc.TypeAt(instr.Immediate.Index)
		if !ok || dt.Kind != DefinedTypeArray {
			return v.fail(loc, "array.new: unknown array type %d", instr.Immediate.Index)
		}
		n := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &n); !ok {
			return v.fail(loc, "array.new: %s", msg)
		}
		if op == OpcodeArrayNew {
			f := fieldOperandType(dt.Array.Field)
			if _, ok, msg := v.stack.popVal(v.ctx, &f); !ok {
				return v.fail(loc, "array.new: %s", msg)
			}
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: IndexHeapType(instr.Immediate.Index)}))

	case OpcodeArrayGet, OpcodeArrayGetS, OpcodeArrayGetU:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dt, ok := v.mc.TypeAt(instr.Immediate.Index)
		if !ok || dt.Kind != DefinedTypeArray {
			return v.fail(loc, "array.get: unknown array type %d", instr.Immediate.Index)
		}
		packedAccessor := op == OpcodeArrayGetS || op == OpcodeArrayGetU
		if (dt.Array.Field.Storage.Kind == StorageTypePacked) != packedAccessor {
			return v.fail(loc, "array.get: wrong accessor for the array's storage type")
		}
		idx := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idx); !ok {
			return v.fail(loc, "array.get: %s", msg)
		}
		ref := ReferenceValue(ReferenceType{Heap: IndexHeapType(instr.Immediate.Index), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "array.get: %s", msg)
		}
		v.stack.pushVal(fieldOperandType(dt.Array.Field))

	case OpcodeArraySet:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		dt, ok := v.mc.TypeAt(instr.Immediate.Index)
		if !ok || dt.Kind != DefinedTypeArray {
			return v.fail(loc, "array.set: unknown array type %d", instr.Immediate.Index)
		}
		if !dt.Array.Field.Mutable {
			return v.fail(loc, "array.set: array %d's elements are immutable", instr.Immediate.Index)
		}
		val := fieldOperandType(dt.Array.Field)
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "array.set: %s", msg)
		}
		idx := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &idx); !ok {
			return v.fail(loc, "array.set: %s", msg)
		}
		ref := ReferenceValue(ReferenceType{Heap: IndexHeapType(instr.Immediate.Index), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "array.set: %s", msg)
		}

	case OpcodeArrayLen:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		ref := ReferenceValue(ReferenceType{Heap: EqHeapType(), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "array.len: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeI31New:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		n := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &n); !ok {
			return v.fail(loc, "i31.new: %s", msg)
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: I31HeapType()}))

	case OpcodeI31GetS, OpcodeI31GetU:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		ref := ReferenceValue(ReferenceType{Heap: I31HeapType(), Nullable: true})
		if _, ok, msg := v.stack.popVal(v.ctx, &ref); !ok {
			return v.fail(loc, "i31.get: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeRefTest:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok, msg := v.stack.popVal(v.ctx, nil); !ok {
			return v.fail(loc, "ref.test: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeRefCast:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok, msg := v.stack.popVal(v.ctx, nil); !ok {
			return v.fail(loc, "ref.cast: %s", msg)
		}
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: instr.Immediate.Heap}))

	case OpcodeBrOnCast:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		frame, ok := v.stack.label(uint32(instr.Immediate.BrOnCast.Label))
		if !ok {
			return v.fail(loc, "br_on_cast: invalid label %d", instr.Immediate.BrOnCast.Label)
		}
		types := frame.labelTypes()
		if len(types) == 0 {
			return v.fail(loc, "br_on_cast: branch target has no label types")
		}
		val, ok, msg := v.stack.popVal(v.ctx, nil)
		if !ok {
			return v.fail(loc, "br_on_cast: %s", msg)
		}
		// Taken path: the operand is replaced by the cast target type,
		// which the label's last type must accept.
		v.stack.pushVal(ReferenceValue(ReferenceType{Heap: instr.Immediate.BrOnCast.Heap}))
		if ok, m := v.stack.popVals(v.ctx, types); !ok {
			return v.fail(loc, "br_on_cast: %s", m)
		}
		// Fallthrough path: everything below the operand stays, and the
		// operand keeps its original type.
		v.stack.pushVals(types[:len(types)-1])
		if val.IsAny {
			v.stack.pushAny()
		} else {
			v.stack.pushVal(val.Value)
		}

	case OpcodeRttCanon:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		v.stack.pushVal(RttValue(Rtt{Depth: instr.Immediate.Rtt.Depth, Heap: instr.Immediate.Rtt.Heap}))

	case OpcodeRttSub:
		if err := v.mc.Features.Require(FeatureGC); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		val, ok, msg := v.stack.popVal(v.ctx, nil)
		if !ok {
			return v.fail(loc, "rtt.sub: %s", msg)
		}
		depth := uint32(0)
		if !val.IsAny && val.Value.Kind == ValueVariantRtt {
			depth = val.Value.Rtt.Depth + 1
		}
		v.stack.pushVal(RttValue(Rtt{Depth: depth, Heap: instr.Immediate.Heap}))

	case OpcodeAtomicNotify:
		if err := v.requireSharedMemory(loc, instr.Immediate.MemArg.MemoryIndex, "memory.atomic.notify"); err != nil {
			return err
		}
		if ok, msg := v.stack.popVals(v.ctx, twoI32); !ok {
			return v.fail(loc, "memory.atomic.notify: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeAtomicWait32:
		if err := v.requireSharedMemory(loc, instr.Immediate.MemArg.MemoryIndex, "memory.atomic.wait32"); err != nil {
			return err
		}
		if ok, msg := v.stack.popVals(v.ctx, []ValueVariant{NumericValue(ValueTypeI32), NumericValue(ValueTypeI32), NumericValue(ValueTypeI64)}); !ok {
			return v.fail(loc, "memory.atomic.wait32: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeAtomicWait64:
		if err := v.requireSharedMemory(loc, instr.Immediate.MemArg.MemoryIndex, "memory.atomic.wait64"); err != nil {
			return err
		}
		if ok, msg := v.stack.popVals(v.ctx, []ValueVariant{NumericValue(ValueTypeI32), NumericValue(ValueTypeI64), NumericValue(ValueTypeI64)}); !ok {
			return v.fail(loc, "memory.atomic.wait64: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeI32))

	case OpcodeAtomicFence:
		if err := v.mc.Features.Require(FeatureThreads); err != nil {
			return v.fail(loc, "%s", err.Error())
		}

	case OpcodeV128Load, OpcodeV128Load8x8S, OpcodeV128Load8x8U, OpcodeV128Load16x4S, OpcodeV128Load16x4U,
		OpcodeV128Load32x2S, OpcodeV128Load32x2U, OpcodeV128Load8Splat, OpcodeV128Load16Splat,
		OpcodeV128Load32Splat, OpcodeV128Load64Splat:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if err := v.memOp(loc, instr, nil, ValueTypeV128); err != nil {
			return err
		}

	case OpcodeV128Store:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		t := ValueTypeV128
		if err := v.memOp(loc, instr, &t, 0); err != nil {
			return err
		}

	case OpcodeV128Const:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		v.stack.pushVal(NumericValue(ValueTypeV128))

	case OpcodeI8x16Shuffle:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		for _, lane := range instr.Immediate.Shuffle {
			if lane >= 32 {
				return v.fail(loc, "i8x16.shuffle: lane index %d out of range (32 lanes across both operands)", lane)
			}
		}
		if ok, msg := v.stack.popVals(v.ctx, twoV128); !ok {
			return v.fail(loc, "i8x16.shuffle: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeV128))

	case OpcodeI8x16ExtractLaneS, OpcodeI8x16ExtractLaneU, OpcodeI16x8ExtractLaneS, OpcodeI16x8ExtractLaneU,
		OpcodeI32x4ExtractLane, OpcodeI64x2ExtractLane, OpcodeF32x4ExtractLane, OpcodeF64x2ExtractLane:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if n := simdLaneCount(op); uint32(instr.Immediate.Lane) >= n {
			return v.fail(loc, "extract_lane: lane index %d out of range (%d lanes)", instr.Immediate.Lane, n)
		}
		operand := NumericValue(ValueTypeV128)
		if _, ok, msg := v.stack.popVal(v.ctx, &operand); !ok {
			return v.fail(loc, "extract_lane: %s", msg)
		}
		v.stack.pushVal(NumericValue(simdLaneResultType(op)))

	case OpcodeI8x16ReplaceLane, OpcodeI16x8ReplaceLane, OpcodeI32x4ReplaceLane, OpcodeI64x2ReplaceLane,
		OpcodeF32x4ReplaceLane, OpcodeF64x2ReplaceLane:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if n := simdLaneCount(op); uint32(instr.Immediate.Lane) >= n {
			return v.fail(loc, "replace_lane: lane index %d out of range (%d lanes)", instr.Immediate.Lane, n)
		}
		scalar := NumericValue(simdLaneResultType(op))
		if _, ok, msg := v.stack.popVal(v.ctx, &scalar); !ok {
			return v.fail(loc, "replace_lane: %s", msg)
		}
		operand := NumericValue(ValueTypeV128)
		if _, ok, msg := v.stack.popVal(v.ctx, &operand); !ok {
			return v.fail(loc, "replace_lane: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeV128))

	case OpcodeV128Load8Lane, OpcodeV128Load16Lane, OpcodeV128Load32Lane, OpcodeV128Load64Lane:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.MemArg.MemoryIndex); !ok {
			return v.fail(loc, "load_lane: unknown memory %d", instr.Immediate.MemArg.MemoryIndex)
		}
		if n := simdLaneCount(op); uint32(instr.Immediate.Lane) >= n {
			return v.fail(loc, "load_lane: lane index %d out of range (%d lanes)", instr.Immediate.Lane, n)
		}
		operand := NumericValue(ValueTypeV128)
		if _, ok, msg := v.stack.popVal(v.ctx, &operand); !ok {
			return v.fail(loc, "load_lane: %s", msg)
		}
		addr := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
			return v.fail(loc, "load_lane: %s", msg)
		}
		v.stack.pushVal(NumericValue(ValueTypeV128))

	case OpcodeV128Store8Lane, OpcodeV128Store16Lane, OpcodeV128Store32Lane, OpcodeV128Store64Lane:
		if err := v.mc.Features.Require(FeatureSIMD); err != nil {
			return v.fail(loc, "%s", err.Error())
		}
		if _, ok := v.mc.MemoryAt(instr.Immediate.MemArg.MemoryIndex); !ok {
			return v.fail(loc, "store_lane: unknown memory %d", instr.Immediate.MemArg.MemoryIndex)
		}
		if n := simdLaneCount(op); uint32(instr.Immediate.Lane) >= n {
			return v.fail(loc, "store_lane: lane index %d out of range (%d lanes)", instr.Immediate.Lane, n)
		}
		operand := NumericValue(ValueTypeV128)
		if _, ok, msg := v.stack.popVal(v.ctx, &operand); !ok {
			return v.fail(loc, "store_lane: %s", msg)
		}
		addr := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
			return v.fail(loc, "store_lane: %s", msg)
		}

	default:
		return v.fail(loc, "unsupported opcode 0x%x", uint32(op))
	}

	return v.checkStackLimit(loc)
}

var threeI32 = []ValueVariant{NumericValue(ValueTypeI32), NumericValue(ValueTypeI32), NumericValue(ValueTypeI32)}
var twoI32 = []ValueVariant{NumericValue(ValueTypeI32), NumericValue(ValueTypeI32)}
var twoV128 = []ValueVariant{NumericValue(ValueTypeV128), NumericValue(ValueTypeV128)}

// localType resolves a local index, searching any open `let` frames
// innermost-first before falling back to the function's own params/locals:
// a `let`'s bound locals are renumbered to the lowest indices, shifting the
// enclosing locals up by the size of every still-open `let` frame.
func (v *FuncValidator) localType(idx Index) (ValueVariant, error) {
	i := int(idx)
	for j := len(v.letLocals) - 1; j >= 0; j-- {
		frame := v.letLocals[j]
		if i < len(frame) {
			return frame[i], nil
		}
		i -= len(frame)
	}
	if i >= len(v.locals) {
		return ValueVariant{}, fmt.Errorf("unknown local %d", idx)
	}
	return v.locals[i], nil
}

// expandLocalGroups flattens a `let`'s run-length compressed locals into
// one ValueVariant per local, in declaration order.
func expandLocalGroups(groups []LocalGroup) []ValueVariant {
	var out []ValueVariant
	for _, g := range groups {
		for i := uint32(0); i < g.Count; i++ {
			out = append(out, g.ValType)
		}
	}
	return out
}

// fieldOperandType is the operand-stack type a struct/array field's value
// takes: packed fields (i8/i16) are always accessed as i32 on the stack.
func fieldOperandType(f FieldType) ValueVariant {
	if f.Storage.Kind == StorageTypePacked {
		return NumericValue(ValueTypeI32)
	}
	return f.Storage.Value
}

// typedFuncRefOperand pops a function-reference operand for call_ref/
// return_call_ref/func.bind and resolves its pointee function type. A nil
// *FunctionType with ok==true means the operand was polymorphic ("any",
// from unreachable code): per the function-references proposal these
// instructions then succeed with no further effect.
func (v *FuncValidator) typedFuncRefOperand(loc Location, name string) (*FunctionType, bool, error) {
	val, ok, msg := v.stack.popVal(v.ctx, nil)
	if !ok {
		return nil, false, v.fail(loc, "%s: %s", name, msg)
	}
	if val.IsAny {
		return nil, true, nil
	}
	if val.Value.Kind != ValueVariantReference || !val.Value.Reference.Heap.IsIndex {
		return nil, false, v.fail(loc, "%s: expected a typed function reference", name)
	}
	dt, ok := v.mc.TypeAt(val.Value.Reference.Heap.Index)
	if !ok || dt.Kind != DefinedTypeFunction {
		return nil, false, v.fail(loc, "%s: invalid function reference type", name)
	}
	return &dt.Function, true, nil
}

// simdLaneResultType is the scalar value type an extract_lane/replace_lane
// instruction carries, keyed by lane shape.
func simdLaneResultType(op Opcode) ValueType {
	switch op {
	case OpcodeI64x2ExtractLane, OpcodeI64x2ReplaceLane:
		return ValueTypeI64
	case OpcodeF32x4ExtractLane, OpcodeF32x4ReplaceLane:
		return ValueTypeF32
	case OpcodeF64x2ExtractLane, OpcodeF64x2ReplaceLane:
		return ValueTypeF64
	default:
		return ValueTypeI32
	}
}

// simdLaneCount is the number of lanes a lane-indexed SIMD instruction's
// immediate may legally address.
func simdLaneCount(op Opcode) uint32 {
	switch op {
	case OpcodeI8x16ExtractLaneS, OpcodeI8x16ExtractLaneU, OpcodeI8x16ReplaceLane, OpcodeV128Load8Lane, OpcodeV128Store8Lane:
		return 16
	case OpcodeI16x8ExtractLaneS, OpcodeI16x8ExtractLaneU, OpcodeI16x8ReplaceLane, OpcodeV128Load16Lane, OpcodeV128Store16Lane:
		return 8
	case OpcodeI32x4ExtractLane, OpcodeI32x4ReplaceLane, OpcodeF32x4ExtractLane, OpcodeF32x4ReplaceLane,
		OpcodeV128Load32Lane, OpcodeV128Store32Lane:
		return 4
	default:
		return 2
	}
}

// requireSharedMemory enforces the threads proposal's rule that atomic
// memory operations only apply to a shared memory.
func (v *FuncValidator) requireSharedMemory(loc Location, memIdx Index, name string) error {
	if err := v.mc.Features.Require(FeatureThreads); err != nil {
		return v.fail(loc, "%s: %s", name, err.Error())
	}
	mem, ok := v.mc.MemoryAt(memIdx)
	if !ok {
		return v.fail(loc, "%s: unknown memory %d", name, memIdx)
	}
	if !mem.Limits.Shared {
		return v.fail(loc, "%s: requires a shared memory", name)
	}
	return nil
}

// atomicMemOpStep validates one entry of the systematic atomic load/store/
// read-modify-write grid (memory.atomic.*): a shared-memory check, a
// natural-alignment check, and the operand shape implied by info.
func (v *FuncValidator) atomicMemOpStep(loc Location, instr Instruction, info AtomicMemInfo) error {
	if err := v.requireSharedMemory(loc, instr.Immediate.MemArg.MemoryIndex, info.Name); err != nil {
		return err
	}
	if (uint32(1) << instr.Immediate.MemArg.Align) > info.Width {
		return v.fail(loc, "%s: alignment exceeds the operation's natural alignment", info.Name)
	}
	val := NumericValue(info.Type)
	addr := NumericValue(ValueTypeI32)
	switch {
	case info.IsStore:
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "%s: %s", info.Name, msg)
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
			return v.fail(loc, "%s: %s", info.Name, msg)
		}
		return nil
	case info.RMW == "cmpxchg":
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok { // replacement
			return v.fail(loc, "%s: %s", info.Name, msg)
		}
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok { // expected
			return v.fail(loc, "%s: %s", info.Name, msg)
		}
	case info.RMW != "":
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok { // operand
			return v.fail(loc, "%s: %s", info.Name, msg)
		}
	}
	if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
		return v.fail(loc, "%s: %s", info.Name, msg)
	}
	v.stack.pushVal(NumericValue(info.Type))
	return nil
}

func (v *FuncValidator) requireReferenceTypes(loc Location) error {
	if err := v.mc.Features.Require(FeatureReferenceTypes); err != nil {
		return v.fail(loc, "%s", err.Error())
	}
	return nil
}

// memOp validates a load (result non-zero) or store (expected non-nil)
// memory instruction's memarg and operand types, including the rule that
// the claimed alignment may not exceed the access's natural width.
func (v *FuncValidator) memOp(loc Location, instr Instruction, storeOperand *ValueType, loadResult ValueType) error {
	if _, ok := v.mc.MemoryAt(instr.Immediate.MemArg.MemoryIndex); !ok {
		return v.fail(loc, "unknown memory %d", instr.Immediate.MemArg.MemoryIndex)
	}
	width := memAccessWidth(instr.Opcode)
	if instr.Immediate.MemArg.Align >= 32 || (uint32(1)<<instr.Immediate.MemArg.Align) > width {
		return v.fail(loc, "alignment must not be larger than natural alignment (%d)", width)
	}
	if storeOperand != nil {
		val := NumericValue(*storeOperand)
		if _, ok, msg := v.stack.popVal(v.ctx, &val); !ok {
			return v.fail(loc, "%s", msg)
		}
		addr := NumericValue(ValueTypeI32)
		if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
			return v.fail(loc, "%s", msg)
		}
		return nil
	}
	addr := NumericValue(ValueTypeI32)
	if _, ok, msg := v.stack.popVal(v.ctx, &addr); !ok {
		return v.fail(loc, "%s", msg)
	}
	v.stack.pushVal(NumericValue(loadResult))
	return nil
}

// memAccessWidth is the natural access width, in bytes, of a plain or
// SIMD load/store opcode: the bound the memarg's claimed alignment is
// checked against.
func memAccessWidth(op Opcode) uint32 {
	switch op {
	case OpcodeI32Load8S, OpcodeI32Load8U, OpcodeI64Load8S, OpcodeI64Load8U,
		OpcodeI32Store8, OpcodeI64Store8:
		return 1
	case OpcodeI32Load16S, OpcodeI32Load16U, OpcodeI64Load16S, OpcodeI64Load16U,
		OpcodeI32Store16, OpcodeI64Store16:
		return 2
	case OpcodeI32Load, OpcodeF32Load, OpcodeI64Load32S, OpcodeI64Load32U,
		OpcodeI32Store, OpcodeF32Store, OpcodeI64Store32:
		return 4
	case OpcodeI64Load, OpcodeF64Load, OpcodeI64Store, OpcodeF64Store:
		return 8
	}
	switch op {
	case OpcodeV128Load, OpcodeV128Store:
		return 16
	case OpcodeV128Load8x8S, OpcodeV128Load8x8U, OpcodeV128Load16x4S, OpcodeV128Load16x4U,
		OpcodeV128Load32x2S, OpcodeV128Load32x2U, OpcodeV128Load64Splat:
		return 8
	case OpcodeV128Load32Splat:
		return 4
	case OpcodeV128Load16Splat:
		return 2
	case OpcodeV128Load8Splat:
		return 1
	}
	return 16
}

// blockFunctionType resolves a block's type annotation to a (params,
// results) pair, expanding a type-index annotation via the module's type
// section and requiring multi-value for non-empty params or >1 result.
func (v *FuncValidator) blockFunctionType(bt BlockType) (FunctionType, error) {
	switch bt.Kind {
	case BlockTypeVoid:
		return FunctionType{}, nil
	case BlockTypeValue:
		return FunctionType{Results: []ValueVariant{bt.Value}}, nil
	case BlockTypeIndex:
		dt, ok := v.mc.TypeAt(bt.TypeIdx)
		if !ok || dt.Kind != DefinedTypeFunction {
			return FunctionType{}, fmt.Errorf("unknown type %d", bt.TypeIdx)
		}
		if (len(dt.Function.Params) > 0 || len(dt.Function.Results) > 1) && !v.mc.Features.Get(FeatureMultiValue) {
			return FunctionType{}, fmt.Errorf("multi-value block type requires the multi-value feature")
		}
		return dt.Function, nil
	}
	return FunctionType{}, fmt.Errorf("invalid block type")
}
