package visit

import "github.com/wasmforge/wasmcore/wasm"

// Validator is the bundled visitor: it drives a module's bytes
// through Drive exactly once, building up a wasm.ModuleContext as each
// section streams past and validating function bodies as the code
// section's entries arrive, without ever materializing a full wasm.Module.
type Validator struct {
	BaseVisitor

	mc   *wasm.ModuleContext
	sink *wasm.ErrorSink

	currentFunc *wasm.FuncValidator

	numImportedFuncs int
	definedFuncCount int
	codeCount        int

	// exports is retained for EndModule: event exports cannot be
	// bounds-checked when the export section streams past, because the
	// event section's id (13) places it after everything else.
	exports []wasm.Export
}

// NewValidator builds a Validator that checks a module against features,
// recording every problem found in sink rather than stopping at the
// first one where the instruction-level algorithm allows it.
func NewValidator(features wasm.Features, sink *wasm.ErrorSink) *Validator {
	mc := wasm.NewModuleContext(features)
	return &Validator{mc: mc, sink: sink}
}

// Context returns the module context accumulated so far; meaningful once
// Drive has completed (or after EndModule is reached without failure).
func (vd *Validator) Context() *wasm.ModuleContext { return vd.mc }

func (vd *Validator) Type(idx wasm.Index, dt wasm.DefinedType) Result {
	switch dt.Kind {
	case wasm.DefinedTypeFunction:
		if len(dt.Function.Results) > 1 && !vd.mc.Features.Get(wasm.FeatureMultiValue) {
			vd.sink.Record(dt.Location.Begin, "type[%d]: invalid result arity %d", idx, len(dt.Function.Results))
		}
	case wasm.DefinedTypeStruct, wasm.DefinedTypeArray:
		if err := vd.mc.Features.Require(wasm.FeatureGC); err != nil {
			vd.sink.Record(dt.Location.Begin, "type[%d]: %s", idx, err.Error())
		}
	}
	vd.mc.Types = append(vd.mc.Types, dt)
	return ResultOk
}

func (vd *Validator) Import(idx wasm.Index, im wasm.Import) Result {
	off := im.Location.Begin
	switch im.Kind {
	case wasm.ExternKindFunc:
		if !vd.isFunctionTypeIndex(im.DescFunc) {
			vd.sink.Record(off, "import[%d] func: unknown type %d", idx, im.DescFunc)
		}
		vd.mc.Functions = append(vd.mc.Functions, im.DescFunc)
		vd.mc.NumImportedFunctions++
		vd.numImportedFuncs++
	case wasm.ExternKindTable:
		vd.addTable(off, im.DescTable)
	case wasm.ExternKindMemory:
		vd.addMemory(off, im.DescMemory)
	case wasm.ExternKindGlobal:
		if im.DescGlobal.Mutable {
			if err := vd.mc.Features.Require(wasm.FeatureMutableGlobal); err != nil {
				vd.sink.Record(off, "import[%d] global: mutable: %s", idx, err.Error())
			}
		}
		vd.mc.Globals = append(vd.mc.Globals, im.DescGlobal)
		vd.mc.NumImportedGlobals++
	case wasm.ExternKindEvent:
		vd.addEvent(off, im.DescEvent)
	}
	return ResultOk
}

func (vd *Validator) Function(idx wasm.Index, typeIdx wasm.Index) Result {
	if !vd.isFunctionTypeIndex(typeIdx) {
		vd.sink.Record(0, "function[%d]: unknown type %d", idx, typeIdx)
	}
	vd.mc.Functions = append(vd.mc.Functions, typeIdx)
	vd.definedFuncCount++
	return ResultOk
}

func (vd *Validator) Table(_ wasm.Index, tt wasm.TableType) Result {
	vd.addTable(0, tt)
	return ResultOk
}

func (vd *Validator) Memory(_ wasm.Index, mt wasm.MemoryType) Result {
	vd.addMemory(0, mt)
	return ResultOk
}

func (vd *Validator) Global(_ wasm.Index, g wasm.Global) Result {
	vd.validateConstExpr(g.Init, g.Type.ValType)
	vd.mc.Globals = append(vd.mc.Globals, g.Type)
	if g.Init.Instr.Opcode == wasm.OpcodeRefFunc {
		vd.mc.DeclaredFunctions[g.Init.Instr.Immediate.Index] = true
	}
	return ResultOk
}

func (vd *Validator) Export(idx wasm.Index, e wasm.Export) Result {
	off := e.Location.Begin
	if vd.mc.ExportNames[e.Name] {
		vd.sink.Record(off, "export[%d] duplicates name %q", idx, e.Name)
		return ResultOk
	}
	vd.mc.ExportNames[e.Name] = true
	vd.exports = append(vd.exports, e)
	switch e.Kind {
	case wasm.ExternKindFunc:
		if int(e.Index) >= len(vd.mc.Functions) {
			vd.sink.Record(off, "export %q: unknown function %d", e.Name, e.Index)
		}
		vd.mc.DeclaredFunctions[e.Index] = true
	case wasm.ExternKindTable:
		if _, ok := vd.mc.TableAt(e.Index); !ok {
			vd.sink.Record(off, "export %q: unknown table %d", e.Name, e.Index)
		}
	case wasm.ExternKindMemory:
		if _, ok := vd.mc.MemoryAt(e.Index); !ok {
			vd.sink.Record(off, "export %q: unknown memory %d", e.Name, e.Index)
		}
	case wasm.ExternKindGlobal:
		g, ok := vd.mc.GlobalAt(e.Index)
		if !ok {
			vd.sink.Record(off, "export %q: unknown global %d", e.Name, e.Index)
			break
		}
		if g.Mutable {
			if err := vd.mc.Features.Require(wasm.FeatureMutableGlobal); err != nil {
				vd.sink.Record(off, "export %q: mutable global: %s", e.Name, err.Error())
			}
		}
	}
	return ResultOk
}

func (vd *Validator) Element(idx wasm.Index, e wasm.ElementSegment) Result {
	off := e.Location.Begin
	if e.Mode != wasm.ElementModeActive {
		if err := vd.mc.Features.Require(wasm.FeatureBulkMemoryOperations); err != nil {
			vd.sink.Record(off, "element[%d]: passive or declarative segment: %s", idx, err.Error())
		}
	}
	if e.Mode == wasm.ElementModeActive {
		table, ok := vd.mc.TableAt(e.Table)
		if !ok {
			vd.sink.Record(off, "element[%d]: unknown table %d", idx, e.Table)
		} else if !vd.mc.Ctx().IsMatchReference(table.RefType, e.RefType) {
			vd.sink.Record(off, "element[%d]: element type does not match table type", idx)
		}
		vd.validateConstExpr(e.Offset, wasm.NumericValue(wasm.ValueTypeI32))
	}
	for _, fi := range e.Indices {
		if int(fi) >= len(vd.mc.Functions) {
			vd.sink.Record(off, "element[%d]: unknown function %d", idx, fi)
			continue
		}
		vd.mc.DeclaredFunctions[fi] = true
	}
	for _, expr := range e.Exprs {
		vd.validateConstExpr(expr, wasm.ReferenceValue(e.RefType))
		if expr.Instr.Opcode == wasm.OpcodeRefFunc {
			vd.mc.DeclaredFunctions[expr.Instr.Immediate.Index] = true
		}
	}
	vd.mc.ElementSegmentTypes = append(vd.mc.ElementSegmentTypes, e.RefType)
	return ResultOk
}

func (vd *Validator) DataCountSection(count uint32) Result {
	vd.mc.DataCount = &count
	return ResultOk
}

func (vd *Validator) Data(idx wasm.Index, d wasm.DataSegment) Result {
	off := d.Location.Begin
	if d.Mode == wasm.DataModePassive {
		if err := vd.mc.Features.Require(wasm.FeatureBulkMemoryOperations); err != nil {
			vd.sink.Record(off, "data[%d]: passive segment: %s", idx, err.Error())
		}
	} else {
		if _, ok := vd.mc.MemoryAt(d.Memory); !ok {
			vd.sink.Record(off, "data[%d]: unknown memory %d", idx, d.Memory)
		}
		vd.validateConstExpr(d.Offset, wasm.NumericValue(wasm.ValueTypeI32))
	}
	vd.mc.DataSegmentCount++
	return ResultOk
}

func (vd *Validator) Event(_ wasm.Index, e wasm.EventType) Result {
	vd.addEvent(0, e)
	return ResultOk
}

// Code begins validating one function body: its declared locals are
// expanded, a fresh wasm.FuncValidator is built against the function's
// declared signature, and subsequent Instruction calls for this index
// feed it.
func (vd *Validator) Code(idx wasm.Index, code wasm.Code) Result {
	vd.codeCount++
	funcIdx := wasm.Index(vd.numImportedFuncs) + idx
	ft, ok := vd.mc.FunctionType(funcIdx)
	if !ok {
		vd.sink.Record(code.Location.Begin, "code: function %d has no matching type", funcIdx)
		return ResultOk
	}
	var locals []wasm.ValueVariant
	for _, g := range code.Locals {
		for i := uint32(0); i < g.Count; i++ {
			locals = append(locals, g.ValType)
		}
	}
	vd.currentFunc = wasm.NewFuncValidator(vd.mc, ft, locals, vd.sink)
	return ResultOk
}

func (vd *Validator) Instruction(_ wasm.Index, instr wasm.Instruction) Result {
	if vd.currentFunc == nil {
		return ResultOk
	}
	// The error, if any, is already recorded on sink; continue to the
	// next instruction so later problems in the same function surface
	// too.
	_ = vd.currentFunc.Step(instr)
	return ResultOk
}

func (vd *Validator) EndFunction(wasm.Index) Result {
	if vd.currentFunc != nil {
		_ = vd.currentFunc.Finish(wasm.Location{})
		vd.currentFunc = nil
	}
	return ResultOk
}

func (vd *Validator) isFunctionTypeIndex(idx wasm.Index) bool {
	dt, ok := vd.mc.TypeAt(idx)
	return ok && dt.Kind == wasm.DefinedTypeFunction
}

func (vd *Validator) addTable(off int, tt wasm.TableType) {
	if tt.Limits.Shared {
		vd.sink.Record(off, "tables cannot be shared")
	}
	if tt.Limits.Max != nil && tt.Limits.Min > *tt.Limits.Max {
		vd.sink.Record(off, "table size minimum %d is greater than maximum %d", tt.Limits.Min, *tt.Limits.Max)
	}
	vd.mc.Tables = append(vd.mc.Tables, tt)
	if len(vd.mc.Tables) > 1 {
		if err := vd.mc.Features.Require(wasm.FeatureReferenceTypes); err != nil {
			vd.sink.Record(off, "multiple tables: %s", err.Error())
		}
	}
}

func (vd *Validator) addMemory(off int, mt wasm.MemoryType) {
	if mt.Limits.Shared {
		if err := vd.mc.Features.Require(wasm.FeatureThreads); err != nil {
			vd.sink.Record(off, "shared memory: %s", err.Error())
		}
		if mt.Limits.Max == nil {
			vd.sink.Record(off, "shared memory must have a maximum")
		}
	}
	if mt.Limits.Max != nil && mt.Limits.Min > *mt.Limits.Max {
		vd.sink.Record(off, "memory size minimum %d is greater than maximum %d", mt.Limits.Min, *mt.Limits.Max)
	}
	vd.mc.Memories = append(vd.mc.Memories, mt)
	if len(vd.mc.Memories) > 1 {
		vd.sink.Record(off, "at most one memory allowed in module")
	}
}

func (vd *Validator) addEvent(off int, e wasm.EventType) {
	if err := vd.mc.Features.Require(wasm.FeatureExceptionHandling); err != nil {
		vd.sink.Record(off, "event: %s", err.Error())
	}
	if e.Attribute != wasm.EventAttributeException {
		vd.sink.Record(off, "event: unknown attribute %d", e.Attribute)
	}
	if !vd.isFunctionTypeIndex(e.TypeIndex) {
		vd.sink.Record(off, "event: unknown type %d", e.TypeIndex)
	}
	vd.mc.Events = append(vd.mc.Events, e)
}

// validateConstExpr checks one decoded constant expression (the legal
// opcode set was already enforced at decode time) against the type the
// surrounding construct requires of it: a global's declared type, an
// active segment's i32 offset, or an element expression's reference type.
// global.get is further restricted to imported, immutable globals.
func (vd *Validator) validateConstExpr(expr wasm.ConstantExpr, expected wasm.ValueVariant) {
	off := expr.Location.Begin
	var actual wasm.ValueVariant
	switch expr.Instr.Opcode {
	case wasm.OpcodeI32Const:
		actual = wasm.NumericValue(wasm.ValueTypeI32)
	case wasm.OpcodeI64Const:
		actual = wasm.NumericValue(wasm.ValueTypeI64)
	case wasm.OpcodeF32Const:
		actual = wasm.NumericValue(wasm.ValueTypeF32)
	case wasm.OpcodeF64Const:
		actual = wasm.NumericValue(wasm.ValueTypeF64)
	case wasm.OpcodeRefNull:
		if err := vd.mc.Features.Require(wasm.FeatureReferenceTypes); err != nil {
			vd.sink.Record(off, "constant expression: ref.null: %s", err.Error())
			return
		}
		actual = wasm.ReferenceValue(wasm.ReferenceType{Heap: expr.Instr.Immediate.Heap, Nullable: true})
	case wasm.OpcodeRefFunc:
		if err := vd.mc.Features.Require(wasm.FeatureReferenceTypes); err != nil {
			vd.sink.Record(off, "constant expression: ref.func: %s", err.Error())
			return
		}
		if int(expr.Instr.Immediate.Index) >= len(vd.mc.Functions) {
			vd.sink.Record(off, "constant expression: ref.func: unknown function %d", expr.Instr.Immediate.Index)
			return
		}
		actual = wasm.ReferenceValue(wasm.FuncRefType())
	case wasm.OpcodeGlobalGet:
		idx := expr.Instr.Immediate.Index
		if int(idx) >= vd.mc.NumImportedGlobals {
			vd.sink.Record(off, "constant expression: global.get may only reference an imported global, got %d", idx)
			return
		}
		g, _ := vd.mc.GlobalAt(idx)
		if g.Mutable {
			vd.sink.Record(off, "constant expression: global.get may not reference a mutable global")
			return
		}
		actual = g.ValType
	default:
		if expr.Instr.Opcode == wasm.OpcodeV128Const {
			if err := vd.mc.Features.Require(wasm.FeatureSIMD); err != nil {
				vd.sink.Record(off, "constant expression: v128.const: %s", err.Error())
				return
			}
			actual = wasm.NumericValue(wasm.ValueTypeV128)
			break
		}
		vd.sink.Record(off, "Illegal instruction in constant expression: 0x%x", uint32(expr.Instr.Opcode))
		return
	}
	if !vd.mc.Ctx().IsMatchValue(expected, actual) {
		vd.sink.Record(off, "constant expression: type mismatch: expected %s, got %s", expected, actual)
	}
}
