package wasm

// ModuleContext accumulates the per-module facts validation needs as it
// walks sections in order: defined types, the function/table/
// memory/global/event index spaces (imported entries first, then
// module-defined ones, per the binary format's index-space rule), which
// functions have been declared reference-able before their bodies are
// validated, and the export namespace.
type ModuleContext struct {
	Features Features

	Types     []DefinedType
	Functions []Index // function index -> type index, imports first
	Tables    []TableType
	Memories  []MemoryType
	Globals   []GlobalType
	Events    []EventType

	NumImportedFunctions int
	NumImportedGlobals   int

	DataCount *uint32

	// DataSegmentCount is the number of entries the data section actually
	// has; used to range-check memory.init/data.drop segment indices when
	// no data count section was present to pre-declare it.
	DataSegmentCount int

	// ElementSegmentTypes holds each element segment's reference type, in
	// order, for table.init/elem.drop index range checks and table.init's
	// element-to-table type compatibility check.
	ElementSegmentTypes []ReferenceType

	// DeclaredFunctions holds every function index that may legally be
	// taken as a first-class reference (via ref.func, or appearing in an
	// element segment or export) per the "declared functions" rule:
	// ref.func is only valid for a function index that appears here.
	DeclaredFunctions map[Index]bool

	ExportNames map[string]bool
}

// NewModuleContext returns an empty context for the given feature set.
func NewModuleContext(features Features) *ModuleContext {
	return &ModuleContext{
		Features:          features,
		DeclaredFunctions: map[Index]bool{},
		ExportNames:       map[string]bool{},
	}
}

// Ctx builds a subtyping Ctx bound to this context's defined types.
func (m *ModuleContext) Ctx() *Ctx { return NewCtx(m.Features, m.Types) }

func (m *ModuleContext) FunctionType(idx Index) (FunctionType, bool) {
	if int(idx) >= len(m.Functions) {
		return FunctionType{}, false
	}
	typeIdx := m.Functions[idx]
	if int(typeIdx) >= len(m.Types) {
		return FunctionType{}, false
	}
	dt := m.Types[typeIdx]
	if dt.Kind != DefinedTypeFunction {
		return FunctionType{}, false
	}
	return dt.Function, true
}

func (m *ModuleContext) TypeAt(idx Index) (DefinedType, bool) {
	if int(idx) >= len(m.Types) {
		return DefinedType{}, false
	}
	return m.Types[idx], true
}

func (m *ModuleContext) TableAt(idx Index) (TableType, bool) {
	if int(idx) >= len(m.Tables) {
		return TableType{}, false
	}
	return m.Tables[idx], true
}

func (m *ModuleContext) MemoryAt(idx Index) (MemoryType, bool) {
	if int(idx) >= len(m.Memories) {
		return MemoryType{}, false
	}
	return m.Memories[idx], true
}

func (m *ModuleContext) GlobalAt(idx Index) (GlobalType, bool) {
	if int(idx) >= len(m.Globals) {
		return GlobalType{}, false
	}
	return m.Globals[idx], true
}

func (m *ModuleContext) EventAt(idx Index) (EventType, bool) {
	if int(idx) >= len(m.Events) {
		return EventType{}, false
	}
	return m.Events[idx], true
}

// FunctionCount is the size of the function index space (imports + defined).
func (m *ModuleContext) FunctionCount() Index { return Index(len(m.Functions)) }

// DataSegmentInBounds reports whether idx names a data segment. During a
// streaming pass the code section arrives before the data section, so the
// bound comes from the data count section when one was present; the
// actual segment count is the fallback for eagerly-built contexts.
func (m *ModuleContext) DataSegmentInBounds(idx Index) bool {
	if m.DataCount != nil {
		return idx < *m.DataCount
	}
	return int(idx) < m.DataSegmentCount
}

// HasMemory64 reports whether mem's limits use the 64-bit address type.
// Placeholder hook for the memory64 proposal; always false until that
// proposal's feature flag and limits encoding are added.
func (m *ModuleContext) HasMemory64(MemoryType) bool { return false }
