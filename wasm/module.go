package wasm

// SectionID identifies a known section; unknown ids are decode errors.
type SectionID byte

const (
	SectionIDCustom    SectionID = 0
	SectionIDType      SectionID = 1
	SectionIDImport    SectionID = 2
	SectionIDFunction  SectionID = 3
	SectionIDTable     SectionID = 4
	SectionIDMemory    SectionID = 5
	SectionIDGlobal    SectionID = 6
	SectionIDExport    SectionID = 7
	SectionIDStart     SectionID = 8
	SectionIDElement   SectionID = 9
	SectionIDCode      SectionID = 10
	SectionIDData      SectionID = 11
	SectionIDDataCount SectionID = 12
	SectionIDEvent     SectionID = 13
)

func (id SectionID) String() string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	case SectionIDEvent:
		return "event"
	}
	return "unknown"
}

// ExternKind classifies an import or export.
type ExternKind byte

const (
	ExternKindFunc   ExternKind = 0
	ExternKindTable  ExternKind = 1
	ExternKindMemory ExternKind = 2
	ExternKindGlobal ExternKind = 3
	ExternKindEvent  ExternKind = 4
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	case ExternKindEvent:
		return "event"
	}
	return "unknown"
}

// Limits is (min, max?, shared?).
type Limits struct {
	Min    uint32
	Max    *uint32
	Shared bool
}

// TableType is (limits, reference type).
type TableType struct {
	Limits    Limits
	RefType   ReferenceType
}

// MemoryType is (limits, shared?); sharedness is carried on Limits.Shared.
type MemoryType struct {
	Limits Limits
}

// GlobalType is (value type, mutability).
type GlobalType struct {
	ValType ValueVariant
	Mutable bool
}

// EventAttribute identifies the kind of an event (exception) type.
type EventAttribute byte

const EventAttributeException EventAttribute = 0

// EventType is (attribute, type index) naming the event's payload function
// signature.
type EventType struct {
	Attribute EventAttribute
	TypeIndex Index
}

// Import is (module, name, descriptor).
type Import struct {
	Module, Name string
	Kind         ExternKind
	DescFunc     Index
	DescTable    TableType
	DescMemory   MemoryType
	DescGlobal   GlobalType
	DescEvent    EventType
	Location     Location
}

// Export is (name, kind, index).
type Export struct {
	Name     string
	Kind     ExternKind
	Index    Index
	Location Location
}

// ConstantExpr is a single const-producing instruction followed by `end`,
// used for global initializers and active element/data segment offsets.
type ConstantExpr struct {
	Instr    Instruction
	Location Location
}

// Global is a global's type plus initializer.
type Global struct {
	Type     GlobalType
	Init     ConstantExpr
	Location Location
}

// ElementMode distinguishes active, passive, and declarative segments.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment is one entry of the element section.
type ElementSegment struct {
	Mode     ElementMode
	Table    Index // meaningful when Mode == Active
	Offset   ConstantExpr
	RefType  ReferenceType
	// Either Indices (func-index payload) or Exprs (element-expr payload)
	// is populated, per the flags byte's encoding-kind bit.
	Indices  []Index
	Exprs    []ConstantExpr
	Location Location
}

// DataMode distinguishes active and passive data segments.
type DataMode byte

const (
	DataModeActive DataMode = iota
	DataModePassive
)

// DataSegment is one entry of the data section.
type DataSegment struct {
	Mode     DataMode
	Memory   Index
	Offset   ConstantExpr
	Init     []byte
	Location Location
}

// LocalGroup is a run-length compressed group of locals: `count` locals all
// of `valType`.
type LocalGroup struct {
	Count   uint32
	ValType ValueVariant
}

// Code is a function body: compressed locals plus an expression (decoded
// lazily; see wasm/binary).
type Code struct {
	Locals     []LocalGroup
	Body       []byte // raw instruction-stream bytes, decoded lazily
	Location   Location
	BodyOffset int // absolute offset of Body[0] in the source, for diagnostics
}

// NameMap is an index -> name association, used by the name custom section.
type NameMap map[Index]string

// NameSection is the decomposed "name" custom section.
type NameSection struct {
	ModuleName string
	HasModule  bool
	FuncNames  NameMap
	LocalNames map[Index]NameMap
}

// Module is the fully decoded module: every section materialized into
// slices/maps (the binary package additionally exposes a lazy, streaming
// view for consumers who don't want to materialize everything up front;
// see wasm/binary.SectionIterator, wasm/binary.InstructionIterator and
// wasm/visit).
type Module struct {
	TypeSection     []DefinedType
	ImportSection   []Import
	FunctionSection []Index // function index -> type index
	TableSection    []TableType
	MemorySection   []MemoryType
	GlobalSection   []Global
	EventSection    []EventType
	ExportSection   []Export
	StartSection    *Index
	ElementSection  []ElementSegment
	DataCountSection *uint32
	CodeSection     []Code
	DataSection     []DataSegment
	NameSection     *NameSection

	// CustomSections preserves every custom section encountered (including
	// "name", before/after its NameSection decomposition) in encounter
	// order, with its raw payload.
	CustomSections []CustomSection
}

// CustomSection is a `KnownSection`-adjacent opaque section: a name plus
// its raw payload bytes.
type CustomSection struct {
	Name     string
	Data     []byte
	Location Location
}

// ImportFuncCount returns the number of function imports.
func (m *Module) ImportFuncCount() (n uint32) { return m.importCount(ExternKindFunc) }

// ImportTableCount returns the number of table imports.
func (m *Module) ImportTableCount() (n uint32) { return m.importCount(ExternKindTable) }

// ImportMemoryCount returns the number of memory imports.
func (m *Module) ImportMemoryCount() (n uint32) { return m.importCount(ExternKindMemory) }

// ImportGlobalCount returns the number of global imports.
func (m *Module) ImportGlobalCount() (n uint32) { return m.importCount(ExternKindGlobal) }

// ImportEventCount returns the number of event imports.
func (m *Module) ImportEventCount() (n uint32) { return m.importCount(ExternKindEvent) }

func (m *Module) importCount(k ExternKind) (n uint32) {
	for _, i := range m.ImportSection {
		if i.Kind == k {
			n++
		}
	}
	return n
}

// FunctionCount is the number of defined (non-imported) functions.
func (m *Module) FunctionCount() uint32 { return uint32(len(m.FunctionSection)) }

// TableCount is the total number of tables, imported plus defined.
func (m *Module) TableCount() uint32 {
	return m.ImportTableCount() + uint32(len(m.TableSection))
}

// MemoryCount is the total number of memories, imported plus defined.
func (m *Module) MemoryCount() uint32 {
	return m.ImportMemoryCount() + uint32(len(m.MemorySection))
}

// GlobalCount is the total number of globals, imported plus defined.
func (m *Module) GlobalCount() uint32 {
	return m.ImportGlobalCount() + uint32(len(m.GlobalSection))
}

// EventCount is the total number of events, imported plus defined.
func (m *Module) EventCount() uint32 {
	return m.ImportEventCount() + uint32(len(m.EventSection))
}
