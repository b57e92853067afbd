// Package visit implements the lazy, streaming section/instruction
// traversal described by the original WebAssembly tooling's visitor
// design: a Driver walks a module's bytes section by section, calling
// into a Visitor, and lets the visitor choose to skip material it does
// not care about without the driver materializing it first.
package visit

import "github.com/wasmforge/wasmcore/wasm"

// Result is returned by every Visitor hook to steer the Driver.
type Result byte

const (
	// ResultOk continues the traversal normally.
	ResultOk Result = iota
	// ResultSkip tells the Driver this entry's content need not be
	// decoded further (e.g. a function body whose bytes the visitor has
	// no use for): the Driver still advances past it correctly, it just
	// avoids the decode work.
	ResultSkip
	// ResultFail aborts the traversal; Drive returns the last error recorded
	// on its own decoding ErrorSink, or a generic "visitor aborted
	// traversal" error when none was recorded there.
	ResultFail
)

// Visitor receives one callback per section (and, within the function
// code section, one callback per function body and optionally per
// instruction). Every method has a meaningful default via BaseVisitor, so
// implementations only override what they care about.
type Visitor interface {
	BeginModule() Result
	EndModule() Result

	// Section is called once per section header, before the per-kind
	// begin hook, with the section's id and payload length; returning
	// ResultSkip skips the whole payload without decoding any of it.
	// EndSection is its counterpart, called after the section's entries
	// (or after the skip).
	Section(id wasm.SectionID, size uint32) Result
	EndSection(id wasm.SectionID) Result

	TypeSection(count uint32) Result
	Type(idx wasm.Index, dt wasm.DefinedType) Result

	ImportSection(count uint32) Result
	Import(idx wasm.Index, im wasm.Import) Result

	FunctionSection(count uint32) Result
	Function(idx wasm.Index, typeIdx wasm.Index) Result

	TableSection(count uint32) Result
	Table(idx wasm.Index, tt wasm.TableType) Result

	MemorySection(count uint32) Result
	Memory(idx wasm.Index, mt wasm.MemoryType) Result

	GlobalSection(count uint32) Result
	Global(idx wasm.Index, g wasm.Global) Result

	ExportSection(count uint32) Result
	Export(idx wasm.Index, e wasm.Export) Result

	StartSection(funcIdx wasm.Index) Result

	ElementSection(count uint32) Result
	Element(idx wasm.Index, e wasm.ElementSegment) Result

	DataCountSection(count uint32) Result

	// CodeSection is called once; Code is called once per function body,
	// BEFORE its instructions are decoded, so the visitor can return
	// ResultSkip to bypass instruction-by-instruction decoding entirely.
	CodeSection(count uint32) Result
	Code(idx wasm.Index, code wasm.Code) Result
	Instruction(funcIdx wasm.Index, instr wasm.Instruction) Result
	EndFunction(funcIdx wasm.Index) Result

	DataSection(count uint32) Result
	Data(idx wasm.Index, d wasm.DataSegment) Result

	EventSection(count uint32) Result
	Event(idx wasm.Index, e wasm.EventType) Result

	CustomSection(cs wasm.CustomSection) Result
}

// BaseVisitor implements Visitor with every hook returning ResultOk, so
// concrete visitors can embed it and override only the hooks they need.
type BaseVisitor struct{}

func (BaseVisitor) BeginModule() Result                           { return ResultOk }
func (BaseVisitor) EndModule() Result                             { return ResultOk }
func (BaseVisitor) Section(wasm.SectionID, uint32) Result         { return ResultOk }
func (BaseVisitor) EndSection(wasm.SectionID) Result              { return ResultOk }
func (BaseVisitor) TypeSection(uint32) Result                     { return ResultOk }
func (BaseVisitor) Type(wasm.Index, wasm.DefinedType) Result      { return ResultOk }
func (BaseVisitor) ImportSection(uint32) Result                   { return ResultOk }
func (BaseVisitor) Import(wasm.Index, wasm.Import) Result         { return ResultOk }
func (BaseVisitor) FunctionSection(uint32) Result                 { return ResultOk }
func (BaseVisitor) Function(wasm.Index, wasm.Index) Result        { return ResultOk }
func (BaseVisitor) TableSection(uint32) Result                    { return ResultOk }
func (BaseVisitor) Table(wasm.Index, wasm.TableType) Result       { return ResultOk }
func (BaseVisitor) MemorySection(uint32) Result                   { return ResultOk }
func (BaseVisitor) Memory(wasm.Index, wasm.MemoryType) Result      { return ResultOk }
func (BaseVisitor) GlobalSection(uint32) Result                   { return ResultOk }
func (BaseVisitor) Global(wasm.Index, wasm.Global) Result         { return ResultOk }
func (BaseVisitor) ExportSection(uint32) Result                   { return ResultOk }
func (BaseVisitor) Export(wasm.Index, wasm.Export) Result         { return ResultOk }
func (BaseVisitor) StartSection(wasm.Index) Result                { return ResultOk }
func (BaseVisitor) ElementSection(uint32) Result                  { return ResultOk }
func (BaseVisitor) Element(wasm.Index, wasm.ElementSegment) Result { return ResultOk }
func (BaseVisitor) DataCountSection(uint32) Result                { return ResultOk }
func (BaseVisitor) CodeSection(uint32) Result                     { return ResultOk }
func (BaseVisitor) Code(wasm.Index, wasm.Code) Result             { return ResultOk }
func (BaseVisitor) Instruction(wasm.Index, wasm.Instruction) Result { return ResultOk }
func (BaseVisitor) EndFunction(wasm.Index) Result                 { return ResultOk }
func (BaseVisitor) DataSection(uint32) Result                     { return ResultOk }
func (BaseVisitor) Data(wasm.Index, wasm.DataSegment) Result      { return ResultOk }
func (BaseVisitor) EventSection(uint32) Result                    { return ResultOk }
func (BaseVisitor) Event(wasm.Index, wasm.EventType) Result       { return ResultOk }
func (BaseVisitor) CustomSection(wasm.CustomSection) Result       { return ResultOk }
