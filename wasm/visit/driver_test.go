package visit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmforge/wasmcore/wasm"
)

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// moduleWithOneFunction builds a module with one (func (result i32)) whose
// body is `i32.const 0; end`.
func moduleWithOneFunction() []byte {
	data := append([]byte{}, header()...)
	data = append(data, 1, 5, 1, 0x60, 0, 1, 0x7f) // type section
	data = append(data, 3, 2, 1, 0)                // function section
	data = append(data, 10, 6, 1, 4, 0, 0x41, 0, 0x0b) // code section
	return data
}

type countingVisitor struct {
	BaseVisitor
	types, funcs, instrs int
}

func (v *countingVisitor) Type(wasm.Index, wasm.DefinedType) Result {
	v.types++
	return ResultOk
}

func (v *countingVisitor) Function(wasm.Index, wasm.Index) Result {
	v.funcs++
	return ResultOk
}

func (v *countingVisitor) Instruction(wasm.Index, wasm.Instruction) Result {
	v.instrs++
	return ResultOk
}

func TestDrive_VisitsEveryEntry(t *testing.T) {
	v := &countingVisitor{}
	err := Drive(moduleWithOneFunction(), 0, v)
	require.NoError(t, err)
	require.Equal(t, 1, v.types)
	require.Equal(t, 1, v.funcs)
	require.Equal(t, 2, v.instrs) // i32.const, end
}

type skippingVisitor struct {
	BaseVisitor
	instrs int
}

func (v *skippingVisitor) CodeSection(uint32) Result { return ResultSkip }

func (v *skippingVisitor) Instruction(wasm.Index, wasm.Instruction) Result {
	v.instrs++
	return ResultOk
}

func TestDrive_SkipSectionBypassesEntryDecoding(t *testing.T) {
	v := &skippingVisitor{}
	err := Drive(moduleWithOneFunction(), 0, v)
	require.NoError(t, err)
	require.Equal(t, 0, v.instrs)
}

func TestDrive_InvalidMagic(t *testing.T) {
	data := []byte{1, 2, 3, 4, 0x01, 0x00, 0x00, 0x00}
	err := Drive(data, 0, &BaseVisitor{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDrive_FailResultAbortsTraversal(t *testing.T) {
	v := &failingVisitor{}
	err := Drive(moduleWithOneFunction(), 0, v)
	require.Error(t, err)
}

type failingVisitor struct{ BaseVisitor }

func (failingVisitor) Type(wasm.Index, wasm.DefinedType) Result { return ResultFail }

type sectionSkippingVisitor struct {
	BaseVisitor
	sections []wasm.SectionID
	types    int
}

func (v *sectionSkippingVisitor) Section(id wasm.SectionID, _ uint32) Result {
	v.sections = append(v.sections, id)
	if id == wasm.SectionIDType {
		return ResultSkip
	}
	return ResultOk
}

func (v *sectionSkippingVisitor) Type(wasm.Index, wasm.DefinedType) Result {
	v.types++
	return ResultOk
}

func TestDrive_SectionHookSkipsWholePayload(t *testing.T) {
	v := &sectionSkippingVisitor{}
	err := Drive(moduleWithOneFunction(), 0, v)
	require.NoError(t, err)
	require.Equal(t, []wasm.SectionID{wasm.SectionIDType, wasm.SectionIDFunction, wasm.SectionIDCode}, v.sections)
	require.Equal(t, 0, v.types)
}
