package visit

import "github.com/wasmforge/wasmcore/wasm"

// moduleLevelValidator layers the checks that need the whole context (not
// just a single section) on top of Validator; they run at EndModule, once
// every earlier section has been visited.
type moduleLevelValidator struct {
	Validator
	startFuncIdx  *wasm.Index
	dataSeenCount uint32
}

func (vd *moduleLevelValidator) StartSection(funcIdx wasm.Index) Result {
	idx := funcIdx
	vd.startFuncIdx = &idx
	return ResultOk
}

func (vd *moduleLevelValidator) Data(idx wasm.Index, d wasm.DataSegment) Result {
	vd.dataSeenCount++
	return vd.Validator.Data(idx, d)
}

func (vd *moduleLevelValidator) EndModule() Result {
	mc := vd.Context()
	if vd.startFuncIdx != nil {
		ft, ok := mc.FunctionType(*vd.startFuncIdx)
		if !ok {
			vd.sinkRecord(0, "start function %d does not exist", *vd.startFuncIdx)
		} else if len(ft.Params) != 0 || len(ft.Results) != 0 {
			vd.sinkRecord(0, "start function must have no params or results")
		}
	}
	if mc.DataCount != nil && *mc.DataCount != vd.dataSeenCount {
		vd.sinkRecord(0, "data count section (%d) does not match data section (%d)", *mc.DataCount, vd.dataSeenCount)
	}
	if vd.definedFuncCount != vd.codeCount {
		vd.sinkRecord(0, "function section (%d) and code section (%d) counts differ", vd.definedFuncCount, vd.codeCount)
	}
	// Event exports are checked here rather than when the export section
	// streamed past: the event section's id orders it after the exports.
	for _, e := range vd.exports {
		if e.Kind != wasm.ExternKindEvent {
			continue
		}
		if _, ok := mc.EventAt(e.Index); !ok {
			vd.sinkRecord(e.Location.Begin, "export %q: unknown event %d", e.Name, e.Index)
		}
	}
	return ResultOk
}

func (vd *moduleLevelValidator) sinkRecord(offset int, format string, args ...interface{}) {
	vd.sink.Record(offset, format, args...)
}

// ValidateModule decodes and validates an entire module image in one
// streaming pass, returning the accumulated module
// context and every error recorded along the way. Decode-time errors
// (malformed LEB128, bad section framing) abort the pass immediately;
// validation-time errors accumulate so a single run reports as many
// problems as the instruction-level algorithm allows.
func ValidateModule(data []byte, features wasm.Features) (*wasm.ModuleContext, []error) {
	sink := wasm.NewErrorSink()
	vd := &moduleLevelValidator{Validator: *NewValidator(features, sink)}
	if err := Drive(data, features, vd); err != nil {
		return vd.Context(), append(vd.sink.Errors(), err)
	}
	return vd.Context(), vd.sink.Errors()
}
