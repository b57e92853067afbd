package binary

import "github.com/wasmforge/wasmcore/wasm"

// SectionHeader is one step of a SectionIterator: the section's id, its
// raw payload, and where the payload sits in the module image.
type SectionHeader struct {
	ID       wasm.SectionID
	Payload  []byte
	Location wasm.Location
}

// SectionIterator walks a module's sections one header at a time without
// decoding any payload. It is the lazy counterpart to DecodeModule: each
// Next call reads exactly one section header and slices out its payload,
// so consumers that only care about one section never pay for the rest.
type SectionIterator struct {
	c *Cursor
}

// NewSectionIterator checks data's magic/version header and returns an
// iterator positioned at the first section. The iterator shares (and
// reports into) the returned cursor's ErrorSink.
func NewSectionIterator(data []byte, features wasm.Features) (*SectionIterator, error) {
	c := NewCursor(data)
	c.Features = features
	if err := readHeader(c); err != nil {
		return nil, err
	}
	return &SectionIterator{c: c}, nil
}

// Errors exposes the sink decode problems are recorded into.
func (it *SectionIterator) Errors() *wasm.ErrorSink { return it.c.Errors }

// Next returns the next section, or ok=false once the module is
// exhausted. Framing problems (truncated payload, short header) surface
// as errors and also end the iteration.
func (it *SectionIterator) Next() (SectionHeader, bool, error) {
	if it.c.Done() {
		return SectionHeader{}, false, nil
	}
	idByte, err := it.c.ReadByte()
	if err != nil {
		return SectionHeader{}, false, err
	}
	size, err := it.c.ReadU32()
	if err != nil {
		return SectionHeader{}, false, err
	}
	start := it.c.Offset()
	payload, err := it.c.ReadBytes(int(size))
	if err != nil {
		return SectionHeader{}, false, err
	}
	return SectionHeader{
		ID:       wasm.SectionID(idByte),
		Payload:  payload,
		Location: wasm.Location{Begin: start, End: it.c.Offset()},
	}, true, nil
}

// InstructionIterator decodes a function body's instruction stream one
// instruction per Next call, resuming from its own cursor into the body
// bytes.
type InstructionIterator struct {
	c *Cursor
}

// NewInstructionIterator iterates body (a Code.Body slice: the
// expression bytes after the locals vector). Errors are recorded into
// sink; features selects the feature-dependent encodings.
func NewInstructionIterator(body []byte, features wasm.Features, sink *wasm.ErrorSink) *InstructionIterator {
	c := NewCursor(body)
	if sink != nil {
		c.Errors = sink
	}
	c.Features = features
	return &InstructionIterator{c: c}
}

// Next returns the next instruction, or ok=false once the body is
// exhausted. A decode error ends the iteration.
func (it *InstructionIterator) Next() (wasm.Instruction, bool, error) {
	if it.c.Done() {
		return wasm.Instruction{}, false, nil
	}
	instr, err := ReadInstruction(it.c)
	if err != nil {
		return wasm.Instruction{}, false, err
	}
	return instr, true, nil
}
