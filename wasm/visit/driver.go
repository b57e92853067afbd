package visit

import (
	"fmt"

	"github.com/wasmforge/wasmcore/wasm"
	"github.com/wasmforge/wasmcore/wasm/binary"
)

// Drive walks data's sections in order, calling into v. It mirrors
// binary.DecodeModule's section framing and per-entry decoding, but lets
// v shortcut expensive work (chiefly: decoding every instruction of every
// function body) by returning ResultSkip.
//
// A function body whose Code hook returns ResultSkip still has its raw
// bytes consumed correctly (the section framing never desyncs), it is
// simply never split into individual Instruction callbacks (the
// "skipped section still absorbs its count" rule applies equally to
// skipped entries within a present section).
func Drive(data []byte, features wasm.Features, v Visitor) error {
	c := binary.NewCursor(data)
	c.Features = features
	if err := driveHeader(c); err != nil {
		return err
	}
	if v.BeginModule() == ResultFail {
		return firstError(c)
	}

	lastID := -1
	for !c.Done() {
		idByte, err := c.ReadByte()
		if err != nil {
			return err
		}
		id := wasm.SectionID(idByte)
		size, err := c.ReadU32()
		if err != nil {
			return err
		}
		sectionStart := c.Offset()
		payload, err := c.ReadBytes(int(size))
		if err != nil {
			return err
		}
		if id != wasm.SectionIDCustom {
			// Data count (id 12) is ranked between element and code.
			rank := 2 * int(id)
			if id == wasm.SectionIDDataCount {
				rank = 2*int(wasm.SectionIDElement) + 1
			}
			if rank <= lastID {
				return c.Errors.Record(sectionStart, "section out of order: %s", id)
			}
			lastID = rank
		}

		switch v.Section(id, size) {
		case ResultSkip:
			if v.EndSection(id) == ResultFail {
				return firstError(c)
			}
			continue
		case ResultFail:
			return firstError(c)
		}

		sc := binary.NewCursor(payload)
		sc.Errors = c.Errors
		sc.Features = features
		c.Errors.PushContext(sectionStart, fmt.Sprintf("section %s", id))
		res, err := driveSection(sc, id, v)
		c.Errors.PopContext()
		if err != nil {
			return err
		}
		if res == ResultFail {
			return firstError(c)
		}
		if res == ResultOk && !sc.Done() {
			return c.Errors.Record(sectionStart+sc.Offset(), "section %s: %d bytes of unread content", id, sc.Len())
		}
		if v.EndSection(id) == ResultFail {
			return firstError(c)
		}
	}

	if v.EndModule() == ResultFail {
		return firstError(c)
	}
	return nil
}

func firstError(c *binary.Cursor) error {
	if errs := c.Errors.Errors(); len(errs) > 0 {
		return errs[len(errs)-1]
	}
	return fmt.Errorf("visitor aborted traversal")
}

func driveHeader(c *binary.Cursor) error {
	b, err := c.ReadBytes(4)
	if err != nil {
		return err
	}
	if string(b) != "\x00asm" {
		return c.Errors.Record(0, "invalid magic number")
	}
	v, err := c.ReadBytes(4)
	if err != nil {
		return err
	}
	if string(v) != "\x01\x00\x00\x00" {
		return c.Errors.Record(4, "invalid version header")
	}
	return nil
}

func driveSection(c *binary.Cursor, id wasm.SectionID, v Visitor) (Result, error) {
	// A zero-length section is valid and empty.
	if c.Done() {
		return ResultOk, nil
	}
	switch id {
	case wasm.SectionIDCustom:
		start := c.Offset()
		name, err := c.ReadString()
		if err != nil {
			return ResultFail, err
		}
		data := c.Rest()
		return v.CustomSection(wasm.CustomSection{Name: name, Data: data, Location: wasm.Location{Begin: start, End: c.Offset() + len(data)}}), nil

	case wasm.SectionIDType:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.TypeSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			dt, err := binary.ReadDefinedType(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Type(wasm.Index(i), dt) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDImport:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.ImportSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			im, err := binary.ReadImportEntry(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Import(wasm.Index(i), im) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDFunction:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.FunctionSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			typeIdx, err := c.ReadU32()
			if err != nil {
				return ResultFail, err
			}
			if v.Function(wasm.Index(i), wasm.Index(typeIdx)) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDTable:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.TableSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			tt, err := binary.ReadTableType(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Table(wasm.Index(i), tt) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDMemory:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.MemorySection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			lim, err := binary.ReadLimits(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Memory(wasm.Index(i), wasm.MemoryType{Limits: lim}) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDGlobal:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.GlobalSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			g, err := binary.ReadGlobalEntry(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Global(wasm.Index(i), g) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDExport:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.ExportSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			e, err := binary.ReadExportEntry(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Export(wasm.Index(i), e) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDStart:
		idx, err := c.ReadU32()
		if err != nil {
			return ResultFail, err
		}
		if v.StartSection(wasm.Index(idx)) == ResultFail {
			return ResultFail, nil
		}

	case wasm.SectionIDElement:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.ElementSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			e, err := binary.ReadElementEntry(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Element(wasm.Index(i), e) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDDataCount:
		n, err := c.ReadU32()
		if err != nil {
			return ResultFail, err
		}
		if v.DataCountSection(n) == ResultFail {
			return ResultFail, nil
		}

	case wasm.SectionIDCode:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.CodeSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			code, err := binary.ReadCodeEntry(c)
			if err != nil {
				return ResultFail, err
			}
			res := v.Code(wasm.Index(i), code)
			if res == ResultFail {
				return ResultFail, nil
			}
			if res == ResultSkip {
				continue
			}
			bc := binary.NewCursor(code.Body)
			bc.Errors = c.Errors
			bc.Features = c.Features
			for !bc.Done() {
				instr, err := binary.ReadInstruction(bc)
				if err != nil {
					return ResultFail, err
				}
				if v.Instruction(wasm.Index(i), instr) == ResultFail {
					return ResultFail, nil
				}
				if instr.Opcode == wasm.OpcodeEnd && bc.Done() {
					break
				}
			}
			if v.EndFunction(wasm.Index(i)) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDData:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.DataSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			d, err := binary.ReadDataEntry(c)
			if err != nil {
				return ResultFail, err
			}
			if v.Data(wasm.Index(i), d) == ResultFail {
				return ResultFail, nil
			}
		}

	case wasm.SectionIDEvent:
		n, err := c.ReadCount()
		if err != nil {
			return ResultFail, err
		}
		if v.EventSection(n) == ResultSkip {
			return ResultSkip, nil
		}
		for i := uint32(0); i < n; i++ {
			attr, err := c.ReadByte()
			if err != nil {
				return ResultFail, err
			}
			typeIdx, err := c.ReadU32()
			if err != nil {
				return ResultFail, err
			}
			e := wasm.EventType{Attribute: wasm.EventAttribute(attr), TypeIndex: wasm.Index(typeIdx)}
			if v.Event(wasm.Index(i), e) == ResultFail {
				return ResultFail, nil
			}
		}

	default:
		return ResultFail, c.Errors.Record(c.Offset(), "invalid section id %d", id)
	}
	return ResultOk, nil
}
