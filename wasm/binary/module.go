package binary

import (
	"fmt"

	"github.com/wasmforge/wasmcore/wasm"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}
var version = [4]byte{0x01, 0x00, 0x00, 0x00}

// DecodeModule eagerly decodes an entire module image. Most
// callers that want validation-as-you-go should prefer wasm/visit's
// streaming driver instead; DecodeModule materializes everything, the
// way the bundled validator's self-test fixtures want to inspect it.
func DecodeModule(data []byte, features wasm.Features) (*wasm.Module, error) {
	c := NewCursor(data)
	c.Features = features
	if err := readHeader(c); err != nil {
		return nil, err
	}

	m := &wasm.Module{}
	lastID := -1

	seenNonCustom := map[wasm.SectionID]bool{}

	for !c.Done() {
		idByte, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		id := wasm.SectionID(idByte)
		size, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		sectionStart := c.Offset()
		payload, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}

		if id != wasm.SectionIDCustom {
			if seenNonCustom[id] {
				return nil, c.Errors.Record(sectionStart, "section %s: duplicate section", id)
			}
			seenNonCustom[id] = true
			// The data count section is a special case: its id
			// (12) is larger than the code and data ids, but it is
			// positioned between the element and code sections, so it is
			// ranked there for the otherwise strictly increasing id
			// ordering check.
			rank := 2 * int(id)
			if id == wasm.SectionIDDataCount {
				rank = 2*int(wasm.SectionIDElement) + 1
			}
			if rank <= lastID {
				return nil, c.Errors.Record(sectionStart, "section out of order: %s", id)
			}
			lastID = rank
		}

		sc := NewCursor(payload)
		sc.Errors = c.Errors
		sc.Features = features
		c.Errors.PushContext(sectionStart, fmt.Sprintf("section %s", id))
		err = decodeSection(sc, id, m, features)
		c.Errors.PopContext()
		if err != nil {
			return nil, err
		}
		if !sc.Done() {
			return nil, c.Errors.Record(sectionStart+sc.Offset(), "section %s: %d bytes of unread content", id, sc.Len())
		}
	}
	return m, nil
}

func readHeader(c *Cursor) error {
	b, err := c.ReadBytes(4)
	if err != nil {
		return err
	}
	if [4]byte(b) != magic {
		return c.Errors.Record(0, "invalid magic number")
	}
	v, err := c.ReadBytes(4)
	if err != nil {
		return err
	}
	if [4]byte(v) != version {
		return c.Errors.Record(4, "invalid version header")
	}
	return nil
}

func decodeSection(c *Cursor, id wasm.SectionID, m *wasm.Module, features wasm.Features) error {
	// A zero-length section is valid and empty.
	if c.Done() {
		return nil
	}
	switch id {
	case wasm.SectionIDCustom:
		return decodeCustomSection(c, m)
	case wasm.SectionIDType:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.TypeSection = make([]wasm.DefinedType, n)
		for i := range m.TypeSection {
			m.TypeSection[i], err = ReadDefinedType(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDImport:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.ImportSection = make([]wasm.Import, n)
		for i := range m.ImportSection {
			m.ImportSection[i], err = readImport(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDFunction:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.FunctionSection = make([]wasm.Index, n)
		for i := range m.FunctionSection {
			idx, err := c.ReadU32()
			if err != nil {
				return err
			}
			m.FunctionSection[i] = wasm.Index(idx)
		}
	case wasm.SectionIDTable:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		if n > 1 && !features.Get(wasm.FeatureReferenceTypes) {
			return c.fail("at most one table allowed in module, but read %d", n)
		}
		m.TableSection = make([]wasm.TableType, n)
		for i := range m.TableSection {
			m.TableSection[i], err = ReadTableType(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDMemory:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		if n > 1 {
			return c.fail("at most one memory allowed in module, but read %d", n)
		}
		m.MemorySection = make([]wasm.MemoryType, n)
		for i := range m.MemorySection {
			lim, err := ReadLimits(c)
			if err != nil {
				return err
			}
			m.MemorySection[i] = wasm.MemoryType{Limits: lim}
		}
	case wasm.SectionIDGlobal:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.GlobalSection = make([]wasm.Global, n)
		for i := range m.GlobalSection {
			gt, err := ReadGlobalType(c)
			if err != nil {
				return err
			}
			init, err := readConstantExpr(c)
			if err != nil {
				return err
			}
			m.GlobalSection[i] = wasm.Global{Type: gt, Init: init}
		}
	case wasm.SectionIDExport:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.ExportSection = make([]wasm.Export, n)
		seen := map[string]bool{}
		for i := range m.ExportSection {
			start := c.Offset()
			name, err := c.ReadString()
			if err != nil {
				return err
			}
			if seen[name] {
				return c.Errors.Record(start, "export[%d] duplicates name %q", i, name)
			}
			seen[name] = true
			kindByte, err := c.ReadByte()
			if err != nil {
				return err
			}
			idx, err := c.ReadU32()
			if err != nil {
				return err
			}
			m.ExportSection[i] = wasm.Export{Name: name, Kind: wasm.ExternKind(kindByte), Index: wasm.Index(idx), Location: loc(start, c)}
		}
	case wasm.SectionIDStart:
		idx, err := c.ReadU32()
		if err != nil {
			return err
		}
		v := wasm.Index(idx)
		m.StartSection = &v
	case wasm.SectionIDElement:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.ElementSection = make([]wasm.ElementSegment, n)
		for i := range m.ElementSection {
			m.ElementSection[i], err = readElementSegment(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDCode:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.CodeSection = make([]wasm.Code, n)
		for i := range m.CodeSection {
			m.CodeSection[i], err = readCode(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDData:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.DataSection = make([]wasm.DataSegment, n)
		for i := range m.DataSection {
			m.DataSection[i], err = readDataSegment(c)
			if err != nil {
				return err
			}
		}
	case wasm.SectionIDDataCount:
		n, err := c.ReadU32()
		if err != nil {
			return err
		}
		m.DataCountSection = &n
	case wasm.SectionIDEvent:
		n, err := c.ReadCount()
		if err != nil {
			return err
		}
		m.EventSection = make([]wasm.EventType, n)
		for i := range m.EventSection {
			attr, err := c.ReadByte()
			if err != nil {
				return err
			}
			typeIdx, err := c.ReadU32()
			if err != nil {
				return err
			}
			m.EventSection[i] = wasm.EventType{Attribute: wasm.EventAttribute(attr), TypeIndex: wasm.Index(typeIdx)}
		}
	default:
		return c.fail("invalid section id %d", id)
	}
	return nil
}

func readImport(c *Cursor) (wasm.Import, error) {
	start := c.Offset()
	mod, err := c.ReadString()
	if err != nil {
		return wasm.Import{}, err
	}
	name, err := c.ReadString()
	if err != nil {
		return wasm.Import{}, err
	}
	kindByte, err := c.ReadByte()
	if err != nil {
		return wasm.Import{}, err
	}
	im := wasm.Import{Module: mod, Name: name, Kind: wasm.ExternKind(kindByte)}
	switch im.Kind {
	case wasm.ExternKindFunc:
		idx, err := c.ReadU32()
		if err != nil {
			return wasm.Import{}, err
		}
		im.DescFunc = wasm.Index(idx)
	case wasm.ExternKindTable:
		im.DescTable, err = ReadTableType(c)
	case wasm.ExternKindMemory:
		var lim wasm.Limits
		lim, err = ReadLimits(c)
		im.DescMemory = wasm.MemoryType{Limits: lim}
	case wasm.ExternKindGlobal:
		im.DescGlobal, err = ReadGlobalType(c)
	case wasm.ExternKindEvent:
		var attr byte
		attr, err = c.ReadByte()
		if err == nil {
			var typeIdx uint32
			typeIdx, err = c.ReadU32()
			im.DescEvent = wasm.EventType{Attribute: wasm.EventAttribute(attr), TypeIndex: wasm.Index(typeIdx)}
		}
	default:
		return wasm.Import{}, c.fail("Unknown external kind: %d", kindByte)
	}
	if err != nil {
		return wasm.Import{}, err
	}
	im.Location = loc(start, c)
	return im, nil
}

// readConstantExpr reads a single instruction followed by `end`, the
// form used for global initializers and active segment offsets. Only the
// const-producing opcodes are legal; everything
// else is rejected here, at decode time, before the validator ever sees
// the expression.
func readConstantExpr(c *Cursor) (wasm.ConstantExpr, error) {
	start := c.Offset()
	instr, err := ReadInstruction(c)
	if err != nil {
		return wasm.ConstantExpr{}, err
	}
	if !isConstInstruction(instr.Opcode) {
		return wasm.ConstantExpr{}, c.Errors.Record(instr.Location.Begin,
			"Illegal instruction in constant expression: 0x%x", uint32(instr.Opcode))
	}
	end, err := c.ReadByte()
	if err != nil {
		return wasm.ConstantExpr{}, err
	}
	if end != byte(wasm.OpcodeEnd) {
		c.pos--
		return wasm.ConstantExpr{}, c.fail("Expected end instruction")
	}
	return wasm.ConstantExpr{Instr: instr, Location: loc(start, c)}, nil
}

func isConstInstruction(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Const, wasm.OpcodeI64Const, wasm.OpcodeF32Const, wasm.OpcodeF64Const,
		wasm.OpcodeRefNull, wasm.OpcodeRefFunc, wasm.OpcodeGlobalGet:
		return true
	}
	return op == wasm.OpcodeV128Const
}

func readElementSegment(c *Cursor) (wasm.ElementSegment, error) {
	start := c.Offset()
	flags, err := c.ReadU32()
	if err != nil {
		return wasm.ElementSegment{}, err
	}
	if flags > 7 {
		return wasm.ElementSegment{}, c.fail("Invalid flags value: %d", flags)
	}
	seg := wasm.ElementSegment{}
	useExprs := flags&0x4 != 0

	// Bit 0 clear: active. Bit 1 then means an explicit table index is
	// present. Bit 0 set: passive, or declarative when bit 1 is also set.
	if flags&0x1 == 0 {
		seg.Mode = wasm.ElementModeActive
		if flags&0x2 != 0 {
			idx, err := c.ReadU32()
			if err != nil {
				return wasm.ElementSegment{}, err
			}
			seg.Table = wasm.Index(idx)
		}
		seg.Offset, err = readConstantExpr(c)
		if err != nil {
			return wasm.ElementSegment{}, err
		}
	} else if flags&0x2 != 0 {
		seg.Mode = wasm.ElementModeDeclarative
	} else {
		seg.Mode = wasm.ElementModePassive
	}

	// Flags 0 and 4 imply funcref; every other variant spells the element
	// type out, as an external-kind byte (index payload) or a reference
	// type (expression payload).
	if flags&0x3 == 0 {
		seg.RefType = wasm.FuncRefType()
	} else if useExprs {
		seg.RefType, err = ReadReferenceType(c)
		if err != nil {
			return wasm.ElementSegment{}, err
		}
	} else {
		kindByte, err := c.ReadByte()
		if err != nil {
			return wasm.ElementSegment{}, err
		}
		if kindByte != 0 {
			c.pos--
			return wasm.ElementSegment{}, c.fail("Unknown element type: %d", kindByte)
		}
		seg.RefType = wasm.FuncRefType()
	}

	n, err := c.ReadCount()
	if err != nil {
		return wasm.ElementSegment{}, err
	}
	if useExprs {
		seg.Exprs = make([]wasm.ConstantExpr, n)
		for i := range seg.Exprs {
			seg.Exprs[i], err = readConstantExpr(c)
			if err != nil {
				return wasm.ElementSegment{}, err
			}
		}
	} else {
		seg.Indices = make([]wasm.Index, n)
		for i := range seg.Indices {
			idx, err := c.ReadU32()
			if err != nil {
				return wasm.ElementSegment{}, err
			}
			seg.Indices[i] = wasm.Index(idx)
		}
	}
	seg.Location = loc(start, c)
	return seg, nil
}

func readCode(c *Cursor) (wasm.Code, error) {
	start := c.Offset()
	size, err := c.ReadU32()
	if err != nil {
		return wasm.Code{}, err
	}
	bodyStart := c.Offset()
	body, err := c.ReadBytes(int(size))
	if err != nil {
		return wasm.Code{}, err
	}
	bc := NewCursor(body)
	bc.Errors = c.Errors
	bc.Features = c.Features
	locals, err := readLocalGroups(bc)
	if err != nil {
		return wasm.Code{}, err
	}
	return wasm.Code{
		Locals:     locals,
		Body:       body[bc.Offset():],
		Location:   loc(start, c),
		BodyOffset: bodyStart + bc.Offset(),
	}, nil
}

// readLocalGroups reads a run-length compressed locals vector: a
// count-prefixed sequence of (count, value_type) groups, shared by
// function bodies and the `let` instruction's bound
// locals. The group counts may total at most 2^32-1 locals.
func readLocalGroups(c *Cursor) ([]wasm.LocalGroup, error) {
	groupCount, err := c.ReadCount()
	if err != nil {
		return nil, err
	}
	groups := make([]wasm.LocalGroup, groupCount)
	var total uint64
	for i := range groups {
		count, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		total += uint64(count)
		if total > 0xffffffff {
			return nil, c.fail("too many locals: %d", total)
		}
		vt, err := ReadValueType(c)
		if err != nil {
			return nil, err
		}
		groups[i] = wasm.LocalGroup{Count: count, ValType: vt}
	}
	return groups, nil
}

func readDataSegment(c *Cursor) (wasm.DataSegment, error) {
	start := c.Offset()
	flags, err := c.ReadU32()
	if err != nil {
		return wasm.DataSegment{}, err
	}
	seg := wasm.DataSegment{}
	switch flags {
	case 0:
		seg.Mode = wasm.DataModeActive
		seg.Offset, err = readConstantExpr(c)
	case 1:
		seg.Mode = wasm.DataModePassive
	case 2:
		seg.Mode = wasm.DataModeActive
		var memIdx uint32
		memIdx, err = c.ReadU32()
		seg.Memory = wasm.Index(memIdx)
		if err == nil {
			seg.Offset, err = readConstantExpr(c)
		}
	default:
		return wasm.DataSegment{}, c.fail("invalid data segment flags %d", flags)
	}
	if err != nil {
		return wasm.DataSegment{}, err
	}
	n, err := c.ReadCount()
	if err != nil {
		return wasm.DataSegment{}, err
	}
	seg.Init, err = c.ReadBytes(int(n))
	if err != nil {
		return wasm.DataSegment{}, err
	}
	seg.Location = loc(start, c)
	return seg, nil
}

// ReadImportEntry reads one import-section entry. Exported for wasm/visit's
// per-entry streaming traversal.
func ReadImportEntry(c *Cursor) (wasm.Import, error) { return readImport(c) }

// ReadGlobalEntry reads one global-section entry.
func ReadGlobalEntry(c *Cursor) (wasm.Global, error) {
	gt, err := ReadGlobalType(c)
	if err != nil {
		return wasm.Global{}, err
	}
	init, err := readConstantExpr(c)
	if err != nil {
		return wasm.Global{}, err
	}
	return wasm.Global{Type: gt, Init: init}, nil
}

// ReadExportEntry reads one export-section entry.
func ReadExportEntry(c *Cursor) (wasm.Export, error) {
	start := c.Offset()
	name, err := c.ReadString()
	if err != nil {
		return wasm.Export{}, err
	}
	kindByte, err := c.ReadByte()
	if err != nil {
		return wasm.Export{}, err
	}
	idx, err := c.ReadU32()
	if err != nil {
		return wasm.Export{}, err
	}
	return wasm.Export{Name: name, Kind: wasm.ExternKind(kindByte), Index: wasm.Index(idx), Location: loc(start, c)}, nil
}

// ReadElementEntry reads one element-section entry.
func ReadElementEntry(c *Cursor) (wasm.ElementSegment, error) { return readElementSegment(c) }

// ReadCodeEntry reads one code-section entry (locals plus raw body bytes).
func ReadCodeEntry(c *Cursor) (wasm.Code, error) { return readCode(c) }

// ReadDataEntry reads one data-section entry.
func ReadDataEntry(c *Cursor) (wasm.DataSegment, error) { return readDataSegment(c) }

func decodeCustomSection(c *Cursor, m *wasm.Module) error {
	start := c.Offset()
	name, err := c.ReadString()
	if err != nil {
		return err
	}
	data := c.data[c.pos:]
	c.pos = len(c.data)
	cs := wasm.CustomSection{Name: name, Data: data, Location: loc(start, c)}
	m.CustomSections = append(m.CustomSections, cs)
	if name == "name" {
		ns, err := decodeNameSection(data)
		if err != nil {
			// A malformed name section is a recoverable custom-section
			// problem: record it but do
			// not abort the rest of decoding.
			c.Errors.Record(start, "invalid name section: %s", err.Error())
			return nil
		}
		if m.NameSection != nil {
			return c.fail("section custom: redundant custom section name")
		}
		m.NameSection = ns
	}
	return nil
}
