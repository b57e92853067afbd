package binary

import "github.com/wasmforge/wasmcore/wasm"

// ReadInstruction decodes one instruction: its opcode (plain or
// prefixed) and whatever immediate operands that opcode carries
// in the binary encoding.
func ReadInstruction(c *Cursor) (wasm.Instruction, error) {
	start := c.Offset()
	b, err := c.ReadByte()
	if err != nil {
		return wasm.Instruction{}, err
	}

	if b == wasm.PrefixMisc || b == wasm.PrefixSIMD || b == wasm.PrefixAtomic {
		sub, err := c.ReadU32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return readPrefixedInstruction(c, b, sub, start)
	}

	op := wasm.Opcode(b)
	imm, err := readImmediate(c, op)
	if err != nil {
		return wasm.Instruction{}, err
	}
	return wasm.Instruction{Opcode: op, Immediate: imm, Location: loc(start, c)}, nil
}

func readImmediate(c *Cursor, op wasm.Opcode) (wasm.Immediate, error) {
	switch op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf, wasm.OpcodeTry:
		bt, err := readBlockType(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmBlockType, Block: bt}, nil

	case wasm.OpcodeBr, wasm.OpcodeBrIf, wasm.OpcodeCall, wasm.OpcodeLocalGet, wasm.OpcodeLocalSet,
		wasm.OpcodeLocalTee, wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet, wasm.OpcodeTableGet,
		wasm.OpcodeTableSet, wasm.OpcodeRefFunc,
		wasm.OpcodeReturnCall, wasm.OpcodeBrOnNull, wasm.OpcodeBrOnNonNull, wasm.OpcodeDataDrop,
		wasm.OpcodeElemDrop, wasm.OpcodeTableGrow, wasm.OpcodeTableSize, wasm.OpcodeTableFill:
		idx, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex, Index: wasm.Index(idx)}, nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		// This format is single-memory only: the memory-index slot is a
		// reserved zero byte, not a LEB128 index.
		if err := c.ReadReservedByte(); err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex}, nil

	case wasm.OpcodeCallIndirect, wasm.OpcodeReturnCallIndirect:
		typeIdx, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		var tableIdx uint32
		if c.Features.Get(wasm.FeatureReferenceTypes) {
			tableIdx, err = c.ReadU32()
			if err != nil {
				return wasm.Immediate{}, err
			}
		} else if err := c.ReadReservedByte(); err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndexPair, IndexPair: [2]wasm.Index{wasm.Index(typeIdx), wasm.Index(tableIdx)}}, nil

	case wasm.OpcodeBrTable:
		n, err := c.ReadCount()
		if err != nil {
			return wasm.Immediate{}, err
		}
		targets := make([]wasm.Index, n)
		for i := range targets {
			idx, err := c.ReadU32()
			if err != nil {
				return wasm.Immediate{}, err
			}
			targets[i] = wasm.Index(idx)
		}
		def, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		imm := wasm.Immediate{Kind: wasm.ImmBrTable}
		imm.BrTable.Targets = targets
		imm.BrTable.Default = wasm.Index(def)
		return imm, nil

	case wasm.OpcodeSelectT:
		n, err := c.ReadCount()
		if err != nil {
			return wasm.Immediate{}, err
		}
		types := make([]wasm.ValueVariant, n)
		for i := range types {
			types[i], err = ReadValueType(c)
			if err != nil {
				return wasm.Immediate{}, err
			}
		}
		return wasm.Immediate{Kind: wasm.ImmSelectT, SelectTypes: types}, nil

	case wasm.OpcodeRefNull:
		h, err := ReadHeapType(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmHeapType, Heap: h}, nil

	case wasm.OpcodeI32Const:
		v, err := c.ReadS32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmI32, I32: v}, nil

	case wasm.OpcodeI64Const:
		v, err := c.ReadS64()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmI64, I64: v}, nil

	case wasm.OpcodeF32Const:
		v, err := c.ReadF32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmF32, F32: v}, nil

	case wasm.OpcodeF64Const:
		v, err := c.ReadF64()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmF64, F64: v}, nil

	case wasm.OpcodeMemoryCopy, wasm.OpcodeTableCopy:
		dst, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		src, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmCopy, Copy: [2]wasm.Index{wasm.Index(dst), wasm.Index(src)}}, nil

	case wasm.OpcodeThrow, wasm.OpcodeCatch, wasm.OpcodeRethrow, wasm.OpcodeFuncBind:
		idx, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmIndex, Index: wasm.Index(idx)}, nil

	case wasm.OpcodeBrOnExn:
		label, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		event, err := c.ReadU32()
		if err != nil {
			return wasm.Immediate{}, err
		}
		imm := wasm.Immediate{Kind: wasm.ImmBrOnExn}
		imm.BrOnExn.Label = wasm.Index(label)
		imm.BrOnExn.Event = wasm.Index(event)
		return imm, nil

	case wasm.OpcodeLet:
		bt, err := readBlockType(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		locals, err := readLocalGroups(c)
		if err != nil {
			return wasm.Immediate{}, err
		}
		return wasm.Immediate{Kind: wasm.ImmLet, Block: bt, Locals: locals}, nil

	default:
		if isMemArgOpcode(op) {
			align, err := c.ReadU32()
			if err != nil {
				return wasm.Immediate{}, err
			}
			offset, err := c.ReadU32()
			if err != nil {
				return wasm.Immediate{}, err
			}
			return wasm.Immediate{Kind: wasm.ImmMemArg, MemArg: wasm.MemArg{Align: align, Offset: offset}}, nil
		}
		// No other opcode in this set carries an immediate (the opcode
		// table covers the rest with fixed (params, results) only).
		return wasm.Immediate{}, nil
	}
}

func isMemArgOpcode(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return true
	}
	return false
}

// readBlockType reads a control instruction's type annotation: 0x40
// (void), a value type byte, or a signed LEB128 type index.
func readBlockType(c *Cursor) (wasm.BlockType, error) {
	if c.Len() > 0 && c.data[c.pos] == 0x40 {
		c.pos++
		return wasm.BlockType{Kind: wasm.BlockTypeVoid}, nil
	}
	if c.Len() > 0 {
		switch c.data[c.pos] {
		case byte(wasm.ValueTypeI32), byte(wasm.ValueTypeI64), byte(wasm.ValueTypeF32), byte(wasm.ValueTypeF64), byte(wasm.ValueTypeV128), 0x70, 0x6f, 0x68:
			v, err := ReadValueType(c)
			if err != nil {
				return wasm.BlockType{}, err
			}
			return wasm.BlockType{Kind: wasm.BlockTypeValue, Value: v}, nil
		}
	}
	s, err := c.ReadS64()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if s < 0 {
		return wasm.BlockType{}, c.fail("invalid block type %d", s)
	}
	return wasm.BlockType{Kind: wasm.BlockTypeIndex, TypeIdx: wasm.Index(s)}, nil
}

// readPrefixedInstruction decodes all three multi-byte opcode spaces:
// misc (0xFC, saturating conversions, bulk-memory/table, and — since this
// format has no separate GC prefix — the GC instructions too), SIMD
// (0xFD), and atomics (0xFE). Every sub-opcode either has no immediate or
// has its bytes fully consumed here; an unrecognized sub-opcode is a
// decode error rather than a silent no-op, since leaving any of these
// immediates unconsumed desyncs every instruction that follows.
func readPrefixedInstruction(c *Cursor, prefix byte, sub uint32, start int) (wasm.Instruction, error) {
	op := wasm.Opcode(prefix)<<24 | wasm.Opcode(sub)
	switch prefix {
	case wasm.PrefixMisc:
		return readMiscInstruction(c, op, sub, start)
	case wasm.PrefixSIMD:
		return readSIMDInstruction(c, op, sub, start)
	case wasm.PrefixAtomic:
		return readAtomicInstruction(c, op, sub, start)
	}
	return wasm.Instruction{}, c.fail("unrecognized instruction prefix 0x%x", prefix)
}

func readMiscInstruction(c *Cursor, op wasm.Opcode, sub uint32, start int) (wasm.Instruction, error) {
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // saturating truncations: no immediate
		return wasm.Instruction{Opcode: op, Location: loc(start, c)}, nil
	case 8: // memory.init: data segment index, then a reserved memory byte
		idx, err := c.ReadU32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		if err := c.ReadReservedByte(); err != nil {
			return wasm.Instruction{}, err
		}
		imm := wasm.Immediate{Kind: wasm.ImmIndexPair, IndexPair: [2]wasm.Index{wasm.Index(idx), 0}}
		return wasm.Instruction{Opcode: op, Immediate: imm, Location: loc(start, c)}, nil
	case 9: // data.drop
		return readOneIndexInstruction(c, op, start)
	case 10: // memory.copy: two reserved memory bytes
		if err := c.ReadReservedByte(); err != nil {
			return wasm.Instruction{}, err
		}
		if err := c.ReadReservedByte(); err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmCopy}, Location: loc(start, c)}, nil
	case 14: // table.copy (dst, src)
		return readTwoIndexInstruction(c, op, start, wasm.ImmCopy)
	case 11: // memory.fill: one reserved memory byte
		if err := c.ReadReservedByte(); err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmIndex}, Location: loc(start, c)}, nil
	case 12: // table.init (segment, table)
		return readTwoIndexInstruction(c, op, start, wasm.ImmIndexPair)
	case 13: // elem.drop
		return readOneIndexInstruction(c, op, start)
	case 15, 16, 17: // table.grow, table.size, table.fill
		return readOneIndexInstruction(c, op, start)

	// GC instructions, continuing the misc sub-opcode numbering (this
	// format has only the misc/simd/atomic prefixes, no dedicated GC one).
	case 18, 19: // struct.new, struct.new_default (type)
		return readOneIndexInstruction(c, op, start)
	case 20, 21, 22: // struct.get, struct.get_s, struct.get_u (type, field)
		return readTwoIndexInstruction(c, op, start, wasm.ImmStructField)
	case 23: // struct.set (type, field)
		return readTwoIndexInstruction(c, op, start, wasm.ImmStructField)
	case 24, 25: // array.new, array.new_default (type)
		return readOneIndexInstruction(c, op, start)
	case 26, 27, 28, 29: // array.get, array.get_s, array.get_u, array.set (type)
		return readOneIndexInstruction(c, op, start)
	case 30: // array.len: no immediate, type known from the operand's heap type
		return wasm.Instruction{Opcode: op, Location: loc(start, c)}, nil
	case 31, 32, 33: // i31.new, i31.get_s, i31.get_u: no immediate
		return wasm.Instruction{Opcode: op, Location: loc(start, c)}, nil
	case 34, 35: // ref.test, ref.cast (heap-type)
		h, err := ReadHeapType(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmHeapType, Heap: h}, Location: loc(start, c)}, nil
	case 36: // br_on_cast (label, heap-type)
		label, err := c.ReadU32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		h, err := ReadHeapType(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		imm := wasm.Immediate{Kind: wasm.ImmBrOnCast}
		imm.BrOnCast.Label = wasm.Index(label)
		imm.BrOnCast.Heap = h
		return wasm.Instruction{Opcode: op, Immediate: imm, Location: loc(start, c)}, nil
	case 37: // rtt.canon (depth, heap-type)
		depth, err := c.ReadU32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		h, err := ReadHeapType(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		imm := wasm.Immediate{Kind: wasm.ImmRtt}
		imm.Rtt.Depth = depth
		imm.Rtt.Heap = h
		return wasm.Instruction{Opcode: op, Immediate: imm, Location: loc(start, c)}, nil
	case 38: // rtt.sub (heap-type)
		h, err := ReadHeapType(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmHeapType, Heap: h}, Location: loc(start, c)}, nil
	}
	return wasm.Instruction{}, c.fail("unsupported misc opcode %d", sub)
}

func readOneIndexInstruction(c *Cursor, op wasm.Opcode, start int) (wasm.Instruction, error) {
	idx, err := c.ReadU32()
	if err != nil {
		return wasm.Instruction{}, err
	}
	return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmIndex, Index: wasm.Index(idx)}, Location: loc(start, c)}, nil
}

func readTwoIndexInstruction(c *Cursor, op wasm.Opcode, start int, kind wasm.ImmediateKind) (wasm.Instruction, error) {
	a, err := c.ReadU32()
	if err != nil {
		return wasm.Instruction{}, err
	}
	b, err := c.ReadU32()
	if err != nil {
		return wasm.Instruction{}, err
	}
	imm := wasm.Immediate{Kind: kind}
	pair := [2]wasm.Index{wasm.Index(a), wasm.Index(b)}
	switch kind {
	case wasm.ImmCopy:
		imm.Copy = pair
	case wasm.ImmStructField:
		imm.StructField = pair
	default:
		imm.IndexPair = pair
	}
	return wasm.Instruction{Opcode: op, Immediate: imm, Location: loc(start, c)}, nil
}

func readMemArg(c *Cursor) (wasm.MemArg, error) {
	align, err := c.ReadU32()
	if err != nil {
		return wasm.MemArg{}, err
	}
	offset, err := c.ReadU32()
	if err != nil {
		return wasm.MemArg{}, err
	}
	return wasm.MemArg{Align: align, Offset: offset}, nil
}

// simdMemArgOps are the SIMD sub-opcodes whose only immediate is a plain
// mem arg (v128.load/store and the widening/splat loads).
var simdMemArgOps = map[uint32]bool{
	0x00: true, 0x01: true, 0x02: true, 0x03: true, 0x04: true, 0x05: true, 0x06: true,
	0x07: true, 0x08: true, 0x09: true, 0x0A: true, 0x0B: true,
}

// simdMemArgLaneOps are the SIMD load_lane/store_lane sub-opcodes, whose
// immediate is a mem arg followed by a lane index byte.
var simdMemArgLaneOps = map[uint32]bool{
	0x1C: true, 0x1D: true, 0x1E: true, 0x1F: true,
	0x20: true, 0x21: true, 0x22: true, 0x23: true,
}

// simdLaneOps are the extract_lane/replace_lane sub-opcodes, whose
// immediate is a single lane index byte.
var simdLaneOps = map[uint32]bool{
	0x0E: true, 0x0F: true, 0x10: true, 0x11: true, 0x12: true, 0x13: true,
	0x14: true, 0x15: true, 0x16: true, 0x17: true, 0x18: true, 0x19: true,
	0x1A: true, 0x1B: true,
}

func readSIMDInstruction(c *Cursor, op wasm.Opcode, sub uint32, start int) (wasm.Instruction, error) {
	switch {
	case simdMemArgOps[sub]:
		m, err := readMemArg(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmMemArg, MemArg: m}, Location: loc(start, c)}, nil

	case sub == 0x0C: // v128.const
		var v [16]byte
		b, err := c.ReadBytes(16)
		if err != nil {
			return wasm.Instruction{}, err
		}
		copy(v[:], b)
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmV128, V128: v}, Location: loc(start, c)}, nil

	case sub == 0x0D: // i8x16.shuffle
		var s [16]byte
		b, err := c.ReadBytes(16)
		if err != nil {
			return wasm.Instruction{}, err
		}
		copy(s[:], b)
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmSIMDShuffle, Shuffle: s}, Location: loc(start, c)}, nil

	case simdLaneOps[sub]:
		lane, err := c.ReadByte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmSIMDLane, Lane: lane}, Location: loc(start, c)}, nil

	case simdMemArgLaneOps[sub]:
		m, err := readMemArg(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		lane, err := c.ReadByte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmMemArgLane, MemArg: m, Lane: lane}, Location: loc(start, c)}, nil
	}
	// The remaining SIMD sub-opcodes carry no immediate and are returned
	// as-is; the decoder does not check them against the fixed signatures
	// registered in opcode_table.go.
	return wasm.Instruction{Opcode: op, Location: loc(start, c)}, nil
}

func readAtomicInstruction(c *Cursor, op wasm.Opcode, sub uint32, start int) (wasm.Instruction, error) {
	switch sub {
	case 0x00, 0x01, 0x02: // memory.atomic.notify, .wait32, .wait64
		m, err := readMemArg(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmMemArg, MemArg: m}, Location: loc(start, c)}, nil
	case 0x03: // atomic.fence: a single reserved zero byte, no mem arg
		b, err := c.ReadByte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		if b != 0 {
			return wasm.Instruction{}, c.fail("atomic.fence reserved byte must be zero, got %d", b)
		}
		return wasm.Instruction{Opcode: op, Location: loc(start, c)}, nil
	}
	if _, ok := wasm.LookupAtomicMemOp(op); ok {
		m, err := readMemArg(c)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Immediate: wasm.Immediate{Kind: wasm.ImmMemArg, MemArg: m}, Location: loc(start, c)}, nil
	}
	return wasm.Instruction{}, c.fail("unsupported atomic opcode %d", sub)
}
