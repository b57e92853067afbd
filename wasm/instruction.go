package wasm

// Opcode identifies an instruction uniquely regardless of whether it was
// encoded as a single byte or a prefix byte (0xFC misc, 0xFD simd, 0xFE
// atomic) followed by a LEB128 sub-opcode: the prefix is folded into the
// high bits so the same logical opcode compares equal however it was
// spelled in the binary.
type Opcode uint32

const (
	PrefixMisc   = 0xFC
	PrefixSIMD   = 0xFD
	PrefixAtomic = 0xFE
)

// singleByteOpcode builds an Opcode for a plain (non-prefixed) byte.
func singleByteOpcode(b byte) Opcode { return Opcode(b) }

// prefixedOpcode builds an Opcode for a prefix byte plus LEB128 sub-opcode.
func prefixedOpcode(prefix byte, sub uint32) Opcode {
	return Opcode(prefix)<<24 | Opcode(sub)
}

// Control and basic instructions (single byte).
const (
	OpcodeUnreachable Opcode = 0x00
	OpcodeNop         Opcode = 0x01
	OpcodeBlock       Opcode = 0x02
	OpcodeLoop        Opcode = 0x03
	OpcodeIf          Opcode = 0x04
	OpcodeElse        Opcode = 0x05
	OpcodeTry         Opcode = 0x06
	OpcodeCatch       Opcode = 0x07
	OpcodeThrow       Opcode = 0x08
	OpcodeRethrow     Opcode = 0x09
	OpcodeEnd         Opcode = 0x0B
	OpcodeBr          Opcode = 0x0C
	OpcodeBrIf        Opcode = 0x0D
	OpcodeBrTable     Opcode = 0x0E
	OpcodeReturn      Opcode = 0x0F
	OpcodeCall        Opcode = 0x10
	OpcodeCallIndirect Opcode = 0x11
	OpcodeReturnCall        Opcode = 0x12
	OpcodeReturnCallIndirect Opcode = 0x13
	OpcodeCallRef           Opcode = 0x14
	OpcodeReturnCallRef     Opcode = 0x15
	OpcodeFuncBind          Opcode = 0x16
	OpcodeLet               Opcode = 0x17
	OpcodeBrOnNull          Opcode = 0xD5
	OpcodeBrOnNonNull       Opcode = 0xD6
	OpcodeBrOnExn           Opcode = 0x18

	OpcodeDrop   Opcode = 0x1A
	OpcodeSelect Opcode = 0x1B
	OpcodeSelectT Opcode = 0x1C

	OpcodeLocalGet  Opcode = 0x20
	OpcodeLocalSet  Opcode = 0x21
	OpcodeLocalTee  Opcode = 0x22
	OpcodeGlobalGet Opcode = 0x23
	OpcodeGlobalSet Opcode = 0x24

	OpcodeTableGet Opcode = 0x25
	OpcodeTableSet Opcode = 0x26

	OpcodeRefNull    Opcode = 0xD0
	OpcodeRefIsNull  Opcode = 0xD1
	OpcodeRefFunc    Opcode = 0xD2
	OpcodeRefAsNonNull Opcode = 0xD3
	OpcodeRefEq      Opcode = 0xD4

	// Memory loads/stores.
	OpcodeI32Load    Opcode = 0x28
	OpcodeI64Load    Opcode = 0x29
	OpcodeF32Load    Opcode = 0x2A
	OpcodeF64Load    Opcode = 0x2B
	OpcodeI32Load8S  Opcode = 0x2C
	OpcodeI32Load8U  Opcode = 0x2D
	OpcodeI32Load16S Opcode = 0x2E
	OpcodeI32Load16U Opcode = 0x2F
	OpcodeI64Load8S  Opcode = 0x30
	OpcodeI64Load8U  Opcode = 0x31
	OpcodeI64Load16S Opcode = 0x32
	OpcodeI64Load16U Opcode = 0x33
	OpcodeI64Load32S Opcode = 0x34
	OpcodeI64Load32U Opcode = 0x35
	OpcodeI32Store   Opcode = 0x36
	OpcodeI64Store   Opcode = 0x37
	OpcodeF32Store   Opcode = 0x38
	OpcodeF64Store   Opcode = 0x39
	OpcodeI32Store8  Opcode = 0x3A
	OpcodeI32Store16 Opcode = 0x3B
	OpcodeI64Store8  Opcode = 0x3C
	OpcodeI64Store16 Opcode = 0x3D
	OpcodeI64Store32 Opcode = 0x3E
	OpcodeMemorySize Opcode = 0x3F
	OpcodeMemoryGrow Opcode = 0x40

	OpcodeI32Const Opcode = 0x41
	OpcodeI64Const Opcode = 0x42
	OpcodeF32Const Opcode = 0x43
	OpcodeF64Const Opcode = 0x44
)

// Comparison, arithmetic, conversion opcodes (0x45-0xC4) follow the spec's
// dense, contiguous byte assignment; they are all "fixed signature"
// and described declaratively in opcode_table.go rather than named one by
// one here. A representative subset used directly by hand-written
// validation logic (e.g. instructions with special-cased immediates) is
// named explicitly above; the rest is looked up by raw byte value.

// Multi-byte (prefixed) opcodes: identified by (prefix, sub-opcode) and
// built via prefixedOpcode. Representative/implemented subset:
var (
	OpcodeMemoryInit  = prefixedOpcode(PrefixMisc, 8)
	OpcodeDataDrop    = prefixedOpcode(PrefixMisc, 9)
	OpcodeMemoryCopy  = prefixedOpcode(PrefixMisc, 10)
	OpcodeMemoryFill  = prefixedOpcode(PrefixMisc, 11)
	OpcodeTableInit   = prefixedOpcode(PrefixMisc, 12)
	OpcodeElemDrop    = prefixedOpcode(PrefixMisc, 13)
	OpcodeTableCopy   = prefixedOpcode(PrefixMisc, 14)
	OpcodeTableGrow   = prefixedOpcode(PrefixMisc, 15)
	OpcodeTableSize   = prefixedOpcode(PrefixMisc, 16)
	OpcodeTableFill   = prefixedOpcode(PrefixMisc, 17)

	OpcodeI32TruncSatF32S = prefixedOpcode(PrefixMisc, 0)
	OpcodeI32TruncSatF32U = prefixedOpcode(PrefixMisc, 1)
	OpcodeI32TruncSatF64S = prefixedOpcode(PrefixMisc, 2)
	OpcodeI32TruncSatF64U = prefixedOpcode(PrefixMisc, 3)
	OpcodeI64TruncSatF32S = prefixedOpcode(PrefixMisc, 4)
	OpcodeI64TruncSatF32U = prefixedOpcode(PrefixMisc, 5)
	OpcodeI64TruncSatF64S = prefixedOpcode(PrefixMisc, 6)
	OpcodeI64TruncSatF64U = prefixedOpcode(PrefixMisc, 7)

	// GC proposal instructions. This module's binary format has only three
	// prefix bytes (misc/simd/atomic), so the
	// GC family is folded into the misc (0xFC) space continuing after the
	// bulk-memory/table sub-opcodes above rather than a dedicated prefix.
	OpcodeStructNew        = prefixedOpcode(PrefixMisc, 18)
	OpcodeStructNewDefault = prefixedOpcode(PrefixMisc, 19)
	OpcodeStructGet        = prefixedOpcode(PrefixMisc, 20)
	OpcodeStructGetS       = prefixedOpcode(PrefixMisc, 21)
	OpcodeStructGetU       = prefixedOpcode(PrefixMisc, 22)
	OpcodeStructSet        = prefixedOpcode(PrefixMisc, 23)
	OpcodeArrayNew         = prefixedOpcode(PrefixMisc, 24)
	OpcodeArrayNewDefault  = prefixedOpcode(PrefixMisc, 25)
	OpcodeArrayGet         = prefixedOpcode(PrefixMisc, 26)
	OpcodeArrayGetS        = prefixedOpcode(PrefixMisc, 27)
	OpcodeArrayGetU        = prefixedOpcode(PrefixMisc, 28)
	OpcodeArraySet         = prefixedOpcode(PrefixMisc, 29)
	OpcodeArrayLen         = prefixedOpcode(PrefixMisc, 30)
	OpcodeI31New           = prefixedOpcode(PrefixMisc, 31)
	OpcodeI31GetS          = prefixedOpcode(PrefixMisc, 32)
	OpcodeI31GetU          = prefixedOpcode(PrefixMisc, 33)
	OpcodeRefTest          = prefixedOpcode(PrefixMisc, 34)
	OpcodeRefCast          = prefixedOpcode(PrefixMisc, 35)
	OpcodeBrOnCast         = prefixedOpcode(PrefixMisc, 36)
	OpcodeRttCanon         = prefixedOpcode(PrefixMisc, 37)
	OpcodeRttSub           = prefixedOpcode(PrefixMisc, 38)

	// SIMD proposal instructions (prefix 0xFD). Only the opcodes whose
	// validation needs an immediate are named here; the large family of
	// fixed-signature v128 arithmetic/comparison/bitwise/splat ops is
	// registered declaratively in opcode_table.go instead.
	OpcodeV128Load        = prefixedOpcode(PrefixSIMD, 0x00)
	OpcodeV128Load8x8S    = prefixedOpcode(PrefixSIMD, 0x01)
	OpcodeV128Load8x8U    = prefixedOpcode(PrefixSIMD, 0x02)
	OpcodeV128Load16x4S   = prefixedOpcode(PrefixSIMD, 0x03)
	OpcodeV128Load16x4U   = prefixedOpcode(PrefixSIMD, 0x04)
	OpcodeV128Load32x2S   = prefixedOpcode(PrefixSIMD, 0x05)
	OpcodeV128Load32x2U   = prefixedOpcode(PrefixSIMD, 0x06)
	OpcodeV128Load8Splat  = prefixedOpcode(PrefixSIMD, 0x07)
	OpcodeV128Load16Splat = prefixedOpcode(PrefixSIMD, 0x08)
	OpcodeV128Load32Splat = prefixedOpcode(PrefixSIMD, 0x09)
	OpcodeV128Load64Splat = prefixedOpcode(PrefixSIMD, 0x0A)
	OpcodeV128Store       = prefixedOpcode(PrefixSIMD, 0x0B)
	OpcodeV128Const       = prefixedOpcode(PrefixSIMD, 0x0C)
	OpcodeI8x16Shuffle    = prefixedOpcode(PrefixSIMD, 0x0D)

	OpcodeI8x16ExtractLaneS = prefixedOpcode(PrefixSIMD, 0x0E)
	OpcodeI8x16ExtractLaneU = prefixedOpcode(PrefixSIMD, 0x0F)
	OpcodeI8x16ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x10)
	OpcodeI16x8ExtractLaneS = prefixedOpcode(PrefixSIMD, 0x11)
	OpcodeI16x8ExtractLaneU = prefixedOpcode(PrefixSIMD, 0x12)
	OpcodeI16x8ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x13)
	OpcodeI32x4ExtractLane  = prefixedOpcode(PrefixSIMD, 0x14)
	OpcodeI32x4ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x15)
	OpcodeI64x2ExtractLane  = prefixedOpcode(PrefixSIMD, 0x16)
	OpcodeI64x2ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x17)
	OpcodeF32x4ExtractLane  = prefixedOpcode(PrefixSIMD, 0x18)
	OpcodeF32x4ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x19)
	OpcodeF64x2ExtractLane  = prefixedOpcode(PrefixSIMD, 0x1A)
	OpcodeF64x2ReplaceLane  = prefixedOpcode(PrefixSIMD, 0x1B)

	OpcodeV128Load8Lane  = prefixedOpcode(PrefixSIMD, 0x1C)
	OpcodeV128Load16Lane = prefixedOpcode(PrefixSIMD, 0x1D)
	OpcodeV128Load32Lane = prefixedOpcode(PrefixSIMD, 0x1E)
	OpcodeV128Load64Lane = prefixedOpcode(PrefixSIMD, 0x1F)
	OpcodeV128Store8Lane  = prefixedOpcode(PrefixSIMD, 0x20)
	OpcodeV128Store16Lane = prefixedOpcode(PrefixSIMD, 0x21)
	OpcodeV128Store32Lane = prefixedOpcode(PrefixSIMD, 0x22)
	OpcodeV128Store64Lane = prefixedOpcode(PrefixSIMD, 0x23)

	// Atomic proposal instructions (prefix 0xFE). Notify/wait/fence are
	// the only atomic ops outside the regular load/store/rmw grid built
	// in atomic_ops.go's atomicMemOps table.
	OpcodeAtomicNotify = prefixedOpcode(PrefixAtomic, 0x00)
	OpcodeAtomicWait32 = prefixedOpcode(PrefixAtomic, 0x01)
	OpcodeAtomicWait64 = prefixedOpcode(PrefixAtomic, 0x02)
	OpcodeAtomicFence  = prefixedOpcode(PrefixAtomic, 0x03)
)

// ImmediateKind discriminates the Instruction.Immediate union.
type ImmediateKind byte

const (
	ImmNone ImmediateKind = iota
	ImmBlockType
	ImmIndex
	ImmIndexPair  // call_indirect: (type, table); memory.init/table.init etc: (segment, table/mem)
	ImmBrTable
	ImmSelectT
	ImmMemArg
	ImmI32
	ImmI64
	ImmF32
	ImmF64
	ImmV128
	ImmCopy // memory.copy/table.copy: (dst, src)
	ImmSIMDLane
	ImmSIMDShuffle
	ImmMemArgLane // SIMD load_lane/store_lane: mem arg + lane index
	ImmStructField // (type index, field index)
	ImmHeapType
	ImmLet
	ImmRtt
	ImmBrOnCast  // br_on_cast: (label, heap-type)
	ImmBrOnExn   // br_on_exn: (label, event)
)

// BlockTypeKind discriminates BlockType.
type BlockTypeKind byte

const (
	BlockTypeVoid BlockTypeKind = iota
	BlockTypeValue
	BlockTypeIndex
)

// BlockType is a control instruction's type annotation.
type BlockType struct {
	Kind    BlockTypeKind
	Value   ValueVariant
	TypeIdx Index
}

// MemArg is a memory instruction's (alignment exponent, offset) immediate.
type MemArg struct {
	Align  uint32 // log2 of the claimed alignment
	Offset uint32
	MemoryIndex Index // 0 unless multi-memory
}

// Immediate holds whichever payload Kind selects; unused fields are zero.
type Immediate struct {
	Kind ImmediateKind

	Block     BlockType
	Index     Index
	IndexPair [2]Index
	BrTable   struct {
		Targets []Index
		Default Index
	}
	SelectTypes []ValueVariant
	MemArg      MemArg
	I32         int32
	I64         int64
	F32         uint32 // raw IEEE-754 bits
	F64         uint64
	V128        [16]byte
	Copy        [2]Index
	Lane        byte
	Shuffle     [16]byte
	StructField [2]Index
	Heap        HeapType
	Rtt         struct {
		Depth uint32
		Heap  HeapType
	}
	BrOnCast struct {
		Label Index
		Heap  HeapType
	}
	BrOnExn struct {
		Label Index
		Event Index
	}
	Locals []LocalGroup // `let`'s bound locals; Block above carries its block type
}

// Instruction is (opcode, immediate), with its source location.
type Instruction struct {
	Opcode    Opcode
	Immediate Immediate
	Location  Location
}
