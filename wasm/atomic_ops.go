package wasm

// AtomicMemInfo describes one atomic memory instruction: the value type it
// produces/consumes and its natural access width in bytes, mirroring the
// regular grid the threads proposal lays the opcode space out in (plain
// i32/i64 width, plus the narrowed 8/16/32-bit accesses for each).
type AtomicMemInfo struct {
	Name    string
	Type    ValueType
	Width   uint32
	RMW     string // "" for load/store, else "add"/"sub"/"and"/"or"/"xor"/"xchg"/"cmpxchg"
	IsStore bool
}

var atomicMemOps = map[Opcode]AtomicMemInfo{}

// atomicVariant is one of the seven (type, width) combinations the
// load/store/rmw grid is built over: full-width i32/i64, plus i32 and i64
// narrowed to 8 and 16 bits (i64 additionally narrows to 32).
type atomicVariant struct {
	suffix string
	typ    ValueType
	width  uint32
}

var atomicVariants = []atomicVariant{
	{"32", ValueTypeI32, 4},
	{"64", ValueTypeI64, 8},
	{"32_8u", ValueTypeI32, 1},
	{"32_16u", ValueTypeI32, 2},
	{"64_8u", ValueTypeI64, 1},
	{"64_16u", ValueTypeI64, 2},
	{"64_32u", ValueTypeI64, 4},
}

func init() {
	loadSub := uint32(0x10)
	for _, v := range atomicVariants {
		atomicMemOps[prefixedOpcode(PrefixAtomic, loadSub)] = AtomicMemInfo{
			Name: "i" + v.suffix + ".atomic.load", Type: v.typ, Width: v.width,
		}
		loadSub++
	}
	storeSub := uint32(0x17)
	for _, v := range atomicVariants {
		atomicMemOps[prefixedOpcode(PrefixAtomic, storeSub)] = AtomicMemInfo{
			Name: "i" + v.suffix + ".atomic.store", Type: v.typ, Width: v.width, IsStore: true,
		}
		storeSub++
	}

	rmwOps := []string{"add", "sub", "and", "or", "xor", "xchg"}
	sub := uint32(0x1E)
	for _, op := range rmwOps {
		for _, v := range atomicVariants {
			atomicMemOps[prefixedOpcode(PrefixAtomic, sub)] = AtomicMemInfo{
				Name: "i" + v.suffix + ".atomic.rmw." + op, Type: v.typ, Width: v.width, RMW: op,
			}
			sub++
		}
	}
	for _, v := range atomicVariants {
		atomicMemOps[prefixedOpcode(PrefixAtomic, sub)] = AtomicMemInfo{
			Name: "i" + v.suffix + ".atomic.rmw.cmpxchg", Type: v.typ, Width: v.width, RMW: "cmpxchg",
		}
		sub++
	}
}

// LookupAtomicMemOp returns the load/store/read-modify-write info for an
// atomic memory opcode, if op is one of the systematic grid entries (as
// opposed to notify/wait/fence, which are named opcodes instead).
func LookupAtomicMemOp(op Opcode) (AtomicMemInfo, bool) {
	info, ok := atomicMemOps[op]
	return info, ok
}
