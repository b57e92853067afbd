package wasm

// OpcodeSignature is the fixed (params, results) typing rule for an
// opcode whose validation needs no immediate-dependent logic (the vast
// majority of opcodes). Opcodes whose typing depends on their
// immediate (locals, globals, calls, memory ops, control flow, ...) are
// validated by bespoke handlers instead and are not present here.
type OpcodeSignature struct {
	Name    string
	Params  []ValueType
	Results []ValueType
	Feature Features // 0 if unconditionally available
}

var opcodeSignatures = map[Opcode]OpcodeSignature{}

func sig(op Opcode, name string, params, results []ValueType, feature Features) {
	opcodeSignatures[op] = OpcodeSignature{Name: name, Params: params, Results: results, Feature: feature}
}

var (
	i32 = ValueTypeI32
	i64 = ValueTypeI64
	f32 = ValueTypeF32
	f64 = ValueTypeF64
)

func p1(a ValueType) []ValueType             { return []ValueType{a} }
func p2(a, b ValueType) []ValueType          { return []ValueType{a, b} }

func init() {
	// i32 comparisons.
	sig(0x45, "i32.eqz", p1(i32), p1(i32), 0)
	names32cmp := []string{"eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u"}
	for i, n := range names32cmp {
		sig(Opcode(0x46+i), "i32."+n, p2(i32, i32), p1(i32), 0)
	}
	sig(0x50, "i64.eqz", p1(i64), p1(i32), 0)
	for i, n := range names32cmp {
		sig(Opcode(0x51+i), "i64."+n, p2(i64, i64), p1(i32), 0)
	}
	namesFcmp := []string{"eq", "ne", "lt", "gt", "le", "ge"}
	for i, n := range namesFcmp {
		sig(Opcode(0x5b+i), "f32."+n, p2(f32, f32), p1(i32), 0)
	}
	for i, n := range namesFcmp {
		sig(Opcode(0x61+i), "f64."+n, p2(f64, f64), p1(i32), 0)
	}

	// i32 unary/binary arithmetic.
	sig(0x67, "i32.clz", p1(i32), p1(i32), 0)
	sig(0x68, "i32.ctz", p1(i32), p1(i32), 0)
	sig(0x69, "i32.popcnt", p1(i32), p1(i32), 0)
	names32bin := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u", "and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	for i, n := range names32bin {
		sig(Opcode(0x6a+i), "i32."+n, p2(i32, i32), p1(i32), 0)
	}
	sig(0x79, "i64.clz", p1(i64), p1(i64), 0)
	sig(0x7a, "i64.ctz", p1(i64), p1(i64), 0)
	sig(0x7b, "i64.popcnt", p1(i64), p1(i64), 0)
	names64bin := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u", "and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	for i, n := range names64bin {
		sig(Opcode(0x7c+i), "i64."+n, p2(i64, i64), p1(i64), 0)
	}

	namesFUnary := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt"}
	for i, n := range namesFUnary {
		sig(Opcode(0x8b+i), "f32."+n, p1(f32), p1(f32), 0)
	}
	namesFBin := []string{"add", "sub", "mul", "div", "min", "max", "copysign"}
	for i, n := range namesFBin {
		sig(Opcode(0x92+i), "f32."+n, p2(f32, f32), p1(f32), 0)
	}
	for i, n := range namesFUnary {
		sig(Opcode(0x99+i), "f64."+n, p1(f64), p1(f64), 0)
	}
	for i, n := range namesFBin {
		sig(Opcode(0xa0+i), "f64."+n, p2(f64, f64), p1(f64), 0)
	}

	// Conversions.
	sig(0xa7, "i32.wrap_i64", p1(i64), p1(i32), 0)
	sig(0xa8, "i32.trunc_f32_s", p1(f32), p1(i32), 0)
	sig(0xa9, "i32.trunc_f32_u", p1(f32), p1(i32), 0)
	sig(0xaa, "i32.trunc_f64_s", p1(f64), p1(i32), 0)
	sig(0xab, "i32.trunc_f64_u", p1(f64), p1(i32), 0)
	sig(0xac, "i64.extend_i32_s", p1(i32), p1(i64), 0)
	sig(0xad, "i64.extend_i32_u", p1(i32), p1(i64), 0)
	sig(0xae, "i64.trunc_f32_s", p1(f32), p1(i64), 0)
	sig(0xaf, "i64.trunc_f32_u", p1(f32), p1(i64), 0)
	sig(0xb0, "i64.trunc_f64_s", p1(f64), p1(i64), 0)
	sig(0xb1, "i64.trunc_f64_u", p1(f64), p1(i64), 0)
	sig(0xb2, "f32.convert_i32_s", p1(i32), p1(f32), 0)
	sig(0xb3, "f32.convert_i32_u", p1(i32), p1(f32), 0)
	sig(0xb4, "f32.convert_i64_s", p1(i64), p1(f32), 0)
	sig(0xb5, "f32.convert_i64_u", p1(i64), p1(f32), 0)
	sig(0xb6, "f32.demote_f64", p1(f64), p1(f32), 0)
	sig(0xb7, "f64.convert_i32_s", p1(i32), p1(f64), 0)
	sig(0xb8, "f64.convert_i32_u", p1(i32), p1(f64), 0)
	sig(0xb9, "f64.convert_i64_s", p1(i64), p1(f64), 0)
	sig(0xba, "f64.convert_i64_u", p1(i64), p1(f64), 0)
	sig(0xbb, "f64.promote_f32", p1(f32), p1(f64), 0)
	sig(0xbc, "i32.reinterpret_f32", p1(f32), p1(i32), 0)
	sig(0xbd, "i64.reinterpret_f64", p1(f64), p1(i64), 0)
	sig(0xbe, "f32.reinterpret_i32", p1(i32), p1(f32), 0)
	sig(0xbf, "f64.reinterpret_i64", p1(i64), p1(f64), 0)

	// Sign-extension proposal.
	sig(0xc0, "i32.extend8_s", p1(i32), p1(i32), FeatureSignExtensionOps)
	sig(0xc1, "i32.extend16_s", p1(i32), p1(i32), FeatureSignExtensionOps)
	sig(0xc2, "i64.extend8_s", p1(i64), p1(i64), FeatureSignExtensionOps)
	sig(0xc3, "i64.extend16_s", p1(i64), p1(i64), FeatureSignExtensionOps)
	sig(0xc4, "i64.extend32_s", p1(i64), p1(i64), FeatureSignExtensionOps)

	// Saturating float-to-int conversions (misc prefix 0xFC, sub-opcodes 0-7).
	sig(OpcodeI32TruncSatF32S, "i32.trunc_sat_f32_s", p1(f32), p1(i32), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI32TruncSatF32U, "i32.trunc_sat_f32_u", p1(f32), p1(i32), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI32TruncSatF64S, "i32.trunc_sat_f64_s", p1(f64), p1(i32), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI32TruncSatF64U, "i32.trunc_sat_f64_u", p1(f64), p1(i32), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI64TruncSatF32S, "i64.trunc_sat_f32_s", p1(f32), p1(i64), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI64TruncSatF32U, "i64.trunc_sat_f32_u", p1(f32), p1(i64), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI64TruncSatF64S, "i64.trunc_sat_f64_s", p1(f64), p1(i64), FeatureNonTrappingFloatToIntConversion)
	sig(OpcodeI64TruncSatF64U, "i64.trunc_sat_f64_u", p1(f64), p1(i64), FeatureNonTrappingFloatToIntConversion)

	registerSIMDSignatures()
}

var v128 = ValueTypeV128

// registerSIMDSignatures declares the SIMD (0xFD) sub-opcodes whose typing
// needs no immediate: splats (scalar -> v128), arithmetic/comparison/
// bitwise v128 ops, and the any_true/all_true/bitmask reductions. The
// lane/memarg/shuffle/const sub-opcodes are handled by
// readSIMDInstruction/validate_func.go instead, since their typing or
// decoding depends on the immediate.
func registerSIMDSignatures() {
	// Sub-opcodes 0x00-0x23 are taken by the memarg/const/shuffle/lane
	// immediate-bearing ops decoded in wasm/binary (readSIMDInstruction);
	// the fixed-signature family below starts right after.
	next := uint32(0x24)
	simd := func(name string, params, results []ValueType) {
		sig(prefixedOpcode(PrefixSIMD, next), name, params, results, FeatureSIMD)
		next++
	}

	// Splats: one scalar operand, no immediate.
	simd("i8x16.splat", p1(i32), p1(v128))
	simd("i16x8.splat", p1(i32), p1(v128))
	simd("i32x4.splat", p1(i32), p1(v128))
	simd("i64x2.splat", p1(i64), p1(v128))
	simd("f32x4.splat", p1(f32), p1(v128))
	simd("f64x2.splat", p1(f64), p1(v128))

	// Bitwise and boolean ops shared across lane shapes.
	simd("v128.not", p1(v128), p1(v128))
	simd("v128.and", p2(v128, v128), p1(v128))
	simd("v128.andnot", p2(v128, v128), p1(v128))
	simd("v128.or", p2(v128, v128), p1(v128))
	simd("v128.xor", p2(v128, v128), p1(v128))
	sig(prefixedOpcode(PrefixSIMD, next), "v128.bitselect", []ValueType{v128, v128, v128}, p1(v128), FeatureSIMD)
	next++
	simd("v128.any_true", p1(v128), p1(i32))

	shapes := []string{"i8x16", "i16x8", "i32x4", "i64x2", "f32x4", "f64x2"}
	for _, shape := range shapes {
		simd(shape+".eq", p2(v128, v128), p1(v128))
		simd(shape+".ne", p2(v128, v128), p1(v128))
		simd(shape+".add", p2(v128, v128), p1(v128))
		simd(shape+".sub", p2(v128, v128), p1(v128))
		simd(shape+".neg", p1(v128), p1(v128))
		simd(shape+".all_true", p1(v128), p1(i32))
		simd(shape+".bitmask", p1(v128), p1(i32))
	}
}

// LookupOpcodeSignature returns the fixed signature for op, if any.
func LookupOpcodeSignature(op Opcode) (OpcodeSignature, bool) {
	s, ok := opcodeSignatures[op]
	return s, ok
}
