package wasm

// Ctx is the validation context threaded through IsSame/IsMatch; it carries
// the module's defined types (needed to expand type-index heap types) and
// a coinductive memo table for recursive type equivalence.
type Ctx struct {
	Features Features
	Types    []DefinedType

	// assumed records in-flight IsSame(i, j) comparisons: while computing
	// whether types i and j are equal, we assume they are, so a
	// self-referential or mutually-recursive unfolding terminates instead
	// of looping forever.
	assumed map[[2]Index]bool
}

func NewCtx(features Features, types []DefinedType) *Ctx {
	return &Ctx{Features: features, Types: types}
}

// IsSameTypeIndex decides structural equivalence of two defined-type
// indices using a coinductive assumption cache: on entry it assumes the
// answer is "equal", recursively compares the unfolded definitions, and
// that assumption is never falsified by a cyclic reference back to the
// same pair.
func (c *Ctx) IsSameTypeIndex(i, j Index) bool {
	if i == j {
		return true
	}
	key := [2]Index{i, j}
	if c.assumed == nil {
		c.assumed = map[[2]Index]bool{}
	}
	if v, ok := c.assumed[key]; ok {
		return v
	}
	c.assumed[key] = true
	if int(i) >= len(c.Types) || int(j) >= len(c.Types) {
		c.assumed[key] = false
		return false
	}
	result := c.isSameDefinedType(c.Types[i], c.Types[j])
	c.assumed[key] = result
	return result
}

func (c *Ctx) isSameDefinedType(a, b DefinedType) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case DefinedTypeFunction:
		return c.IsSameFunctionType(a.Function, b.Function)
	case DefinedTypeStruct:
		return c.isSameFieldList(a.Struct.Fields, b.Struct.Fields)
	case DefinedTypeArray:
		return c.IsSameFieldType(a.Array.Field, b.Array.Field)
	}
	return false
}

func (c *Ctx) IsSameFunctionType(a, b FunctionType) bool {
	return c.isSameValueList(a.Params, b.Params) && c.isSameValueList(a.Results, b.Results)
}

func (c *Ctx) isSameFieldList(a, b []FieldType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.IsSameFieldType(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (c *Ctx) IsSameFieldType(a, b FieldType) bool {
	return a.Mutable == b.Mutable && c.isSameStorageType(a.Storage, b.Storage)
}

func (c *Ctx) isSameStorageType(a, b StorageType) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == StorageTypePacked {
		return a.Packed == b.Packed
	}
	return c.IsSameValue(a.Value, b.Value)
}

func (c *Ctx) isSameValueList(a, b []ValueVariant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.IsSameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (c *Ctx) IsSameValue(a, b ValueVariant) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValueVariantNumeric:
		return a.Numeric == b.Numeric
	case ValueVariantReference:
		return c.IsSameReference(a.Reference, b.Reference)
	case ValueVariantRtt:
		return a.Rtt.Depth == b.Rtt.Depth && c.IsSameHeap(a.Rtt.Heap, b.Rtt.Heap)
	}
	return false
}

func (c *Ctx) IsSameReference(a, b ReferenceType) bool {
	return a.Nullable == b.Nullable && c.IsSameHeap(a.Heap, b.Heap)
}

func (c *Ctx) IsSameHeap(a, b HeapType) bool {
	if a.IsIndex != b.IsIndex {
		return false
	}
	if a.IsIndex {
		return c.IsSameTypeIndex(a.Index, b.Index)
	}
	return a.Kind == b.Kind
}

// --- IsMatch: the directional subtyping relation. ---

// IsMatchValue reports whether actual may be used where expected is
// required.
func (c *Ctx) IsMatchValue(expected, actual ValueVariant) bool {
	if expected.Kind != actual.Kind {
		return false
	}
	switch expected.Kind {
	case ValueVariantNumeric:
		return expected.Numeric == actual.Numeric
	case ValueVariantReference:
		return c.IsMatchReference(expected.Reference, actual.Reference)
	case ValueVariantRtt:
		// Rtt is invariant in depth and heap type.
		return expected.Rtt.Depth == actual.Rtt.Depth && c.IsSameHeap(expected.Rtt.Heap, actual.Rtt.Heap)
	}
	return false
}

// IsMatchReference: covariant in heap type, contravariant in nullability
// (a non-null ref matches a nullable expectation, never the reverse).
func (c *Ctx) IsMatchReference(expected, actual ReferenceType) bool {
	if actual.Nullable && !expected.Nullable {
		return false
	}
	return c.IsMatchHeap(expected.Heap, actual.Heap)
}

// IsMatchHeap implements the GC heap-type hierarchy when the GC proposal
// is enabled (any >= eq >= i31, any >= func-index, index >= index iff
// structural function/struct/array subtyping holds); otherwise heap types
// must be identical.
func (c *Ctx) IsMatchHeap(expected, actual HeapType) bool {
	if c.IsSameHeap(expected, actual) {
		return true
	}
	if !c.Features.Get(FeatureGC) {
		return false
	}
	if !expected.IsIndex && expected.Kind == HeapTypeKindAny {
		return true
	}
	if !expected.IsIndex && expected.Kind == HeapTypeKindEq {
		if !actual.IsIndex && actual.Kind == HeapTypeKindI31 {
			return true
		}
		if actual.IsIndex && int(actual.Index) < len(c.Types) {
			// struct/array types are sub-eq; function types are not
			k := c.Types[actual.Index].Kind
			return k == DefinedTypeStruct || k == DefinedTypeArray
		}
	}
	if expected.IsIndex && actual.IsIndex {
		return c.isMatchTypeIndex(expected.Index, actual.Index)
	}
	return false
}

func (c *Ctx) isMatchTypeIndex(expected, actual Index) bool {
	if expected == actual {
		return true
	}
	if int(expected) >= len(c.Types) || int(actual) >= len(c.Types) {
		return false
	}
	e, a := c.Types[expected], c.Types[actual]
	if e.Kind != a.Kind {
		return false
	}
	switch e.Kind {
	case DefinedTypeFunction:
		return c.isMatchFunctionType(e.Function, a.Function)
	case DefinedTypeStruct:
		// Width+depth struct subtyping: actual must have at least as many
		// fields, and each corresponding field must match (invariant
		// storage, mutable fields invariant, immutable fields covariant).
		if len(a.Struct.Fields) < len(e.Struct.Fields) {
			return false
		}
		for i := range e.Struct.Fields {
			if !c.isMatchFieldType(e.Struct.Fields[i], a.Struct.Fields[i]) {
				return false
			}
		}
		return true
	case DefinedTypeArray:
		return c.isMatchFieldType(e.Array.Field, a.Array.Field)
	}
	return false
}

func (c *Ctx) isMatchFieldType(expected, actual FieldType) bool {
	if expected.Mutable != actual.Mutable {
		return false
	}
	if expected.Mutable {
		return c.isSameStorageType(expected.Storage, actual.Storage)
	}
	return c.isMatchStorageType(expected.Storage, actual.Storage)
}

func (c *Ctx) isMatchStorageType(expected, actual StorageType) bool {
	if expected.Kind != actual.Kind {
		return false
	}
	if expected.Kind == StorageTypePacked {
		return expected.Packed == actual.Packed
	}
	return c.IsMatchValue(expected.Value, actual.Value)
}

// isMatchFunctionType: contravariant in params, covariant in results.
func (c *Ctx) isMatchFunctionType(expected, actual FunctionType) bool {
	if len(expected.Params) != len(actual.Params) || len(expected.Results) != len(actual.Results) {
		return false
	}
	for i := range expected.Params {
		if !c.IsMatchValue(actual.Params[i], expected.Params[i]) {
			return false
		}
	}
	for i := range expected.Results {
		if !c.IsMatchValue(expected.Results[i], actual.Results[i]) {
			return false
		}
	}
	return true
}

// IsMatchValueList compares two value-type sequences element-wise.
func (c *Ctx) IsMatchValueList(expected, actual []ValueVariant) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !c.IsMatchValue(expected[i], actual[i]) {
			return false
		}
	}
	return true
}
