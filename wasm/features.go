package wasm

// Features is a bitset of optional Wasm proposals, independently togglable.
// Every decoding or validation rule gated on a proposal consults this set.
type Features uint64

const (
	FeatureMutableGlobal Features = 1 << iota
	FeatureSignExtensionOps
	FeatureMultiValue
	FeatureNonTrappingFloatToIntConversion
	FeatureBulkMemoryOperations
	FeatureReferenceTypes
	FeatureSIMD
	FeatureThreads
	FeatureExceptionHandling
	FeatureTailCall
	FeatureFunctionReferences
	FeatureGC
	FeatureAnnotations
)

// featureNames lists every named feature in declaration order, used by
// String.
var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureMutableGlobal, "mutable-global"},
	{FeatureSignExtensionOps, "sign-extension-ops"},
	{FeatureMultiValue, "multi-value"},
	{FeatureNonTrappingFloatToIntConversion, "nontrapping-float-to-int-conversion"},
	{FeatureBulkMemoryOperations, "bulk-memory-operations"},
	{FeatureReferenceTypes, "reference-types"},
	{FeatureSIMD, "simd"},
	{FeatureThreads, "threads"},
	{FeatureExceptionHandling, "exception-handling"},
	{FeatureTailCall, "tail-call"},
	{FeatureFunctionReferences, "function-references"},
	{FeatureGC, "gc"},
	{FeatureAnnotations, "annotations"},
}

// Features20220419 is the proposal set that had reached Phase 4 (standard)
// as of the WebAssembly 2.0 working draft.
const Features20220419 = FeatureMutableGlobal | FeatureSignExtensionOps | FeatureMultiValue |
	FeatureNonTrappingFloatToIntConversion | FeatureBulkMemoryOperations | FeatureReferenceTypes | FeatureSIMD

// Get returns true if every bit set in f is also set in the receiver.
func (fs Features) Get(f Features) bool {
	return fs&f == f
}

// Set returns a copy of the receiver with f set to on.
func (fs Features) Set(f Features, on bool) Features {
	if on {
		return fs | f
	}
	return fs &^ f
}

// Require returns an error naming f's feature if it is disabled.
func (fs Features) Require(f Features) error {
	if fs.Get(f) {
		return nil
	}
	for _, n := range featureNames {
		if n.f == f {
			return &FeatureDisabledError{Feature: n.name}
		}
	}
	return &FeatureDisabledError{Feature: "unknown"}
}

// String renders the set features, sorted by declaration order and joined
// with "|"; an empty set renders as "".
func (fs Features) String() string {
	var out string
	for _, n := range featureNames {
		if fs.Get(n.f) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// FeatureOption configures a Features set built with NewFeatures.
type FeatureOption func(Features) Features

// NewFeatures builds a Features bitset from zero or more options.
func NewFeatures(opts ...FeatureOption) Features {
	var fs Features
	for _, opt := range opts {
		fs = opt(fs)
	}
	return fs
}

// WithFeature toggles a single named feature on or off.
func WithFeature(f Features, on bool) FeatureOption {
	return func(fs Features) Features {
		return fs.Set(f, on)
	}
}
