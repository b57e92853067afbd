package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmforge/wasmcore/wasm"
)

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func TestDecodeModule_EmptyModule(t *testing.T) {
	m, err := DecodeModule(header(), 0)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestDecodeModule_InvalidMagic(t *testing.T) {
	data := append([]byte{0xde, 0xad, 0xbe, 0xef}, header()[4:]...)
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDecodeModule_InvalidVersion(t *testing.T) {
	data := append(append([]byte{}, header()[:4]...), 0x02, 0x00, 0x00, 0x00)
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid version header")
}

func TestDecodeModule_AtMostOneTable(t *testing.T) {
	data := append(append([]byte{}, header()...), 4, 7, 2, 0x70, 0x00, 0x00, 0x70, 0x00, 0x00) // table section, count=2
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "at most one table allowed")
}

func TestDecodeModule_AtMostOneMemory(t *testing.T) {
	data := append(append([]byte{}, header()...), 5, 5, 2, 0x00, 0x00, 0x00, 0x00) // memory section, count=2
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "at most one memory allowed")
}

func TestDecodeModule_DuplicateExportName(t *testing.T) {
	payload := []byte{2, 1, 'a', 0, 0, 1, 'a', 0, 0}
	data := append(append([]byte{}, header()...), 7, byte(len(payload)))
	data = append(data, payload...)
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicates name")
}

func TestDecodeModule_SectionsOutOfOrder(t *testing.T) {
	data := append(append([]byte{}, header()...), 3, 1, 0) // function section
	data = append(data, 1, 1, 0)                           // type section, out of order
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order")
}

func TestDecodeModule_DataCountBeforeElementIsOutOfOrder(t *testing.T) {
	data := append(append([]byte{}, header()...), 12, 1, 0) // data count section first
	data = append(data, 9, 1, 0)                            // element section after it
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order")
}

func TestDecodeModule_DataCountBetweenElementAndCodeIsAllowed(t *testing.T) {
	data := append(append([]byte{}, header()...),
		9, 1, 0, // element section, count=0
		12, 1, 0, // data count section
		10, 1, 0, // code section, count=0
	)
	m, err := DecodeModule(data, 0)
	require.NoError(t, err)
	require.NotNil(t, m.DataCountSection)
	require.Equal(t, uint32(0), *m.DataCountSection)
}

func TestDecodeModule_DuplicateSectionRejected(t *testing.T) {
	data := append(append([]byte{}, header()...), 1, 1, 0) // type section
	data = append(data, 1, 1, 0)                           // type section again
	_, err := DecodeModule(data, wasm.Features20220419)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate section")
}

func TestDecodeModule_TwoTablesAllowedWithReferenceTypes(t *testing.T) {
	// table section, count=2, each funcref with min 0 and no max
	payload := []byte{2, 0x70, 0x00, 0x00, 0x70, 0x00, 0x00}
	data := append(append([]byte{}, header()...), 4, byte(len(payload)))
	data = append(data, payload...)
	m, err := DecodeModule(data, wasm.NewFeatures(wasm.WithFeature(wasm.FeatureReferenceTypes, true)))
	require.NoError(t, err)
	require.Len(t, m.TableSection, 2)
}

func elementSection(payload ...byte) []byte {
	data := append([]byte{}, header()...)
	data = append(data, 9, byte(len(payload)))
	return append(data, payload...)
}

func TestDecodeModule_ElementSegmentFlags(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		mode    wasm.ElementMode
		table   wasm.Index
	}{
		{
			name: "flags 0: active, implicit table, func indices",
			// count=1, flags=0, offset i32.const 0 end, 1 func index 0
			payload: []byte{1, 0, 0x41, 0, 0x0b, 1, 0},
			mode:    wasm.ElementModeActive,
		},
		{
			name: "flags 1: passive, elemkind 0, func indices",
			payload: []byte{1, 1, 0x00, 1, 0},
			mode:    wasm.ElementModePassive,
		},
		{
			name: "flags 2: active with explicit table index",
			payload: []byte{1, 2, 0x01, 0x41, 0, 0x0b, 0x00, 1, 0},
			mode:    wasm.ElementModeActive,
			table:   1,
		},
		{
			name: "flags 3: declarative",
			payload: []byte{1, 3, 0x00, 1, 0},
			mode:    wasm.ElementModeDeclarative,
		},
		{
			name: "flags 4: active, element expressions, implicit funcref",
			// offset, then 1 expr: ref.null func end
			payload: []byte{1, 4, 0x41, 0, 0x0b, 1, 0xd0, 0x70, 0x0b},
			mode:    wasm.ElementModeActive,
		},
		{
			name: "flags 5: passive, explicit reftype, expressions",
			payload: []byte{1, 5, 0x70, 1, 0xd0, 0x70, 0x0b},
			mode:    wasm.ElementModePassive,
		},
		{
			name: "flags 6: active, explicit table, reftype, expressions",
			payload: []byte{1, 6, 0x01, 0x41, 0, 0x0b, 0x70, 1, 0xd0, 0x70, 0x0b},
			mode:    wasm.ElementModeActive,
			table:   1,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeModule(elementSection(tc.payload...), wasm.Features20220419)
			require.NoError(t, err)
			require.Len(t, m.ElementSection, 1)
			seg := m.ElementSection[0]
			require.Equal(t, tc.mode, seg.Mode)
			require.Equal(t, tc.table, seg.Table)
		})
	}
}

func TestDecodeModule_ElementSegmentInvalidFlags(t *testing.T) {
	_, err := DecodeModule(elementSection(1, 8), wasm.Features20220419)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid flags value")
}

func TestDecodeModule_ElementSegmentUnknownElemKind(t *testing.T) {
	_, err := DecodeModule(elementSection(1, 1, 0x05, 0), wasm.Features20220419)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Unknown element type")
}

func TestDecodeModule_GlobalWithIllegalInitExpr(t *testing.T) {
	// global section: 1 global, i32 immutable, init = i32.add (illegal)
	payload := []byte{1, 0x7f, 0x00, 0x6a, 0x0b}
	data := append(append([]byte{}, header()...), 6, byte(len(payload)))
	data = append(data, payload...)
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Illegal instruction in constant expression")
}

// TestDecodeModule_FiveSectionModule mirrors the canonical "one type, one
// import, one function, one export, one body" module: sections must arrive
// in id order 1,2,3,7,10 and every entry must decode.
func TestDecodeModule_FiveSectionModule(t *testing.T) {
	data := append([]byte{}, header()...)
	data = append(data, 1, 4, 1, 0x60, 0, 0)          // type: () -> ()
	data = append(data, 2, 11, 1, 3, 'f', 'o', 'o', 3, 'b', 'a', 'r', 0, 0) // import foo.bar func type 0
	data = append(data, 3, 2, 1, 0)                   // function: 1 func, type 0
	data = append(data, 7, 8, 1, 4, 'q', 'u', 'u', 'x', 0, 1) // export quux = func 1
	data = append(data, 10, 4, 1, 2, 0, 0x0b)         // code: body = end

	m, err := DecodeModule(data, 0)
	require.NoError(t, err)
	require.Len(t, m.TypeSection, 1)
	require.Len(t, m.ImportSection, 1)
	require.Equal(t, "foo", m.ImportSection[0].Module)
	require.Equal(t, "bar", m.ImportSection[0].Name)
	require.Len(t, m.FunctionSection, 1)
	require.Len(t, m.ExportSection, 1)
	require.Equal(t, "quux", m.ExportSection[0].Name)
	require.Len(t, m.CodeSection, 1)
}

func TestDecodeModule_LimitsInvalidFlags(t *testing.T) {
	payload := []byte{1, 0x04, 0x00} // memory with flags 0x04
	data := append(append([]byte{}, header()...), 5, byte(len(payload)))
	data = append(data, payload...)
	_, err := DecodeModule(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid flags value")
}
