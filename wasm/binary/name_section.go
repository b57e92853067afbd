package binary

import "github.com/wasmforge/wasmcore/wasm"

const (
	nameSubsectionModule = 0
	nameSubsectionFunc   = 1
	nameSubsectionLocal  = 2
)

// decodeNameSection decomposes the "name" custom section's payload into
// its module/func/local subsections. Unknown subsection ids are skipped,
// not errors, matching the binary format's general custom-section
// extensibility rule.
func decodeNameSection(data []byte) (*wasm.NameSection, error) {
	c := NewCursor(data)
	ns := &wasm.NameSection{FuncNames: wasm.NameMap{}, LocalNames: map[wasm.Index]wasm.NameMap{}}

	for !c.Done() {
		id, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		payload, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		sc := NewCursor(payload)
		sc.Errors = c.Errors
		switch id {
		case nameSubsectionModule:
			name, err := sc.ReadString()
			if err != nil {
				return nil, err
			}
			ns.ModuleName = name
			ns.HasModule = true
		case nameSubsectionFunc:
			m, err := readNameMap(sc)
			if err != nil {
				return nil, err
			}
			ns.FuncNames = m
		case nameSubsectionLocal:
			n, err := sc.ReadCount()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				funcIdx, err := sc.ReadU32()
				if err != nil {
					return nil, err
				}
				m, err := readNameMap(sc)
				if err != nil {
					return nil, err
				}
				ns.LocalNames[wasm.Index(funcIdx)] = m
			}
		default:
			// Unknown subsection id: skip its payload entirely.
		}
	}
	return ns, nil
}

func readNameMap(c *Cursor) (wasm.NameMap, error) {
	n, err := c.ReadCount()
	if err != nil {
		return nil, err
	}
	m := make(wasm.NameMap, n)
	for i := uint32(0); i < n; i++ {
		idx, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := c.ReadString()
		if err != nil {
			return nil, err
		}
		m[wasm.Index(idx)] = name
	}
	return m, nil
}
