package binary

import "github.com/wasmforge/wasmcore/wasm"

// ReadDefinedType reads one type-section entry: a function, struct, or
// array type, discriminated by its leading form byte (the
// struct/array forms require the GC proposal, checked by the caller once
// module-wide feature gating is in scope).
func ReadDefinedType(c *Cursor) (wasm.DefinedType, error) {
	start := c.Offset()
	form, err := c.ReadByte()
	if err != nil {
		return wasm.DefinedType{}, err
	}
	switch form {
	case wasm.FunctionForm:
		ft, err := readFunctionTypeBody(c)
		if err != nil {
			return wasm.DefinedType{}, err
		}
		return wasm.DefinedType{Kind: wasm.DefinedTypeFunction, Function: ft, Location: loc(start, c)}, nil
	case wasm.StructForm:
		st, err := readStructTypeBody(c)
		if err != nil {
			return wasm.DefinedType{}, err
		}
		return wasm.DefinedType{Kind: wasm.DefinedTypeStruct, Struct: st, Location: loc(start, c)}, nil
	case wasm.ArrayForm:
		at, err := readArrayTypeBody(c)
		if err != nil {
			return wasm.DefinedType{}, err
		}
		return wasm.DefinedType{Kind: wasm.DefinedTypeArray, Array: at, Location: loc(start, c)}, nil
	}
	return wasm.DefinedType{}, c.fail("Unknown type form: 0x%02x", form)
}

func readFunctionTypeBody(c *Cursor) (wasm.FunctionType, error) {
	pn, err := c.ReadCount()
	if err != nil {
		return wasm.FunctionType{}, err
	}
	params := make([]wasm.ValueVariant, pn)
	for i := range params {
		params[i], err = ReadValueType(c)
		if err != nil {
			return wasm.FunctionType{}, err
		}
	}
	rn, err := c.ReadCount()
	if err != nil {
		return wasm.FunctionType{}, err
	}
	results := make([]wasm.ValueVariant, rn)
	for i := range results {
		results[i], err = ReadValueType(c)
		if err != nil {
			return wasm.FunctionType{}, err
		}
	}
	return wasm.FunctionType{Params: params, Results: results}, nil
}

func readStructTypeBody(c *Cursor) (wasm.StructType, error) {
	n, err := c.ReadCount()
	if err != nil {
		return wasm.StructType{}, err
	}
	fields := make([]wasm.FieldType, n)
	for i := range fields {
		fields[i], err = ReadFieldType(c)
		if err != nil {
			return wasm.StructType{}, err
		}
	}
	return wasm.StructType{Fields: fields}, nil
}

func readArrayTypeBody(c *Cursor) (wasm.ArrayType, error) {
	f, err := ReadFieldType(c)
	if err != nil {
		return wasm.ArrayType{}, err
	}
	return wasm.ArrayType{Field: f}, nil
}

func loc(start int, c *Cursor) wasm.Location { return wasm.Location{Begin: start, End: c.Offset()} }
