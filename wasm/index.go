// Package wasm is the data model and validator for WebAssembly modules: the
// structural types decoded from the binary format (package
// github.com/wasmforge/wasmcore/wasm/binary), and the per-module and
// per-function validation engine that checks them for well-formedness.
package wasm

// Index is an unsigned positional reference into one of a module's index
// spaces: types, functions, tables, memories, globals, events, element
// segments, data segments, locals, or labels.
type Index = uint32

// Location is a half-open byte range [Begin, End) inside the module's
// source slice, attached to every decoded node for diagnostics.
type Location struct {
	Begin, End int
}
