// Package wasmgen assembles small core WebAssembly modules in memory.
//
// It covers the subset needed for guest natives: numeric functions,
// linear memory with a bump allocator, mutable globals, data segments and
// imported host functions. Instruction builders mirror the text format:
//
//	m := wasmgen.New()
//	m.Memory("memory", 1, 0)
//	c := wasmgen.NewCode(2)
//	c.LocalGet(0).LocalGet(1).I32Add()
//	m.Func("add", wasmgen.FuncType{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}}, c)
//	bin := m.Encode()
package wasmgen
