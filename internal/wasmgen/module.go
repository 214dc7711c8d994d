package wasmgen

import "fmt"

const (
	magic   = 0x6d736100
	version = 1
)

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secCode     = 10
	secData     = 11
)

const (
	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03
)

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("valtype(0x%02x)", byte(t))
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) equal(o FuncType) bool {
	if len(ft.Params) != len(o.Params) || len(ft.Results) != len(o.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type global struct {
	typ     ValType
	mutable bool
	init    int64
}

type export struct {
	name  string
	kind  byte
	index uint32
}

type data struct {
	offset uint32
	bytes  []byte
}

// Module builds a core wasm module. Function indices count imports first,
// so every import must be added before the first function.
type Module struct {
	types    []FuncType
	imports  []funcImport
	funcs    []function
	globals  []global
	exports  []export
	data     []data
	memMin   uint32
	memMax   uint32
	hasMem   bool
	hasMax   bool
	memName  string
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

// typeIndex returns the index of ft, adding it when new.
func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// Import declares a host function and returns its function index.
func (m *Module) Import(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmgen: imports must precede functions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeIndex(ft)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function and returns its index. An empty export name keeps
// it private.
func (m *Module) Func(name string, ft FuncType, c *Code) uint32 {
	idx := uint32(len(m.imports) + len(m.funcs))
	m.funcs = append(m.funcs, function{
		typeIdx: m.typeIndex(ft),
		locals:  c.locals,
		body:    c.finish(),
	})
	if name != "" {
		m.exports = append(m.exports, export{name: name, kind: kindFunc, index: idx})
	}
	return idx
}

// Reserve returns the index the next function added with Func will get.
// Recursive functions use it to call themselves.
func (m *Module) Reserve() uint32 {
	return uint32(len(m.imports) + len(m.funcs))
}

// Memory declares the module's linear memory in 64KiB pages and exports
// it as name. max of 0 leaves the memory unbounded.
func (m *Module) Memory(name string, min, max uint32) {
	m.hasMem = true
	m.memMin, m.memMax = min, max
	m.hasMax = max > 0
	m.memName = name
}

// Global adds a global initialized to init and returns its index.
func (m *Module) Global(t ValType, mutable bool, init int64) uint32 {
	m.globals = append(m.globals, global{typ: t, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// ExportGlobal exports global idx as name.
func (m *Module) ExportGlobal(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindGlobal, index: idx})
}

// Data places bytes in memory at offset during instantiation.
func (m *Module) Data(offset uint32, b []byte) {
	m.data = append(m.data, data{offset: offset, bytes: append([]byte(nil), b...)})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	var w writer
	w.u32le(magic)
	w.u32le(version)

	if len(m.types) > 0 {
		var sec writer
		sec.u32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.byte(0x60)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		w.section(secType, &sec)
	}

	if len(m.imports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(secImport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(secFunction, &sec)
	}

	if m.hasMem {
		var sec writer
		sec.u32(1)
		if m.hasMax {
			sec.byte(0x01)
			sec.u32(m.memMin)
			sec.u32(m.memMax)
		} else {
			sec.byte(0x00)
			sec.u32(m.memMin)
		}
		w.section(secMemory, &sec)
	}

	if len(m.globals) > 0 {
		var sec writer
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.byte(byte(g.typ))
			if g.mutable {
				sec.byte(0x01)
			} else {
				sec.byte(0x00)
			}
			writeConst(&sec, g.typ, g.init)
			sec.byte(opEnd)
		}
		w.section(secGlobal, &sec)
	}

	exports := m.exports
	if m.hasMem && m.memName != "" {
		exports = append(append([]export(nil), exports...), export{name: m.memName, kind: kindMemory})
	}
	if len(exports) > 0 {
		var sec writer
		sec.u32(uint32(len(exports)))
		for _, e := range exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.index)
		}
		w.section(secExport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body writer
			writeLocals(&body, f.locals)
			body.write(f.body)
			sec.u32(uint32(body.buf.Len()))
			sec.write(body.bytes())
		}
		w.section(secCode, &sec)
	}

	if len(m.data) > 0 {
		var sec writer
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.byte(opI32Const)
			sec.s64(int64(int32(d.offset)))
			sec.byte(opEnd)
			sec.u32(uint32(len(d.bytes)))
			sec.write(d.bytes)
		}
		w.section(secData, &sec)
	}

	return w.bytes()
}

func writeValTypes(w *writer, types []ValType) {
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(byte(t))
	}
}

// writeLocals run-length encodes local declarations.
func writeLocals(w *writer, locals []ValType) {
	type run struct {
		n uint32
		t ValType
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{n: 1, t: t})
	}
	w.u32(uint32(len(runs)))
	for _, r := range runs {
		w.u32(r.n)
		w.byte(byte(r.t))
	}
}

func writeConst(w *writer, t ValType, v int64) {
	switch t {
	case I32:
		w.byte(opI32Const)
		w.s64(int64(int32(v)))
	case I64:
		w.byte(opI64Const)
		w.s64(v)
	default:
		panic("wasmgen: only integer globals are supported")
	}
}
