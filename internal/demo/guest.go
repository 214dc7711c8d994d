package demo

import (
	"math"

	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/internal/wasmgen"
)

// GuestName is the module name the demo guest is loaded under.
const GuestName = "wasm"

// GuestWIT declares the demo guest's exports.
const GuestWIT = `
package hostbridge:demo;

interface natives {
	export test_func_1: func(xs: list<s32>, i: int) -> s32;
	export sum: func(xs: list<s64>) -> s64;
	export mean: func(xs: list<f64>) -> f64;
	export strlen: func(s: string) -> s32;
	export add: func(a: s32, b: s32) -> s32;
	export is_even: func(n: int) -> bool;
	export apply_twice: func(f: handle, x: int) -> int;
}
`

var (
	i32 = wasmgen.I32
	i64 = wasmgen.I64
	f64 = wasmgen.F64
)

func sig(params []wasmgen.ValType, results ...wasmgen.ValType) wasmgen.FuncType {
	return wasmgen.FuncType{Params: params, Results: results}
}

// GuestModule assembles the demo guest binary.
func GuestModule() []byte {
	m := wasmgen.New()
	applyInt := m.Import(guest.HostModule, "apply_int", sig([]wasmgen.ValType{i32, i64}, i64))
	m.Memory(wasmgen.MemoryExport, 1, 0)
	wasmgen.AddAllocator(m, 1024)

	// test_func_1(ptr, len, i): xs[i], or MinInt32 when i is outside [0, len)
	c := wasmgen.NewCode(3)
	c.LocalGet(2).LocalGet(1).I64ExtendI32U().I64GeU().If(i32).
		I32Const(math.MinInt32).
		Else().
		LocalGet(0).LocalGet(2).I32WrapI64().I32Const(2).I32Shl().I32Add().I32Load(0).
		End()
	m.Func("test_func_1", sig([]wasmgen.ValType{i32, i32, i64}, i32), c)

	// sum(ptr, len)
	c = wasmgen.NewCode(2)
	acc, k := c.Local(i64), c.Local(i32)
	c.Block().Loop().
		LocalGet(k).LocalGet(1).I32GeU().BrIf(1).
		LocalGet(acc).
		LocalGet(0).LocalGet(k).I32Const(3).I32Shl().I32Add().I64Load(0).
		I64Add().LocalSet(acc).
		LocalGet(k).I32Const(1).I32Add().LocalSet(k).
		Br(0).
		End().End().
		LocalGet(acc)
	m.Func("sum", sig([]wasmgen.ValType{i32, i32}, i64), c)

	// mean(ptr, len); nan for an empty list
	c = wasmgen.NewCode(2)
	facc, k := c.Local(f64), c.Local(i32)
	c.Block().Loop().
		LocalGet(k).LocalGet(1).I32GeU().BrIf(1).
		LocalGet(facc).
		LocalGet(0).LocalGet(k).I32Const(3).I32Shl().I32Add().F64Load(0).
		F64Add().LocalSet(facc).
		LocalGet(k).I32Const(1).I32Add().LocalSet(k).
		Br(0).
		End().End().
		LocalGet(facc).LocalGet(1).F64ConvertI32U().F64Div()
	m.Func("mean", sig([]wasmgen.ValType{i32, i32}, f64), c)

	// strlen(ptr, len)
	c = wasmgen.NewCode(2)
	c.LocalGet(1)
	m.Func("strlen", sig([]wasmgen.ValType{i32, i32}, i32), c)

	c = wasmgen.NewCode(2)
	c.LocalGet(0).LocalGet(1).I32Add()
	m.Func("add", sig([]wasmgen.ValType{i32, i32}, i32), c)

	c = wasmgen.NewCode(1)
	c.LocalGet(0).I64Const(2).I64RemS().I64Eqz()
	m.Func("is_even", sig([]wasmgen.ValType{i64}, i32), c)

	// apply_twice(f, x) = f (f x)
	c = wasmgen.NewCode(2)
	c.LocalGet(0).
		LocalGet(0).LocalGet(1).Call(applyInt).
		Call(applyInt)
	m.Func("apply_twice", sig([]wasmgen.ValType{i32, i64}, i64), c)

	return m.Encode()
}
