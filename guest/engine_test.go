package guest_test

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/internal/demo"
	"github.com/wippyai/hostbridge/internal/wasmgen"
	"github.com/wippyai/hostbridge/leakcheck"
	"github.com/wippyai/hostbridge/roots"
	"github.com/wippyai/hostbridge/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEngine(t *testing.T, cfg *guest.Config) *guest.Engine {
	t.Helper()
	ctx := context.Background()
	eng, err := guest.NewEngine(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func TestLoad_Demo(t *testing.T) {
	eng := newEngine(t, nil)
	ctx := context.Background()

	mod, err := eng.Load(ctx, demo.GuestName, demo.GuestModule(), demo.GuestWIT)
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Funcs()) != 7 {
		t.Errorf("funcs = %d", len(mod.Funcs()))
	}
	f, ok := mod.Func("test_func_1")
	if !ok {
		t.Fatal("test_func_1 missing")
	}
	if got := f.Signature().String(); got != "wasm.test_func_1 : int32 array -> int -> int32" {
		t.Errorf("signature = %q", got)
	}

	if _, err := eng.Load(ctx, demo.GuestName, demo.GuestModule(), demo.GuestWIT); !errors.HasKind(err, errors.KindInvalidInput) {
		t.Errorf("duplicate load err = %v", err)
	}
	if m, ok := eng.Module(demo.GuestName); !ok || m != mod {
		t.Error("Module lookup failed")
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	addOnly := func() []byte {
		m := wasmgen.New()
		c := wasmgen.NewCode(2)
		c.LocalGet(0).LocalGet(1).I32Add()
		m.Func("add", wasmgen.FuncType{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}}, c)

		c = wasmgen.NewCode(2)
		c.LocalGet(1)
		m.Func("len", wasmgen.FuncType{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}}, c)
		return m.Encode()
	}()

	tests := []struct {
		name string
		wasm []byte
		wit  string
		kind errors.Kind
	}{
		{"missing export", addOnly, "sub: func(a: s32, b: s32) -> s32;", errors.KindNotFound},
		{"core mismatch", addOnly, "add: func(a: s64, b: s32) -> s32;", errors.KindRegistration},
		{"result mismatch", addOnly, "add: func(a: s32, b: s32) -> f64;", errors.KindRegistration},
		{"string without allocator", addOnly, "len: func(s: string) -> s32;", errors.KindRegistration},
		{"unsupported result", addOnly, "add: func(a: s32, b: s32) -> string;", errors.KindRegistration},
		{"bad binary", []byte("not wasm"), "f: func();", errors.KindInvalidInput},
		{"bad wit", addOnly, "nothing here", errors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newEngine(t, nil)
			_, err := eng.Load(ctx, "m", tt.wasm, tt.wit)
			if !errors.HasKind(err, tt.kind) {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

type fixture struct {
	heap  *host.Heap
	table *roots.Table
	b     *bridge.Bridge
	eng   *guest.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	eng := newEngine(t, &guest.Config{MemoryLimitPages: 16})
	mod, err := eng.Load(ctx, demo.GuestName, demo.GuestModule(), demo.GuestWIT)
	if err != nil {
		t.Fatal(err)
	}

	heap := host.NewHeap(&host.Config{CollectEvery: 4})
	table := roots.NewTable()
	if err := table.Attach(heap); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = table.Close() })

	reg := bridge.NewRegistry()
	if err := mod.Register(reg); err != nil {
		t.Fatal(err)
	}
	return &fixture{heap: heap, table: table, b: bridge.New(heap, table, reg), eng: eng}
}

func (fx *fixture) int32s(t *testing.T, xs ...int32) host.Value {
	t.Helper()
	locals := fx.heap.OpenLocals()
	defer locals.Close()
	hv, err := value.FromNative(fx.heap, locals, value.Int32s(xs...))
	if err != nil {
		t.Fatal(err)
	}
	return hv
}

func TestInvoke_Index(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	arr := fx.int32s(t, 1, 2, 3)
	ref, err := roots.Hold(fx.table, arr)
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Release()

	checker := leakcheck.ForBridge(fx.b).With(leakcheck.Allocations("guest", fx.eng))
	leakcheck.Verify(t, checker, func() {
		locals := fx.heap.OpenLocals()
		defer locals.Close()
		for i, want := range []int32{1, 2, 3} {
			res, err := fx.b.Call(ctx, locals, "wasm.test_func_1", arr, host.Int(int64(i)))
			if err != nil {
				t.Fatal(err)
			}
			got, err := fx.heap.Int32(res)
			if err != nil || got != want {
				t.Errorf("index %d = %d, %v", i, got, err)
			}
		}

		oob, err := fx.b.Call(ctx, locals, "wasm.test_func_1", arr, host.Int(3))
		if err != nil {
			t.Fatal(err)
		}
		sentinel, _ := fx.heap.Int32(oob)
		if !value.IsSentinel(value.Int32(sentinel)) {
			t.Errorf("out-of-bounds result %d is not the sentinel", sentinel)
		}
	})
}

func TestInvoke_Callback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	locals := fx.heap.OpenLocals()
	defer locals.Close()
	triple, err := locals.NewClosure(func(ctx context.Context, h *host.Heap, locals *host.Locals, self host.Value, args []host.Value) (host.Value, error) {
		return host.Int(args[0].Int() * 3), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	fx.heap.Register("triple", triple)

	res, err := fx.b.Call(ctx, locals, "wasm.apply_twice", triple, host.Int(2))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsImmediate() || res.Int() != 18 {
		t.Errorf("apply_twice = %v", res)
	}
}

func TestInvoke_Trap(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	m := wasmgen.New()
	c := wasmgen.NewCode(0)
	c.Unreachable()
	m.Func("boom", wasmgen.FuncType{}, c)

	mod, err := eng.Load(ctx, "trap", m.Encode(), "boom: func();")
	if err != nil {
		t.Fatal(err)
	}
	reg := bridge.NewRegistry()
	if err := mod.Register(reg); err != nil {
		t.Fatal(err)
	}

	heap := host.NewHeap(nil)
	table := roots.NewTable()
	defer table.Close()
	b := bridge.New(heap, table, reg)

	locals := heap.OpenLocals()
	defer locals.Close()
	_, err = b.Call(ctx, locals, "trap.boom")
	if !errors.HasKind(err, errors.KindNativeFailure) {
		t.Errorf("err = %v, want native_failure", err)
	}
}

func TestEngine_Closed(t *testing.T) {
	ctx := context.Background()
	eng, err := guest.NewEngine(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := eng.Load(ctx, "m", demo.GuestModule(), demo.GuestWIT); !errors.HasKind(err, errors.KindClosed) {
		t.Errorf("load after close = %v", err)
	}
}
