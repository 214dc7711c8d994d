package demo_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/internal/demo"
	"github.com/wippyai/hostbridge/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEnv(t *testing.T, opts demo.Options) *demo.Env {
	t.Helper()
	ctx := context.Background()
	env, err := demo.NewEnv(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := env.Close(ctx); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return env
}

func TestInvoke(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 5, Guest: true})
	ctx := context.Background()

	tests := []struct {
		name string
		fn   string
		args []string
		want string
	}{
		{"index first", "test_func_1", []string{"[|1; 2; 3|]", "0"}, "1l"},
		{"index middle", "test_func_1", []string{"[|1; 2; 3|]", "1"}, "2l"},
		{"index last", "test_func_1", []string{"[|1; 2; 3|]", "2"}, "3l"},
		{"index singleton", "test_func_1", []string{"[|0|]", "0"}, "0l"},
		{"index past end", "test_func_1", []string{"[|0|]", "1"}, "-2147483648l"},
		{"index negative", "test_func_1", []string{"[|0|]", "-1"}, "-2147483648l"},
		{"apply1", "apply1", []string{"@succ", "41"}, "42"},
		{"apply3", "apply3", []string{"@double", "1"}, "8"},
		{"apply_range", "apply_range", []string{"@sum", "0", "5"}, "10"},
		{"struct1_empty", "struct1_empty", nil, "{ a = 0; b = 0.; c = None; d = None }"},
		{"make_struct1", "make_struct1", []string{"1", "2.5", `Some "x"`, `Some [|"a"; "b"|]`},
			`{ a = 1; b = 2.5; c = Some "x"; d = Some [|"a"; "b"|] }`},
		{"struct1_get_c", "struct1_get_c", []string{`{ a = 1; b = 2.; c = Some "x"; d = None }`}, `Some "x"`},
		{"struct1_get_d", "struct1_get_d", []string{`{ a = 1; b = 2.; c = None; d = None }`}, "None"},
		{"string_length", "string_length", []string{`"héllo"`}, "6"},
		{"direct_slice", "direct_slice", []string{"[|1; 2; 3|]"}, "6L"},
		{"make_tuple", "make_tuple", []string{"3", "1.5"}, `(3, 1.5, "1.5")`},
		{"wasm index", "wasm.test_func_1", []string{"[|1; 2; 3|]", "2"}, "3l"},
		{"wasm index past end", "wasm.test_func_1", []string{"[|1|]", "5"}, "-2147483648l"},
		{"wasm index negative", "wasm.test_func_1", []string{"[|1|]", "-1"}, "-2147483648l"},
		{"wasm sum", "wasm.sum", []string{"[|1; 2; 40|]"}, "43L"},
		{"wasm sum empty", "wasm.sum", []string{"[||]"}, "0L"},
		{"wasm mean", "wasm.mean", []string{"[|1.; 2.|]"}, "1.5"},
		{"wasm strlen", "wasm.strlen", []string{`"héllo"`}, "6l"},
		{"wasm add wraps", "wasm.add", []string{"2147483647", "1"}, "-2147483648l"},
		{"wasm is_even", "wasm.is_even", []string{"4"}, "true"},
		{"wasm is_odd", "wasm.is_even", []string{"-3"}, "false"},
		{"wasm apply_twice", "wasm.apply_twice", []string{"@succ", "1"}, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.Invoke(ctx, tt.fn, tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("%s %v = %s, want %s", tt.fn, tt.args, got, tt.want)
			}
		})
	}
}

func TestInvoke_Failures(t *testing.T) {
	env := newEnv(t, demo.Options{Guest: true})
	ctx := context.Background()

	tests := []struct {
		name string
		fn   string
		args []string
		kind errors.Kind
		exn  string
	}{
		{"checked index", "test_func_1_checked", []string{"[|0|]", "1"}, errors.KindOutOfBounds, ""},
		{"int32 overflow", "test_func_1", []string{"[|2147483648|]", "0"}, errors.KindConversionFailed, ""},
		{"arity", "apply1", []string{"@succ"}, errors.KindArity, ""},
		{"unknown", "nope", nil, errors.KindNotFound, ""},
		{"find raises", "find", []string{"[|5; 6|]", "7"}, errors.KindNativeFailure, demo.NotFound},
		{"callback raises", "apply1", []string{"@raise", "1"}, errors.KindNativeFailure, demo.NotFound},
		{"guest callback raises", "wasm.apply_twice", []string{"@raise", "1"}, "", demo.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Invoke(ctx, tt.fn, tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.kind != "" && !errors.HasKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
			if tt.exn != "" {
				var he *bridge.HostException
				if !stderrors.As(err, &he) || he.Name != tt.exn {
					t.Errorf("err = %v, want host exception %s", err, tt.exn)
				}
			}
		})
	}

	if n := env.Roots.Registrations(); n != 0 {
		t.Errorf("failed calls left %d registrations", n)
	}
	if n := env.Engine.Outstanding(); n != 0 {
		t.Errorf("failed calls left %d guest allocations", n)
	}
}

func TestRememberRecallForget(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 1})
	ctx := context.Background()

	id, err := env.Invoke(ctx, "remember", []string{`"kept across calls"`})
	if err != nil {
		t.Fatal(err)
	}
	if env.Roots.Len() != 1 {
		t.Fatalf("roots = %d after remember", env.Roots.Len())
	}
	env.Heap.Collect()

	n := strings.TrimSuffix(id, "L")
	got, err := env.Invoke(ctx, "recall", []string{n})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, `"kept across calls"`) {
		t.Errorf("recall = %s", got)
	}

	if _, err := env.Invoke(ctx, "forget", []string{n}); err != nil {
		t.Fatal(err)
	}
	if env.Roots.Len() != 0 {
		t.Errorf("roots = %d after forget", env.Roots.Len())
	}

	_, err = env.Invoke(ctx, "forget", []string{n})
	if !errors.IsFatal(err) {
		t.Errorf("second forget = %v, want double release", err)
	}
}

func TestDeepClone(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 2})
	ctx := context.Background()

	typ := value.TupleOf(value.StringType, value.ArrayOf(value.FloatType), value.Int32Type)
	orig := value.Tuple{value.String("s"), value.Array{Elem: value.FloatType, Elems: []value.Value{value.Float(1), value.Float(2)}}, value.Int32(-7)}

	locals := env.Heap.OpenLocals()
	defer locals.Close()
	hv, err := value.FromNative(env.Heap, locals, orig)
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.Bridge.Call(ctx, locals, "deep_clone", hv)
	if err != nil {
		t.Fatal(err)
	}
	if res.Object() == hv.Object() {
		t.Fatal("deep_clone returned the original object")
	}

	clone, err := value.ToNative(env.Heap, res, typ)
	if err != nil {
		t.Fatal(err)
	}
	if !value.Equal(clone, orig) {
		t.Errorf("clone = %s, want %s", value.Format(clone), value.Format(orig))
	}

	origFields, _ := env.Heap.Fields(hv)
	cloneFields, _ := env.Heap.Fields(res)
	for i := range origFields {
		if origFields[i].Object() == cloneFields[i].Object() {
			t.Errorf("field %d shared between original and clone", i)
		}
	}
}

func TestNoLeaks(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 3, Guest: true})
	ctx := context.Background()

	calls := [][]string{
		{"test_func_1", "[|1; 2; 3|]", "1"},
		{"wasm.test_func_1", "[|1; 2; 3|]", "1"},
		{"wasm.sum", "[|1; 2|]"},
		{"wasm.strlen", `"abc"`},
		{"apply3", "@succ", "0"},
		{"wasm.apply_twice", "@double", "3"},
		{"deep_clone", "[|1; 2|]"},
		{"make_tuple", "1", "2."},
		{"find", "[|1|]", "2"},
	}

	ok := env.Checker().Check(func() error {
		for i := 0; i < 20; i++ {
			for _, c := range calls {
				if _, err := env.Invoke(ctx, c[0], c[1:]); err != nil && c[0] != "find" {
					return err
				}
			}
		}
		return nil
	})
	if !ok {
		t.Error("pure calls leaked")
	}
}

// hop returns a closure that passes its argument through target.apply_twice
// with the named closure fn.
func hop(env *demo.Env, target, fn string) host.ClosureFunc {
	return func(ctx context.Context, h *host.Heap, locals *host.Locals, self host.Value, args []host.Value) (host.Value, error) {
		f, ok := h.Named(fn)
		if !ok {
			return host.Nil, stderrors.New("missing closure " + fn)
		}
		return env.Bridge.Call(ctx, locals, target+".apply_twice", f, args[0])
	}
}

func TestGuest_NestedModules(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 4, Guest: true})
	ctx := context.Background()
	if err := env.LoadGuest(ctx, "wasm2", demo.GuestModule(), demo.GuestWIT); err != nil {
		t.Fatal(err)
	}

	locals := env.Heap.OpenLocals()
	defer locals.Close()
	register := func(name string, fn host.ClosureFunc) {
		v, err := locals.NewClosure(fn)
		if err != nil {
			t.Fatal(err)
		}
		env.Heap.Register(name, v)
	}
	// via_wasm2 adds two through the second module; back_to_wasm re-enters
	// the first module while it is still running.
	register("via_wasm2", hop(env, "wasm2", demo.ClosureSucc))
	register("back_to_wasm", hop(env, "wasm", demo.ClosureSucc))
	register("cycle", hop(env, "wasm2", "back_to_wasm"))

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"distinct modules", []string{"@via_wasm2", "1"}, "5", false},
		{"re-entry through another module", []string{"@cycle", "1"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type result struct {
				out string
				err error
			}
			done := make(chan result, 1)
			go func() {
				out, err := env.Invoke(ctx, "wasm.apply_twice", tt.args)
				done <- result{out, err}
			}()

			var r result
			select {
			case r = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("nested guest call did not return")
			}

			if tt.wantErr {
				if !errors.HasKind(r.err, errors.KindUnsupported) || !strings.Contains(r.err.Error(), "re-entrant") {
					t.Errorf("err = %v, want re-entrant unsupported", r.err)
				}
				return
			}
			if r.err != nil {
				t.Fatal(r.err)
			}
			if r.out != tt.want {
				t.Errorf("got %s, want %s", r.out, tt.want)
			}
		})
	}

	// The first module must still accept calls after the refused re-entry.
	if got, err := env.Invoke(ctx, "wasm.add", []string{"1", "2"}); err != nil || got != "3l" {
		t.Errorf("wasm.add after re-entry = %s, %v", got, err)
	}
}

func TestDeepClone_ConcurrentAllocation(t *testing.T) {
	env := newEnv(t, demo.Options{CollectEvery: 1})
	ctx := context.Background()

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = env.Heap.NewString([]byte("noise"))
			}
		}
	}()
	defer func() {
		close(stop)
		<-finished
	}()

	inputs := []struct {
		arg        string
		wantPrefix string
	}{
		{`"hello"`, `"hello" @`},
		{"2.5", "2.5 @"},
		{"[|1; 2; 3|]", "array[3] @"},
	}
	for i := 0; i < 200; i++ {
		in := inputs[i%len(inputs)]
		got, err := env.Invoke(ctx, "deep_clone", []string{in.arg})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, in.wantPrefix) {
			t.Fatalf("deep_clone %s = %s, want prefix %s", in.arg, got, in.wantPrefix)
		}
	}
}
