package value

import (
	"math"
	"sync"
	"testing"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

func TestInt32RoundTrip(t *testing.T) {
	for _, n := range []int32{math.MinInt32, -1, 0, math.MaxInt32} {
		h := host.NewHeap(nil)
		locals := h.OpenLocals()

		hv, err := FromNative(h, locals, Int32(n))
		if err != nil {
			t.Fatalf("FromNative(%d): %v", n, err)
		}
		if tag, _ := h.Tag(hv); tag != host.TagInt32 {
			t.Fatalf("Int32 %d stored with tag %v, want boxed int32", n, tag)
		}

		back, err := ToNative(h, hv, Int32Type)
		if err != nil {
			t.Fatalf("ToNative(%d): %v", n, err)
		}
		if back != Int32(n) {
			t.Errorf("round trip %d -> %v", n, back)
		}
		locals.Close()
	}
}

func TestIntWidths(t *testing.T) {
	h := host.NewHeap(nil)
	locals := h.OpenLocals()
	defer locals.Close()

	tests := []struct {
		name string
		in   Value
	}{
		{"int max", Int(host.MaxInt)},
		{"int min", Int(host.MinInt)},
		{"int64 max", Int64(math.MaxInt64)},
		{"int64 min", Int64(math.MinInt64)},
		{"float", Float(-0.5)},
		{"bool", Bool(true)},
		{"unit", Unit{}},
		{"string", String("héllo")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hv, err := FromNative(h, locals, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			back, err := ToNative(h, hv, TypeOf(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if !Equal(back, tt.in) {
				t.Errorf("got %s, want %s", Format(back), Format(tt.in))
			}
		})
	}
}

func TestFromNative_IntOutOfRange(t *testing.T) {
	h := host.NewHeap(nil)
	_, err := FromNative(h, nil, Int(host.MaxInt+1))
	if !errors.HasKind(err, errors.KindTruncation) {
		t.Errorf("err = %v, want truncation", err)
	}
}

func TestToNative_Errors(t *testing.T) {
	h := host.NewHeap(nil)
	locals := h.OpenLocals()
	defer locals.Close()

	str, _ := h.NewString([]byte("x"))
	big, _ := h.NewInt64(math.MaxInt64)
	flt, _ := h.NewFloat(1)
	locals.Add(str, big, flt)

	tests := []struct {
		name string
		hv   host.Value
		typ  Type
		kind errors.Kind
	}{
		{"string as int", str, IntType, errors.KindMismatch},
		{"float as int32", flt, Int32Type, errors.KindMismatch},
		{"immediate as float", host.Int(1), FloatType, errors.KindMismatch},
		{"two as bool", host.Int(2), BoolType, errors.KindMismatch},
		{"wide immediate as int32", host.Int(math.MaxInt32 + 1), Int32Type, errors.KindTruncation},
		{"int64 max as int", big, IntType, errors.KindTruncation},
		{"immediate as handle", host.Int(3), HandleType, errors.KindMismatch},
		{"nil", host.Nil, IntType, errors.KindInvalidHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ToNative(h, tt.hv, tt.typ)
			if err == nil {
				t.Fatalf("expected error, got %s", Format(v))
			}
			if kind, _ := errors.KindOf(err); kind != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", kind, tt.kind, err)
			}
		})
	}
}

func TestToNative_ArrayAtomic(t *testing.T) {
	h := host.NewHeap(nil)
	locals := h.OpenLocals()
	defer locals.Close()

	bad, _ := h.NewString([]byte("three"))
	locals.Add(bad)
	arr, _ := h.NewArray(host.Int(1), host.Int(2), bad, host.Int(4))
	locals.Add(arr)

	v, err := ToNative(h, arr, ArrayOf(Int32Type))
	if v != nil {
		t.Fatalf("partial array returned: %s", Format(v))
	}
	if kind, _ := errors.KindOf(err); kind != errors.KindConversionFailed {
		t.Fatalf("outer kind = %v, want conversion_failed", kind)
	}
	if !errors.HasKind(err, errors.KindMismatch) {
		t.Errorf("cause should be kind_mismatch: %v", err)
	}
}

func TestAggregates_RoundTrip(t *testing.T) {
	h := host.NewHeap(&host.Config{CollectEvery: 1})
	locals := h.OpenLocals()
	defer locals.Close()

	recType := RecordOf(
		[]string{"name", "scores", "best"},
		[]Type{StringType, ArrayOf(Int64Type), OptionOf(TupleOf(IntType, FloatType))},
	)
	in := Record{
		Names: []string{"name", "scores", "best"},
		Fields: []Value{
			String("ada"),
			Array{Elem: Int64Type, Elems: []Value{Int64(1), Int64(-2), Int64(math.MaxInt64)}},
			Some(TupleOf(IntType, FloatType), Tuple{Int(7), Float(0.25)}),
		},
	}

	// Every allocation collects, so any intermediate not held in locals
	// would be freed before the enclosing block is built.
	hv, err := FromNative(h, locals, in)
	if err != nil {
		t.Fatal(err)
	}

	out, err := ToNative(h, hv, recType)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(in, out) {
		t.Errorf("round trip mismatch:\n in  %s\n out %s", Format(in), Format(out))
	}
	rec := out.(Record)
	if name, _ := rec.Get("name"); string(name.(String)) != "ada" {
		t.Errorf("name = %v", name)
	}
}

func TestFromNative_ConcurrentCollection(t *testing.T) {
	h := host.NewHeap(&host.Config{CollectEvery: 1})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_, _ = h.NewFloat(0)
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	in := Array{Elem: StringType, Elems: []Value{String("a"), String("b")}}
	for i := 0; i < 500; i++ {
		locals := h.OpenLocals()
		hv, err := FromNative(h, locals, in)
		if err != nil {
			locals.Close()
			t.Fatal(err)
		}
		out, err := ToNative(h, hv, ArrayOf(StringType))
		locals.Close()
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !Equal(in, out) {
			t.Fatalf("iteration %d: got %s", i, Format(out))
		}
	}
}

func TestOption_None(t *testing.T) {
	h := host.NewHeap(nil)

	hv, err := FromNative(h, nil, None(IntType))
	if err != nil {
		t.Fatal(err)
	}
	if hv != host.None {
		t.Errorf("None encoded as %v", hv)
	}
	v, err := ToNative(h, hv, OptionOf(IntType))
	if err != nil {
		t.Fatal(err)
	}
	if v.(Option).IsSome() {
		t.Error("expected None")
	}
}

func TestHandle_Collected(t *testing.T) {
	h := host.NewHeap(nil)

	s, _ := h.NewString([]byte("gone"))
	v, err := ToNative(h, s, HandleType)
	if err != nil {
		t.Fatal(err)
	}
	h.Collect()

	_, err = FromNative(h, nil, v)
	if !errors.HasKind(err, errors.KindCollected) {
		t.Errorf("err = %v, want collected", err)
	}
	_, err = ToNative(h, s, StringType)
	if !errors.HasKind(err, errors.KindCollected) {
		t.Errorf("stale read err = %v, want collected", err)
	}
}

func TestFromNative_ArrayElementMismatch(t *testing.T) {
	h := host.NewHeap(nil)
	locals := h.OpenLocals()
	defer locals.Close()

	arr := Array{Elem: IntType, Elems: []Value{Int(1), String("x")}}
	_, err := FromNative(h, locals, arr)
	if !errors.HasKind(err, errors.KindMismatch) {
		t.Errorf("err = %v, want kind_mismatch", err)
	}
}
