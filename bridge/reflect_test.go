package bridge

import (
	"context"
	"reflect"
	"testing"

	"github.com/wippyai/hostbridge/value"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"X", "x"},
		{"Name", "name"},
		{"FirstName", "first_name"},
		{"HTTPServer", "http_server"},
		{"ID", "id"},
		{"already_snake", "already_snake"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTypeFor(t *testing.T) {
	type pair struct {
		Left  int32
		Right *float64
		Skip  string `host:"-"`
	}

	tests := []struct {
		name string
		t    reflect.Type
		want string
	}{
		{"int", reflect.TypeOf(0), "int"},
		{"int32", reflect.TypeOf(int32(0)), "int32"},
		{"int64", reflect.TypeOf(int64(0)), "int64"},
		{"float", reflect.TypeOf(0.0), "float"},
		{"bytes", reflect.TypeOf([]byte(nil)), "string"},
		{"nested array", reflect.TypeOf([][]int32(nil)), "int32 array array"},
		{"option", reflect.TypeOf((*string)(nil)), "string option"},
		{"unit", reflect.TypeOf(struct{}{}), "unit"},
		{"handle", reflect.TypeOf(value.Handle{}), "handle"},
		{"record", reflect.TypeOf(pair{}), "{ left : int32; right : float option }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := typeFor(tt.t)
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("typeFor = %q, want %q", got.String(), tt.want)
			}
		})
	}

	for _, bad := range []reflect.Type{reflect.TypeOf(uint(0)), reflect.TypeOf(map[string]int{}), reflect.TypeOf(func() {})} {
		if _, err := typeFor(bad); err == nil {
			t.Errorf("typeFor(%s) accepted", bad)
		}
	}
}

func TestReflectFunc_RoundTrip(t *testing.T) {
	type pair struct {
		A int
		B []string
	}
	rf, err := newReflectFunc("swap", reflect.ValueOf(func(ctx context.Context, p pair, o *int) (pair, error) {
		if o != nil {
			p.A = *o
		}
		p.B = append(p.B, "x")
		return p, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !rf.wantCtx || rf.wantFrame || !rf.hasErr {
		t.Fatalf("flags = ctx:%v frame:%v err:%v", rf.wantCtx, rf.wantFrame, rf.hasErr)
	}

	in := value.Record{
		Names:  []string{"a", "b"},
		Fields: []value.Value{value.Int(1), value.Array{Elem: value.StringType}},
	}
	res, err := rf.Invoke(context.Background(), nil, []value.Value{in, value.Some(value.IntType, value.Int(9))})
	if err != nil {
		t.Fatal(err)
	}
	if !value.Conforms(res, rf.sig.Result) {
		t.Fatalf("result %s does not conform to %s", value.Format(res), rf.sig.Result)
	}
	if got := value.Format(res); got != `{ a = 9; b = [|"x"|] }` {
		t.Errorf("result = %s", got)
	}
}

func TestNewReflectFunc_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"variadic", func(xs ...int) {}},
		{"second result not error", func() (int, int) { return 0, 0 }},
		{"three results", func() (int, int, error) { return 0, 0, nil }},
		{"unsupported result", func() uint { return 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newReflectFunc(tt.name, reflect.ValueOf(tt.fn)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
