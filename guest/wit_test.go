package guest

import (
	"testing"

	"github.com/wippyai/hostbridge/errors"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"s32", "int32"},
		{"s64", "int64"},
		{"f64", "float"},
		{"bool", "bool"},
		{"string", "string"},
		{"int", "int"},
		{"handle", "handle"},
		{"list<s32>", "int32 array"},
		{" list< list<f64> > ", "float array array"},
		{"option<string>", "string option"},
		{"tuple<s32, list<bool>>", "int32 * bool array"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseType(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseType_Errors(t *testing.T) {
	for _, in := range []string{"u8", "list<u16>", "nonsense", "option<>"} {
		if _, err := ParseType(in); err == nil {
			t.Errorf("ParseType(%q) accepted", in)
		}
	}
}

func TestParseSignatures(t *testing.T) {
	wit := `
		package test:example@1.0.0;

		interface natives {
			export test_func_1: func(xs: list<s32>, i: int) -> s32;
			export log: func(msg: string);
			export pair: func(a: tuple<s32, s64>) -> bool;
		}
	`
	sigs, err := ParseSignatures(wit)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 3 {
		t.Fatalf("got %d signatures", len(sigs))
	}

	want := []string{
		"test_func_1 : int32 array -> int -> int32",
		"log : string -> unit",
		"pair : (int32 * int64) -> bool",
	}
	for i, w := range want {
		if got := sigs[i].String(); got != w {
			t.Errorf("sig %d = %q, want %q", i, got, w)
		}
	}
}

func TestParseSignatures_Errors(t *testing.T) {
	tests := []struct {
		name string
		wit  string
		kind errors.Kind
	}{
		{"empty", "package a:b;", errors.KindInvalidInput},
		{"duplicate", "f: func(); f: func();", errors.KindInvalidInput},
		{"bad param", "f: func(x: u8);", errors.KindInvalidInput},
		{"bad result", "f: func() -> u16;", errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignatures(tt.wit)
			if !errors.HasKind(err, tt.kind) {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestSplitTopLevel(t *testing.T) {
	got := splitTopLevel("a: s32, b: tuple<s32, s64>, c: list<list<bool>>")
	if len(got) != 3 || got[1] != "b: tuple<s32, s64>" {
		t.Errorf("splitTopLevel = %q", got)
	}
}
