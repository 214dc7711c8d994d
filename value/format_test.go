package value

import (
	"math"
	"testing"

	"github.com/wippyai/hostbridge/errors"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Unit{}, "()"},
		{Int(-3), "-3"},
		{Int32(7), "7l"},
		{Int64(7), "7L"},
		{Float(1), "1."},
		{Float(2.5), "2.5"},
		{Float(math.Inf(-1)), "neg_infinity"},
		{String("a\"b"), `"a\"b"`},
		{Ints(1, 2, 3), "[|1; 2; 3|]"},
		{Tuple{Int(1), Bool(false)}, "(1, false)"},
		{Record{Names: []string{"a", "b"}, Fields: []Value{Int(1), String("x")}}, `{ a = 1; b = "x" }`},
		{Some(IntType, Int(4)), "Some 4"},
		{Some(OptionOf(IntType), Some(IntType, Int(4))), "Some (Some 4)"},
		{None(IntType), "None"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	pair := TupleOf(IntType, StringType)
	rec := RecordOf([]string{"x", "y"}, []Type{FloatType, OptionOf(Int32Type)})

	tests := []struct {
		text string
		typ  Type
		want Value
	}{
		{"42", IntType, Int(42)},
		{" -7l ", Int32Type, Int32(-7)},
		{"0x10", Int64Type, Int64(16)},
		{"true", BoolType, Bool(true)},
		{"()", UnitType, Unit{}},
		{"1.", FloatType, Float(1)},
		{"neg_infinity", FloatType, Float(math.Inf(-1))},
		{`"hi\n"`, StringType, String("hi\n")},
		{"[|1; 2; 3|]", ArrayOf(Int32Type), Int32s(1, 2, 3)},
		{"[1, 2]", ArrayOf(IntType), Ints(1, 2)},
		{"[||]", ArrayOf(IntType), Ints()},
		{`(1, "a")`, pair, Tuple{Int(1), String("a")}},
		{"{ x = 0.5; y = Some 3 }", rec, Record{Names: []string{"x", "y"}, Fields: []Value{Float(0.5), Some(Int32Type, Int32(3))}}},
		{"None", OptionOf(IntType), None(IntType)},
		{`Some (2, "b")`, OptionOf(pair), Some(pair, Tuple{Int(2), String("b")})},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text, tt.typ)
			if err != nil {
				t.Fatal(err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Parse = %s, want %s", Format(got), Format(tt.want))
			}
		})
	}
}

func TestParse_FormatInverse(t *testing.T) {
	vals := []Value{
		Int32s(math.MinInt32, 0, math.MaxInt32),
		Tuple{Float(-1.5), String("q"), Bool(true)},
		Some(ArrayOf(IntType), Ints(5)),
	}
	for _, v := range vals {
		got, err := Parse(Format(v), TypeOf(v))
		if err != nil {
			t.Fatalf("Parse(%s): %v", Format(v), err)
		}
		if !Equal(got, v) {
			t.Errorf("Parse(Format(v)) = %s, want %s", Format(got), Format(v))
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		text string
		typ  Type
		kind errors.Kind
	}{
		{"abc", IntType, errors.KindInvalidInput},
		{"3000000000", Int32Type, errors.KindTruncation},
		{"[|1; 2", ArrayOf(IntType), errors.KindInvalidInput},
		{"1 2", IntType, errors.KindInvalidInput},
		{"{ z = 1. }", RecordOf([]string{"x"}, []Type{FloatType}), errors.KindInvalidInput},
		{"h", HandleType, errors.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Parse(tt.text, tt.typ)
			if kind, _ := errors.KindOf(err); kind != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", kind, tt.kind, err)
			}
		})
	}
}
