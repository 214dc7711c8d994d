package value

import (
	"bytes"
	"cmp"
	"math"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// Index returns element i of arr. Indices outside [0, len) fail with
// KindOutOfBounds; they never read past the array.
func Index(arr Array, i int) (Value, error) {
	if i < 0 || i >= len(arr.Elems) {
		return nil, errors.OutOfBounds(errors.PhaseCall, nil, i, len(arr.Elems))
	}
	return arr.Elems[i], nil
}

// IndexOr returns element i of arr, or Sentinel(arr.Elem) when i is out
// of bounds. It is used by natives that must return a scalar.
func IndexOr(arr Array, i int) Value {
	v, err := Index(arr, i)
	if err != nil {
		return Sentinel(arr.Elem)
	}
	return v
}

// Sentinel returns the distinguished minimal value of t. For every other
// value v of type t, Compare(Sentinel(t), v) < 0.
func Sentinel(t Type) Value {
	switch t.Kind {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(host.MinInt)
	case KindInt32:
		return Int32(math.MinInt32)
	case KindInt64:
		return Int64(math.MinInt64)
	case KindFloat:
		return Float(math.Inf(-1))
	case KindString:
		return String(nil)
	case KindArray:
		elem := IntType
		if t.Elem != nil {
			elem = *t.Elem
		}
		return Array{Elem: elem}
	case KindOption:
		elem := IntType
		if t.Elem != nil {
			elem = *t.Elem
		}
		return None(elem)
	case KindTuple:
		out := make(Tuple, len(t.Fields))
		for i, f := range t.Fields {
			out[i] = Sentinel(f)
		}
		return out
	case KindRecord:
		out := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			out[i] = Sentinel(f)
		}
		return Record{Names: append([]string(nil), t.Names...), Fields: out}
	case KindHandle:
		return Handle{}
	}
	return Unit{}
}

// IsSentinel reports whether v is the sentinel of its own type.
func IsSentinel(v Value) bool {
	return Equal(v, Sentinel(TypeOf(v)))
}

// Compare orders two native values. Values of different kinds order by
// kind; within a kind the order is the natural one (lexicographic for
// sequences, None before Some, NaN after every other float).
func Compare(a, b Value) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if a.Kind() != b.Kind() {
		return cmp.Compare(a.Kind(), b.Kind())
	}

	switch x := a.(type) {
	case Unit:
		return 0
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case Int:
		return cmp.Compare(x, b.(Int))
	case Int32:
		return cmp.Compare(x, b.(Int32))
	case Int64:
		return cmp.Compare(x, b.(Int64))
	case Float:
		return compareFloat(float64(x), float64(b.(Float)))
	case String:
		return bytes.Compare(x, b.(String))
	case Array:
		return compareSeq(x.Elems, b.(Array).Elems)
	case Tuple:
		return compareSeq(x, b.(Tuple))
	case Record:
		return compareSeq(x.Fields, b.(Record).Fields)
	case Option:
		y := b.(Option)
		switch {
		case !x.IsSome() && !y.IsSome():
			return 0
		case !x.IsSome():
			return -1
		case !y.IsSome():
			return 1
		}
		return Compare(x.Value, y.Value)
	case Handle:
		return cmp.Compare(x.ID, b.(Handle).ID)
	}
	return 0
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

func compareFloat(a, b float64) int {
	// NaN sorts last so that -Inf stays the minimum.
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

func compareSeq(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
