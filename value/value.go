package value

import "github.com/wippyai/hostbridge/host"

// Value is a native-side value. The set of variants is closed.
type Value interface {
	Kind() Kind
	isValue()
}

type Unit struct{}

func (Unit) Kind() Kind { return KindUnit }
func (Unit) isValue()   {}

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) isValue()   {}

// Int is a host-width integer: 63 bits, sign-extended into int64.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) isValue()   {}

type Int32 int32

func (Int32) Kind() Kind { return KindInt32 }
func (Int32) isValue()   {}

type Int64 int64

func (Int64) Kind() Kind { return KindInt64 }
func (Int64) isValue()   {}

type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) isValue()   {}

// String is an owned byte buffer copied out of the host heap.
type String []byte

func (String) Kind() Kind { return KindString }
func (String) isValue()   {}

// Array is an ordered homogeneous sequence. Elem is tracked so that empty
// arrays keep their element type.
type Array struct {
	Elems []Value
	Elem  Type
}

func (Array) Kind() Kind { return KindArray }
func (Array) isValue()   {}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.Elems) }

type Tuple []Value

func (Tuple) Kind() Kind { return KindTuple }
func (Tuple) isValue()   {}

// Record is a tuple whose fields are named.
type Record struct {
	Names  []string
	Fields []Value
}

func (Record) Kind() Kind { return KindRecord }
func (Record) isValue()   {}

// Get returns the field called name.
func (r Record) Get(name string) (Value, bool) {
	for i, n := range r.Names {
		if n == name && i < len(r.Fields) {
			return r.Fields[i], true
		}
	}
	return nil, false
}

// Option is Some when Value is non-nil and None otherwise.
type Option struct {
	Value Value
	Elem  Type
}

func (Option) Kind() Kind { return KindOption }
func (Option) isValue()   {}

// IsSome reports whether o carries a value.
func (o Option) IsSome() bool { return o.Value != nil }

// Some returns an Option carrying v.
func Some(elem Type, v Value) Option { return Option{Elem: elem, Value: v} }

// None returns an empty Option of the given element type.
func None(elem Type) Option { return Option{Elem: elem} }

// Handle is an opaque reference to a host block. It is valid only while
// the frame that produced it is open, unless promoted to a root.
type Handle struct {
	ID host.ObjectID
}

func (Handle) Kind() Kind { return KindHandle }
func (Handle) isValue()   {}

// Ref returns the host word naming the block.
func (h Handle) Ref() host.Value { return host.Ref(h.ID) }

// Ints builds an Array of Int.
func Ints(xs ...int64) Array {
	elems := make([]Value, len(xs))
	for i, x := range xs {
		elems[i] = Int(x)
	}
	return Array{Elem: IntType, Elems: elems}
}

// Int32s builds an Array of Int32.
func Int32s(xs ...int32) Array {
	elems := make([]Value, len(xs))
	for i, x := range xs {
		elems[i] = Int32(x)
	}
	return Array{Elem: Int32Type, Elems: elems}
}

// TypeOf derives the type of v. Arrays and options report their tracked
// element type.
func TypeOf(v Value) Type {
	switch x := v.(type) {
	case Array:
		return ArrayOf(x.Elem)
	case Option:
		return OptionOf(x.Elem)
	case Tuple:
		fields := make([]Type, len(x))
		for i, f := range x {
			fields[i] = TypeOf(f)
		}
		return TupleOf(fields...)
	case Record:
		fields := make([]Type, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = TypeOf(f)
		}
		return RecordOf(append([]string(nil), x.Names...), fields)
	case nil:
		return UnitType
	default:
		return Type{Kind: v.Kind()}
	}
}

// Conforms reports whether v has type t.
func Conforms(v Value, t Type) bool {
	if v == nil || v.Kind() != t.Kind {
		return false
	}
	switch x := v.(type) {
	case Array:
		if t.Elem == nil || !x.Elem.Equal(*t.Elem) {
			return false
		}
		for _, e := range x.Elems {
			if !Conforms(e, *t.Elem) {
				return false
			}
		}
	case Option:
		if t.Elem == nil {
			return false
		}
		if x.Value != nil && !Conforms(x.Value, *t.Elem) {
			return false
		}
	case Tuple:
		return conformsFields(x, t.Fields)
	case Record:
		if len(x.Names) != len(t.Names) {
			return false
		}
		for i := range x.Names {
			if x.Names[i] != t.Names[i] {
				return false
			}
		}
		return conformsFields(x.Fields, t.Fields)
	}
	return true
}

func conformsFields(vs []Value, ts []Type) bool {
	if len(vs) != len(ts) {
		return false
	}
	for i := range vs {
		if !Conforms(vs[i], ts[i]) {
			return false
		}
	}
	return true
}
