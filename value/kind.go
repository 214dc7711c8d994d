package value

import "strings"

type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindInt32
	KindInt64
	KindFloat
	KindString
	KindArray
	KindTuple
	KindRecord
	KindOption
	KindHandle
)

var kindNames = [...]string{
	KindUnit:   "unit",
	KindBool:   "bool",
	KindInt:    "int",
	KindInt32:  "int32",
	KindInt64:  "int64",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindTuple:  "tuple",
	KindRecord: "record",
	KindOption: "option",
	KindHandle: "handle",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether k converts without touching the heap's fields.
func (k Kind) IsScalar() bool {
	return k <= KindString
}

// IsInteger reports whether k is one of the integer kinds.
func (k Kind) IsInteger() bool {
	return k == KindInt || k == KindInt32 || k == KindInt64
}

// Type describes the expected shape of a value crossing the boundary.
// Elem is set for arrays and options; Fields for tuples and records;
// Names for records.
type Type struct {
	Elem   *Type
	Fields []Type
	Names  []string
	Kind   Kind
}

var (
	UnitType   = Type{Kind: KindUnit}
	BoolType   = Type{Kind: KindBool}
	IntType    = Type{Kind: KindInt}
	Int32Type  = Type{Kind: KindInt32}
	Int64Type  = Type{Kind: KindInt64}
	FloatType  = Type{Kind: KindFloat}
	StringType = Type{Kind: KindString}
	HandleType = Type{Kind: KindHandle}
)

// ArrayOf returns the type of arrays of elem.
func ArrayOf(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

// OptionOf returns the type of optional elem.
func OptionOf(elem Type) Type {
	return Type{Kind: KindOption, Elem: &elem}
}

// TupleOf returns a tuple type with the given field types.
func TupleOf(fields ...Type) Type {
	return Type{Kind: KindTuple, Fields: fields}
}

// RecordOf returns a record type. names and fields are parallel.
func RecordOf(names []string, fields []Type) Type {
	return Type{Kind: KindRecord, Names: names, Fields: fields}
}

// Equal reports structural equality. Record field names are significant.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray, KindOption:
		if t.Elem == nil || o.Elem == nil {
			return t.Elem == o.Elem
		}
		return t.Elem.Equal(*o.Elem)
	case KindTuple, KindRecord:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		if t.Kind == KindRecord {
			if len(t.Names) != len(o.Names) {
				return false
			}
			for i := range t.Names {
				if t.Names[i] != o.Names[i] {
					return false
				}
			}
		}
	}
	return true
}

// String renders t the way the host language spells types.
func (t Type) String() string {
	switch t.Kind {
	case KindArray, KindOption:
		elem := "?"
		if t.Elem != nil {
			elem = t.Elem.String()
			if t.Elem.Kind == KindTuple {
				elem = "(" + elem + ")"
			}
		}
		return elem + " " + t.Kind.String()
	case KindTuple:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return strings.Join(parts, " * ")
	case KindRecord:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			name := ""
			if i < len(t.Names) {
				name = t.Names[i]
			}
			parts[i] = name + " : " + f.String()
		}
		return "{ " + strings.Join(parts, "; ") + " }"
	default:
		return t.Kind.String()
	}
}
