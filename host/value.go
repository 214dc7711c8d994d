package host

import "fmt"

// Value is a host machine word. A set low bit marks an immediate 63-bit
// integer; otherwise the word carries the ObjectID of a heap block.
// The zero Value is Nil and never names a live object.
type Value uint64

// ObjectID is the stable identity of a heap block. IDs are never reused.
type ObjectID uint64

const (
	// Nil is the invalid reference.
	Nil Value = 0

	// MaxInt is the largest immediate integer.
	MaxInt int64 = 1<<62 - 1
	// MinInt is the smallest immediate integer.
	MinInt int64 = -(1 << 62)
)

// Immediate constants shared with the host language.
var (
	Unit  = Int(0)
	False = Int(0)
	True  = Int(1)
	None  = Int(0)
)

// Int encodes n as an immediate. Bits above the 63-bit range are lost;
// callers check FitsInt first when the source is wider.
func Int(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// Bool encodes b as an immediate 0 or 1.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Ref returns the reference word for id.
func Ref(id ObjectID) Value {
	return Value(uint64(id) << 1)
}

// FitsInt reports whether n is representable as an immediate.
func FitsInt(n int64) bool {
	return n >= MinInt && n <= MaxInt
}

// IsImmediate reports whether v is an immediate integer.
func (v Value) IsImmediate() bool {
	return v&1 == 1
}

// IsNil reports whether v is the invalid reference.
func (v Value) IsNil() bool {
	return v == Nil
}

// Int decodes an immediate. The result is meaningless for references.
func (v Value) Int() int64 {
	return int64(v) >> 1
}

// Object returns the identity named by a reference. It returns 0 for
// immediates.
func (v Value) Object() ObjectID {
	if v.IsImmediate() {
		return 0
	}
	return ObjectID(v >> 1)
}

func (v Value) String() string {
	switch {
	case v.IsImmediate():
		return fmt.Sprintf("%d", v.Int())
	case v.IsNil():
		return "nil"
	default:
		return fmt.Sprintf("@%d", v.Object())
	}
}

// Tag identifies the layout of a heap block.
type Tag uint8

const (
	TagInt       Tag = iota // pseudo-tag reported for immediates
	TagBlock                // tuples, records, Some
	TagArray                // homogeneous arrays
	TagFloat                // boxed float64
	TagString               // immutable byte string
	TagInt32                // boxed int32
	TagInt64                // boxed int64
	TagAbstract             // opaque Go value
	TagClosure              // callable host function with captured fields
	TagException            // exception: [name string; message string]
)

var tagNames = [...]string{
	TagInt:       "int",
	TagBlock:     "block",
	TagArray:     "array",
	TagFloat:     "float",
	TagString:    "string",
	TagInt32:     "int32",
	TagInt64:     "int64",
	TagAbstract:  "abstract",
	TagClosure:   "closure",
	TagException: "exception",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}
