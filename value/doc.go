// Package value defines the native-side representation of values that cross
// the host boundary and the conversions between it and host words.
//
// Value is a closed sum type: Unit, Bool, Int (host width, 63 bits), Int32,
// Int64, Float, String, Array, Tuple, Record, Option and Handle. A Type
// describes what a native function expects, and ToNative checks the host
// value against it:
//
//	v, err := value.ToNative(heap, hv, value.ArrayOf(value.Int32Type))
//
// Conversion failures are *errors.Error values of kind kind_mismatch,
// truncation or conversion_failed. Aggregate conversions are atomic.
//
// FromNative goes the other way. Integer widths are preserved exactly: an
// Int32 becomes a boxed int32 block, never an immediate, so a round trip
// is bit-exact. Intermediate allocations are registered with the caller's
// host.Locals.
//
// Index and IndexOr implement bounds-checked array access. Out-of-range
// indices either fail with out_of_bounds or yield Sentinel(elem), which
// compares below every other value of the element type.
package value
