package value

import (
	stderrors "errors"
	"math"
	"strconv"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// ToNative converts a host value into a native value of type t.
// Aggregates are converted atomically: on failure no partial value is
// returned and the error wraps the first failing element.
func ToNative(h *host.Heap, hv host.Value, t Type) (Value, error) {
	return toNative(h, hv, t, nil)
}

func toNative(h *host.Heap, hv host.Value, t Type, path []string) (Value, error) {
	tag, err := h.Tag(hv)
	if err != nil {
		return nil, heapError(errors.PhaseToNative, path, err)
	}

	mismatch := func() error {
		return errors.Mismatch(errors.PhaseToNative, path, t.String(), describe(hv, tag))
	}

	switch t.Kind {
	case KindUnit:
		if tag != host.TagInt || hv.Int() != 0 {
			return nil, mismatch()
		}
		return Unit{}, nil

	case KindBool:
		if tag != host.TagInt || (hv.Int() != 0 && hv.Int() != 1) {
			return nil, mismatch()
		}
		return Bool(hv.Int() == 1), nil

	case KindInt:
		switch tag {
		case host.TagInt:
			return Int(hv.Int()), nil
		case host.TagInt64:
			n, err := h.Int64(hv)
			if err != nil {
				return nil, heapError(errors.PhaseToNative, path, err)
			}
			if !host.FitsInt(n) {
				return nil, errors.Truncation(errors.PhaseToNative, path, n, "int")
			}
			return Int(n), nil
		}
		return nil, mismatch()

	case KindInt32:
		switch tag {
		case host.TagInt32:
			n, err := h.Int32(hv)
			if err != nil {
				return nil, heapError(errors.PhaseToNative, path, err)
			}
			return Int32(n), nil
		case host.TagInt:
			n := hv.Int()
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, errors.Truncation(errors.PhaseToNative, path, n, "int32")
			}
			return Int32(n), nil
		}
		return nil, mismatch()

	case KindInt64:
		switch tag {
		case host.TagInt64:
			n, err := h.Int64(hv)
			if err != nil {
				return nil, heapError(errors.PhaseToNative, path, err)
			}
			return Int64(n), nil
		case host.TagInt32:
			n, err := h.Int32(hv)
			if err != nil {
				return nil, heapError(errors.PhaseToNative, path, err)
			}
			return Int64(n), nil
		case host.TagInt:
			return Int64(hv.Int()), nil
		}
		return nil, mismatch()

	case KindFloat:
		if tag != host.TagFloat {
			return nil, mismatch()
		}
		f, err := h.Float(hv)
		if err != nil {
			return nil, heapError(errors.PhaseToNative, path, err)
		}
		return Float(f), nil

	case KindString:
		if tag != host.TagString {
			return nil, mismatch()
		}
		b, err := h.Bytes(hv)
		if err != nil {
			return nil, heapError(errors.PhaseToNative, path, err)
		}
		return String(b), nil

	case KindArray:
		if tag != host.TagArray || t.Elem == nil {
			return nil, mismatch()
		}
		fields, err := h.Fields(hv)
		if err != nil {
			return nil, heapError(errors.PhaseToNative, path, err)
		}
		elems := make([]Value, len(fields))
		for i, f := range fields {
			ev, err := toNative(h, f, *t.Elem, errors.Extend(path, errors.PathIndex(i)))
			if err != nil {
				return nil, errors.ConversionFailed(errors.PhaseToNative, path, "array", err)
			}
			elems[i] = ev
		}
		return Array{Elem: *t.Elem, Elems: elems}, nil

	case KindTuple, KindRecord:
		if tag != host.TagBlock {
			return nil, mismatch()
		}
		fields, err := h.Fields(hv)
		if err != nil {
			return nil, heapError(errors.PhaseToNative, path, err)
		}
		if len(fields) != len(t.Fields) {
			return nil, errors.Mismatch(errors.PhaseToNative, path, t.String(), describeBlock(len(fields)))
		}
		out := make([]Value, len(fields))
		for i, f := range fields {
			seg := errors.PathIndex(i)
			if t.Kind == KindRecord && i < len(t.Names) {
				seg = t.Names[i]
			}
			fv, err := toNative(h, f, t.Fields[i], errors.Extend(path, seg))
			if err != nil {
				return nil, errors.ConversionFailed(errors.PhaseToNative, path, t.Kind.String(), err)
			}
			out[i] = fv
		}
		if t.Kind == KindRecord {
			return Record{Names: append([]string(nil), t.Names...), Fields: out}, nil
		}
		return Tuple(out), nil

	case KindOption:
		if t.Elem == nil {
			return nil, mismatch()
		}
		if tag == host.TagInt && hv.Int() == 0 {
			return None(*t.Elem), nil
		}
		if tag != host.TagBlock {
			return nil, mismatch()
		}
		fields, err := h.Fields(hv)
		if err != nil {
			return nil, heapError(errors.PhaseToNative, path, err)
		}
		if len(fields) != 1 {
			return nil, errors.Mismatch(errors.PhaseToNative, path, t.String(), describeBlock(len(fields)))
		}
		inner, err := toNative(h, fields[0], *t.Elem, errors.Extend(path, "Some"))
		if err != nil {
			return nil, errors.ConversionFailed(errors.PhaseToNative, path, "option", err)
		}
		return Some(*t.Elem, inner), nil

	case KindHandle:
		if tag == host.TagInt {
			return nil, mismatch()
		}
		return Handle{ID: hv.Object()}, nil
	}

	return nil, errors.Unsupported(errors.PhaseToNative, "conversion to "+t.String())
}

// allocator is satisfied by *host.Heap (unrooted) and *host.Locals (rooted
// at allocation).
type allocator interface {
	NewBlock(fields ...host.Value) (host.Value, error)
	NewArray(elems ...host.Value) (host.Value, error)
	NewFloat(f float64) (host.Value, error)
	NewString(b []byte) (host.Value, error)
	NewInt32(n int32) (host.Value, error)
	NewInt64(n int64) (host.Value, error)
}

// FromNative converts a native value into a freshly allocated host value.
// Every allocation, the result included, is rooted in locals as it is made,
// so no collection on any goroutine can free part of the aggregate. With a
// nil locals the result is unrooted and only safe while no other goroutine
// allocates.
func FromNative(h *host.Heap, locals *host.Locals, v Value) (host.Value, error) {
	var a allocator = h
	if locals != nil {
		a = locals
	}
	return fromNative(h, a, v, nil)
}

func fromNative(h *host.Heap, a allocator, v Value, path []string) (host.Value, error) {
	keep := func(hv host.Value, err error) (host.Value, error) {
		if err != nil {
			return host.Nil, heapError(errors.PhaseFromNative, path, err)
		}
		return hv, nil
	}

	switch x := v.(type) {
	case nil:
		return host.Nil, errors.InvalidInput(errors.PhaseFromNative, "nil native value")
	case Unit:
		return host.Unit, nil
	case Bool:
		return host.Bool(bool(x)), nil
	case Int:
		if !host.FitsInt(int64(x)) {
			return host.Nil, errors.Truncation(errors.PhaseFromNative, path, int64(x), "int")
		}
		return host.Int(int64(x)), nil
	case Int32:
		return keep(a.NewInt32(int32(x)))
	case Int64:
		return keep(a.NewInt64(int64(x)))
	case Float:
		return keep(a.NewFloat(float64(x)))
	case String:
		return keep(a.NewString(x))

	case Array:
		elems := make([]host.Value, len(x.Elems))
		for i, e := range x.Elems {
			p := errors.Extend(path, errors.PathIndex(i))
			if e == nil || !Conforms(e, x.Elem) {
				return host.Nil, errors.Mismatch(errors.PhaseFromNative, p, x.Elem.String(), kindName(e))
			}
			hv, err := fromNative(h, a, e, p)
			if err != nil {
				return host.Nil, errors.ConversionFailed(errors.PhaseFromNative, path, "array", err)
			}
			elems[i] = hv
		}
		return keep(a.NewArray(elems...))

	case Tuple:
		fields, err := fromFields(h, a, x, nil, path, "tuple")
		if err != nil {
			return host.Nil, err
		}
		return keep(a.NewBlock(fields...))

	case Record:
		fields, err := fromFields(h, a, x.Fields, x.Names, path, "record")
		if err != nil {
			return host.Nil, err
		}
		return keep(a.NewBlock(fields...))

	case Option:
		if x.Value == nil {
			return host.None, nil
		}
		inner, err := fromNative(h, a, x.Value, errors.Extend(path, "Some"))
		if err != nil {
			return host.Nil, errors.ConversionFailed(errors.PhaseFromNative, path, "option", err)
		}
		return keep(a.NewBlock(inner))

	case Handle:
		ref := x.Ref()
		if !h.IsLive(ref) {
			return host.Nil, errors.Collected(errors.PhaseFromNative, path, nil)
		}
		return ref, nil
	}

	return host.Nil, errors.Unsupported(errors.PhaseFromNative, "conversion from "+v.Kind().String())
}

func fromFields(h *host.Heap, a allocator, vs []Value, names []string, path []string, what string) ([]host.Value, error) {
	out := make([]host.Value, len(vs))
	for i, f := range vs {
		seg := errors.PathIndex(i)
		if i < len(names) {
			seg = names[i]
		}
		hv, err := fromNative(h, a, f, errors.Extend(path, seg))
		if err != nil {
			return nil, errors.ConversionFailed(errors.PhaseFromNative, path, what, err)
		}
		out[i] = hv
	}
	return out, nil
}

func heapError(phase errors.Phase, path []string, err error) error {
	switch {
	case stderrors.Is(err, host.ErrCollected):
		return errors.Collected(phase, path, err)
	case stderrors.Is(err, host.ErrNotObject), stderrors.Is(err, host.ErrUnknown):
		return errors.New(phase, errors.KindInvalidHandle).Path(path...).Cause(err).Build()
	case stderrors.Is(err, host.ErrWrongTag):
		return errors.New(phase, errors.KindMismatch).Path(path...).Cause(err).Build()
	}
	return errors.Wrap(phase, errors.KindNativeFailure, err, "host heap")
}

func describe(hv host.Value, tag host.Tag) string {
	if tag == host.TagInt {
		return "immediate " + hv.String()
	}
	return tag.String()
}

func describeBlock(n int) string {
	if n == 1 {
		return "block of 1 field"
	}
	return "block of " + strconv.Itoa(n) + " fields"
}

func kindName(v Value) string {
	if v == nil {
		return "nil"
	}
	return TypeOf(v).String()
}
