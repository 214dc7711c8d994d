package demo

import (
	"context"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/roots"
	"github.com/wippyai/hostbridge/value"
)

// NotFound is the named exception natives raise for missing elements.
const NotFound = "Not_found"

// Struct1 is a record with optional fields.
type Struct1 struct {
	A int
	B float64
	C *string
	D *[]string
}

// Setup registers the named values the natives rely on.
func Setup(h *host.Heap) error {
	locals := h.OpenLocals()
	defer locals.Close()
	exn, err := locals.NewException(NotFound, "")
	if err != nil {
		return err
	}
	h.Register(NotFound, exn)
	return nil
}

// Register adds every demo native to reg.
func Register(reg *bridge.Registry) error {
	funcs := []struct {
		name string
		fn   any
	}{
		{"test_func_1", testFunc1},
		{"test_func_1_checked", testFunc1Checked},
		{"find", find},
		{"apply1", apply1},
		{"apply3", apply3},
		{"apply_range", applyRange},
		{"struct1_empty", func() Struct1 { return Struct1{} }},
		{"struct1_get_c", func(s Struct1) *string { return s.C }},
		{"struct1_get_d", func(s Struct1) *[]string { return s.D }},
		{"make_struct1", func(a int, b float64, c *string, d *[]string) Struct1 {
			return Struct1{A: a, B: b, C: c, D: d}
		}},
		{"string_length", func(s []byte) int { return len(s) }},
		{"direct_slice", directSlice},
		{"deep_clone", deepClone},
		{"remember", remember},
		{"recall", recall},
		{"forget", forget},
	}
	for _, f := range funcs {
		if err := reg.RegisterFunc(f.name, f.fn); err != nil {
			return err
		}
	}

	return reg.RegisterNative(bridge.Signature{
		Name:   "make_tuple",
		Params: []value.Type{value.IntType, value.FloatType},
		Result: value.TupleOf(value.IntType, value.FloatType, value.StringType),
	}, makeTuple)
}

func testFunc1(xs []int32, i int) int32 {
	return int32(value.IndexOr(value.Int32s(xs...), i).(value.Int32))
}

func testFunc1Checked(xs []int32, i int) (int32, error) {
	v, err := value.Index(value.Int32s(xs...), i)
	if err != nil {
		return 0, err
	}
	return int32(v.(value.Int32)), nil
}

func find(f *bridge.Frame, xs []int, x int) (int, error) {
	for i, y := range xs {
		if y == x {
			return i, nil
		}
	}
	return 0, f.Raise(NotFound, "")
}

func apply1(ctx context.Context, f *bridge.Frame, fn value.Handle, x int) (int, error) {
	v, err := f.Callback(ctx, fn, value.IntType, value.Int(x))
	if err != nil {
		return 0, err
	}
	return int(v.(value.Int)), nil
}

func apply3(ctx context.Context, f *bridge.Frame, fn value.Handle, x int) (int, error) {
	for i := 0; i < 3; i++ {
		var err error
		if x, err = apply1(ctx, f, fn, x); err != nil {
			return 0, err
		}
	}
	return x, nil
}

// applyRange calls fn with the array [|start; ...; stop-1|].
func applyRange(ctx context.Context, f *bridge.Frame, fn value.Handle, start, stop int) (int, error) {
	var xs []int64
	for i := start; i < stop; i++ {
		xs = append(xs, int64(i))
	}
	v, err := f.Callback(ctx, fn, value.IntType, value.Ints(xs...))
	if err != nil {
		return 0, err
	}
	return int(v.(value.Int)), nil
}

func directSlice(xs []int64) int64 {
	var total int64
	for _, x := range xs {
		total += x
	}
	return total
}

func makeTuple(ctx context.Context, f *bridge.Frame, args []value.Value) (value.Value, error) {
	n, x := args[0].(value.Int), args[1].(value.Float)
	return value.Tuple{n, x, value.String(value.Format(x))}, nil
}

// deepClone copies the object graph behind h into fresh host objects.
func deepClone(f *bridge.Frame, h value.Handle) (value.Handle, error) {
	c, err := cloneValue(f.Heap(), f.Locals(), h.Ref())
	if err != nil {
		return value.Handle{}, err
	}
	if c.IsImmediate() {
		return value.Handle{}, errors.InvalidHandle(errors.PhaseCall, "deep_clone of an immediate")
	}
	return value.Handle{ID: c.Object()}, nil
}

func cloneValue(h *host.Heap, locals *host.Locals, v host.Value) (host.Value, error) {
	if v.IsImmediate() {
		return v, nil
	}
	tag, err := h.Tag(v)
	if err != nil {
		return host.Nil, err
	}

	switch tag {
	case host.TagFloat:
		f, err := h.Float(v)
		if err != nil {
			return host.Nil, err
		}
		return locals.NewFloat(f)
	case host.TagString:
		b, err := h.Bytes(v)
		if err != nil {
			return host.Nil, err
		}
		return locals.NewString(b)
	case host.TagInt32:
		n, err := h.Int32(v)
		if err != nil {
			return host.Nil, err
		}
		return locals.NewInt32(n)
	case host.TagInt64:
		n, err := h.Int64(v)
		if err != nil {
			return host.Nil, err
		}
		return locals.NewInt64(n)
	case host.TagBlock, host.TagArray:
		fields, err := h.Fields(v)
		if err != nil {
			return host.Nil, err
		}
		clones := make([]host.Value, len(fields))
		for i, fv := range fields {
			if clones[i], err = cloneValue(h, locals, fv); err != nil {
				return host.Nil, err
			}
		}
		if tag == host.TagBlock {
			return locals.NewBlock(clones...)
		}
		return locals.NewArray(clones...)
	}
	return host.Nil, errors.Unsupported(errors.PhaseCall, "deep_clone of "+tag.String())
}

func remember(f *bridge.Frame, h value.Handle) (int64, error) {
	id, err := f.Retain(h)
	return int64(id), err
}

func recall(f *bridge.Frame, id int64) (value.Handle, error) {
	return f.Resolve(roots.ID(id))
}

func forget(f *bridge.Frame, id int64) error {
	return f.Release(roots.ID(id))
}
