package guest

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/value"
)

// flatTypes returns the core wasm parameter types a native type lowers to.
func flatTypes(t value.Type) ([]api.ValueType, error) {
	switch t.Kind {
	case value.KindBool, value.KindInt32, value.KindHandle:
		return []api.ValueType{api.ValueTypeI32}, nil
	case value.KindInt, value.KindInt64:
		return []api.ValueType{api.ValueTypeI64}, nil
	case value.KindFloat:
		return []api.ValueType{api.ValueTypeF64}, nil
	case value.KindString:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case value.KindArray:
		if _, err := elemSize(*t.Elem); err != nil {
			return nil, err
		}
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	}
	return nil, errors.Unsupported(errors.PhaseLoad, "guest parameter type "+t.String())
}

// resultTypes returns the core wasm result types for a native result type.
func resultTypes(t value.Type) ([]api.ValueType, error) {
	switch t.Kind {
	case value.KindUnit:
		return nil, nil
	case value.KindBool, value.KindInt32, value.KindHandle,
		value.KindInt, value.KindInt64, value.KindFloat:
		return flatTypes(t)
	}
	return nil, errors.Unsupported(errors.PhaseLoad, "guest result type "+t.String())
}

// elemSize is the byte width of an array element in linear memory.
func elemSize(t value.Type) (uint32, error) {
	switch t.Kind {
	case value.KindBool:
		return 1, nil
	case value.KindInt32:
		return 4, nil
	case value.KindInt, value.KindInt64, value.KindFloat:
		return 8, nil
	}
	return 0, errors.Unsupported(errors.PhaseLoad, "guest array element type "+t.String())
}

type allocation struct {
	ptr, size uint32
}

// call is the state of one guest invocation: buffers allocated in guest
// memory for its arguments and the host handles it may refer to by index.
type call struct {
	module  *Module
	frame   *bridge.Frame
	parent  *call
	allocs  []allocation
	handles []value.Handle
}

type callKey struct{}

func callFrom(ctx context.Context) (*call, bool) {
	c, ok := ctx.Value(callKey{}).(*call)
	return c, ok
}

// active reports whether m is executing anywhere in the chain of guest
// calls ending at c.
func (c *call) active(m *Module) bool {
	for p := c; p != nil; p = p.parent {
		if p.module == m {
			return true
		}
	}
	return false
}

// lower appends the flat encoding of v to stack.
func (c *call) lower(ctx context.Context, stack []uint64, v value.Value, path []string) ([]uint64, error) {
	switch x := v.(type) {
	case value.Bool:
		if x {
			return append(stack, 1), nil
		}
		return append(stack, 0), nil
	case value.Int32:
		return append(stack, api.EncodeI32(int32(x))), nil
	case value.Int:
		return append(stack, api.EncodeI64(int64(x))), nil
	case value.Int64:
		return append(stack, api.EncodeI64(int64(x))), nil
	case value.Float:
		return append(stack, api.EncodeF64(float64(x))), nil
	case value.Handle:
		c.handles = append(c.handles, x)
		return append(stack, api.EncodeI32(int32(len(c.handles)-1))), nil
	case value.String:
		ptr, err := c.write(ctx, []byte(x), 1, path)
		if err != nil {
			return nil, err
		}
		return append(stack, uint64(ptr), uint64(len(x))), nil
	case value.Array:
		size, err := elemSize(x.Elem)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, int(size)*len(x.Elems))
		for i, e := range x.Elems {
			encodeElem(buf[i*int(size):], e)
		}
		ptr, err := c.write(ctx, buf, size, path)
		if err != nil {
			return nil, err
		}
		return append(stack, uint64(ptr), uint64(len(x.Elems))), nil
	}
	return nil, errors.Unsupported(errors.PhaseToNative, "lowering "+value.TypeOf(v).String())
}

func encodeElem(dst []byte, v value.Value) {
	switch x := v.(type) {
	case value.Bool:
		if x {
			dst[0] = 1
		}
	case value.Int32:
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case value.Int:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case value.Int64:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case value.Float:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(x)))
	}
}

// write copies data into a fresh guest allocation.
func (c *call) write(ctx context.Context, data []byte, align uint32, path []string) (uint32, error) {
	size := uint32(len(data))
	ptr, err := c.module.alloc(ctx, size, align)
	if err != nil {
		return 0, errors.ConversionFailed(errors.PhaseToNative, path, "guest allocation", err)
	}
	c.allocs = append(c.allocs, allocation{ptr: ptr, size: size})
	if size > 0 && !c.module.mod.Memory().Write(ptr, data) {
		return 0, errors.New(errors.PhaseToNative, errors.KindOutOfBounds).
			Path(path...).
			Detail("guest memory write of %d bytes at %d out of range", size, ptr).
			Build()
	}
	return ptr, nil
}

// release frees the call's allocations, newest first.
func (c *call) release(ctx context.Context) error {
	var err error
	for i := len(c.allocs) - 1; i >= 0; i-- {
		a := c.allocs[i]
		err = multierr.Append(err, c.module.free(ctx, a.ptr, a.size))
	}
	c.allocs = nil
	return err
}

// lift converts the raw wasm result into a native value of type t.
func (c *call) lift(raw []uint64, t value.Type, name string) (value.Value, error) {
	if t.Kind == value.KindUnit {
		return value.Unit{}, nil
	}
	if len(raw) != 1 {
		return nil, errors.Mismatch(errors.PhaseFromNative, []string{name, "result"}, "1 result", "wasm results")
	}
	r := raw[0]
	switch t.Kind {
	case value.KindBool:
		return value.Bool(api.DecodeI32(r) != 0), nil
	case value.KindInt32:
		return value.Int32(api.DecodeI32(r)), nil
	case value.KindInt:
		return value.Int(int64(r)), nil
	case value.KindInt64:
		return value.Int64(int64(r)), nil
	case value.KindFloat:
		return value.Float(api.DecodeF64(r)), nil
	case value.KindHandle:
		idx := int(api.DecodeI32(r))
		if idx < 0 || idx >= len(c.handles) {
			return nil, errors.OutOfBounds(errors.PhaseFromNative, []string{name, "result"}, idx, len(c.handles))
		}
		return c.handles[idx], nil
	}
	return nil, errors.Unsupported(errors.PhaseFromNative, "lifting "+t.String())
}

func (c *call) handle(idx int32) (value.Handle, error) {
	if idx < 0 || int(idx) >= len(c.handles) {
		return value.Handle{}, errors.OutOfBounds(errors.PhaseCall, []string{"handle"}, int(idx), len(c.handles))
	}
	return c.handles[idx], nil
}
