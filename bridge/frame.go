package bridge

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/roots"
	"github.com/wippyai/hostbridge/value"
)

// Frame is the scope of one native call. It owns the host local roots that
// protect the call's arguments and every host value produced during the
// call, plus any transient roots pinned by native code. All of them are
// dropped when the call returns; only roots promoted with Retain survive.
//
// A Frame must not be used after the call it was passed to returns.
type Frame struct {
	bridge *Bridge
	locals *host.Locals
	name   string
	pinned []roots.ID
	closed bool
}

func (b *Bridge) openFrame(name string) *Frame {
	b.active.Add(1)
	return &Frame{
		bridge: b,
		locals: b.heap.OpenLocals(),
		name:   name,
	}
}

// close releases pinned roots and drops local roots. Release failures are
// combined; they can only be double releases.
func (f *Frame) close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	for _, id := range f.pinned {
		err = multierr.Append(err, f.bridge.roots.Release(id))
	}
	f.pinned = nil
	f.locals.Close()
	f.bridge.active.Add(-1)

	if err != nil {
		Logger().Error("frame teardown failed", zap.String("func", f.name), zap.Error(err))
	}
	return err
}

// Name returns the symbol being called.
func (f *Frame) Name() string {
	return f.name
}

// Heap returns the host heap.
func (f *Frame) Heap() *host.Heap {
	return f.bridge.heap
}

// Locals returns the frame's local root set. Host values added to it stay
// alive until the call returns.
func (f *Frame) Locals() *host.Locals {
	return f.locals
}

// Deref converts the object behind h into a native value of type t.
func (f *Frame) Deref(h value.Handle, t value.Type) (value.Value, error) {
	return value.ToNative(f.bridge.heap, h.Ref(), t)
}

// Alloc converts v into a new host object rooted for the rest of the call
// and returns a handle to it.
func (f *Frame) Alloc(v value.Value) (value.Handle, error) {
	hv, err := value.FromNative(f.bridge.heap, f.locals, v)
	if err != nil {
		return value.Handle{}, err
	}
	if hv.IsImmediate() {
		return value.Handle{}, errors.InvalidHandle(errors.PhaseFromNative, "immediate values have no handle")
	}
	return value.Handle{ID: hv.Object()}, nil
}

// Pin roots h in the Root Table until the call returns.
func (f *Frame) Pin(h value.Handle) (roots.ID, error) {
	id, err := f.retain(h)
	if err != nil {
		return 0, err
	}
	f.pinned = append(f.pinned, id)
	return id, nil
}

// Retain promotes h into the Root Table beyond the call. The caller owns
// the registration and must release it with Release or through the table.
func (f *Frame) Retain(h value.Handle) (roots.ID, error) {
	return f.retain(h)
}

// Release drops a registration previously obtained with Retain.
func (f *Frame) Release(id roots.ID) error {
	return f.bridge.roots.Release(id)
}

// Resolve returns a handle for a root retained earlier, possibly during
// another call.
func (f *Frame) Resolve(id roots.ID) (value.Handle, error) {
	hv, ok := f.bridge.roots.Get(id)
	if !ok {
		return value.Handle{}, errors.InvalidHandle(errors.PhaseRoots, id.String()+" is not live")
	}
	f.locals.Add(hv)
	return value.Handle{ID: hv.Object()}, nil
}

func (f *Frame) retain(h value.Handle) (roots.ID, error) {
	ref := h.Ref()
	if !f.bridge.heap.IsLive(ref) {
		return 0, errors.Collected(errors.PhaseRoots, []string{f.name}, nil)
	}
	return f.bridge.roots.Retain(ref)
}

// Callback calls the host closure behind fn with args converted to host
// values, and converts its result to type result.
func (f *Frame) Callback(ctx context.Context, fn value.Handle, result value.Type, args ...value.Value) (value.Value, error) {
	h := f.bridge.heap

	hargs := make([]host.Value, len(args))
	for i, a := range args {
		hv, err := value.FromNative(h, f.locals, a)
		if err != nil {
			return nil, errors.ConversionFailed(errors.PhaseFromNative, []string{f.name, "callback", errors.PathIndex(i)}, "callback argument", err)
		}
		hargs[i] = hv
	}

	res, err := h.Apply(ctx, f.locals, fn.Ref(), hargs...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindNativeFailure, err, "callback into host failed")
	}

	if h.IsException(res) {
		name, msg, err := h.Exception(res)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseFromNative, errors.KindNativeFailure, err, "callback raised an unreadable exception")
		}
		return nil, &HostException{Name: name, Message: msg}
	}
	return value.ToNative(h, res, result)
}

// Raise builds an exception the host will observe by the name registered
// under key with host.Heap.Register.
func (f *Frame) Raise(key, message string) error {
	exn, ok := f.bridge.heap.Named(key)
	if !ok {
		return errors.NotFound(errors.PhaseCall, "named exception", key)
	}
	name, _, err := f.bridge.heap.Exception(exn)
	if err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindMismatch, err, "named value "+key+" is not an exception")
	}
	return &HostException{Name: name, Message: message}
}
