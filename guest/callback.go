package guest

import (
	"context"
	stderrors "errors"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/value"
)

// hostError carries a host-side failure through a wasm trap.
type hostError struct {
	err error
}

func (e *hostError) Error() string { return e.err.Error() }
func (e *hostError) Unwrap() error { return e.err }

func unwrapHostError(err error) error {
	var he *hostError
	if stderrors.As(err, &he) {
		return he.err
	}
	return nil
}

// instantiateHostModule exports the callbacks guests may import:
//
//	hostbridge.apply_int(fn i32, x i64) -> i64
//	hostbridge.apply_float(fn i32, x f64) -> f64
//
// fn is the index of a handle argument of the current call. Failures,
// including host exceptions, abort the guest and surface from the call.
func instantiateHostModule(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, fn int32, x int64) int64 {
			v := apply(ctx, fn, value.IntType, value.Int(x))
			return int64(v.(value.Int))
		}).
		Export("apply_int").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, fn int32, x float64) float64 {
			v := apply(ctx, fn, value.FloatType, value.Float(x))
			return float64(v.(value.Float))
		}).
		Export("apply_float").
		Instantiate(ctx)
	return err
}

// apply runs a host closure for the guest call in ctx. It panics on
// failure; wazero turns the panic into a trap that ends the guest call.
func apply(ctx context.Context, fn int32, result value.Type, arg value.Value) value.Value {
	c, ok := callFrom(ctx)
	if !ok || c.frame == nil {
		panic(&hostError{err: errors.InvalidHandle(errors.PhaseCall, "callback outside a bridge call")})
	}
	h, err := c.handle(fn)
	if err != nil {
		panic(&hostError{err: err})
	}
	v, err := c.frame.Callback(ctx, h, result, arg)
	if err != nil {
		var exn *bridge.HostException
		if !stderrors.As(err, &exn) {
			err = errors.Wrap(errors.PhaseCall, errors.KindNativeFailure, err, "guest callback")
		}
		panic(&hostError{err: err})
	}
	return v
}
