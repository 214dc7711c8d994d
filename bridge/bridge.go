package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/roots"
	"github.com/wippyai/hostbridge/value"
)

// FailureName is the exception name used for host-visible failures that
// carry no more specific exception.
const FailureName = "Failure"

// Bridge dispatches host calls to registered native functions, converting
// arguments and results and keeping every host object the call touches
// alive for exactly as long as it is needed.
type Bridge struct {
	heap     *host.Heap
	roots    *roots.Table
	registry *Registry
	calls    atomic.Uint64
	failures atomic.Uint64
	active   atomic.Int64
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	Calls        uint64
	Failures     uint64
	ActiveFrames int64
}

// New creates a bridge over heap and table. A nil registry creates an
// empty one.
func New(heap *host.Heap, table *roots.Table, registry *Registry) *Bridge {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Bridge{
		heap:     heap,
		roots:    table,
		registry: registry,
	}
}

func (b *Bridge) Heap() *host.Heap { return b.heap }

func (b *Bridge) Roots() *roots.Table { return b.roots }

func (b *Bridge) Registry() *Registry { return b.registry }

// ActiveFrames returns the number of calls currently in flight.
func (b *Bridge) ActiveFrames() int64 { return b.active.Load() }

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Calls:        b.calls.Load(),
		Failures:     b.failures.Load(),
		ActiveFrames: b.active.Load(),
	}
}

// Call invokes the native function registered as name.
//
// Arguments are converted left to right; the first failure aborts the call
// before native code runs. Every transient root created during the call is
// released before Call returns, whether it succeeds or fails, so a call
// that does not explicitly retain anything leaves the Root Table as it
// found it.
//
// The result is added to locals before the call's own roots are dropped,
// so it stays alive until the caller closes locals. locals must be open.
func (b *Bridge) Call(ctx context.Context, locals *host.Locals, name string, args ...host.Value) (result host.Value, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if locals == nil {
		return host.Nil, errors.InvalidInput(errors.PhaseCall, "call "+name+" without a local root set")
	}
	b.calls.Add(1)
	defer func() {
		if err != nil {
			b.failures.Add(1)
			Logger().Debug("native call failed", zap.String("func", name), zap.Error(err))
		}
	}()

	fn, err := b.registry.Lookup(name)
	if err != nil {
		return host.Nil, err
	}
	sig := fn.Signature()
	if len(args) != len(sig.Params) {
		return host.Nil, errors.Arity(name, len(sig.Params), len(args))
	}

	frame := b.openFrame(name)
	defer func() {
		err = multierr.Append(err, frame.close())
	}()
	frame.locals.Add(args...)

	native := make([]value.Value, len(args))
	for i, a := range args {
		v, cerr := value.ToNative(b.heap, a, sig.Params[i])
		if cerr != nil {
			return host.Nil, annotate(cerr, name, i)
		}
		native[i] = v
	}

	res, err := b.invoke(ctx, fn, frame, native)
	if err != nil {
		return host.Nil, err
	}
	if res == nil {
		res = value.Unit{}
	}
	if !value.Conforms(res, sig.Result) {
		return host.Nil, errors.Mismatch(errors.PhaseFromNative, []string{name, "result"}, sig.Result.String(), value.TypeOf(res).String())
	}

	hv, err := value.FromNative(b.heap, frame.locals, res)
	if err != nil {
		return host.Nil, err
	}
	locals.Add(hv)
	return hv, nil
}

func (b *Bridge) invoke(ctx context.Context, fn Func, frame *Frame, args []value.Value) (res value.Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && errors.IsFatal(e) {
			panic(r)
		}
		Logger().Warn("native panic recovered", zap.String("func", frame.name), zap.Any("panic", r))
		err = errors.NativeFailure(frame.name, fmt.Errorf("panic: %v", r))
	}()

	res, err = fn.Invoke(ctx, frame, args)
	if err != nil {
		if _, ok := errors.KindOf(err); !ok {
			err = errors.NativeFailure(frame.name, err)
		}
		return nil, err
	}
	return res, nil
}

// CallHost is Call for host-side callers that expect failures as values.
// Any non-fatal error becomes an exception value rooted in locals; native
// code that returned a HostException controls its name. Fatal errors panic.
func (b *Bridge) CallHost(ctx context.Context, locals *host.Locals, name string, args ...host.Value) host.Value {
	if locals == nil {
		panic(errors.InvalidInput(errors.PhaseCall, "call "+name+" without a local root set"))
	}
	res, err := b.Call(ctx, locals, name, args...)
	if err == nil {
		return res
	}
	if errors.IsFatal(err) {
		panic(err)
	}

	exnName, msg := FailureName, err.Error()
	var he *HostException
	if stderrors.As(err, &he) {
		exnName, msg = he.Name, he.Message
	}
	exn, aerr := locals.NewException(exnName, msg)
	if aerr != nil {
		panic(aerr)
	}
	return exn
}

// annotate prefixes the path of a conversion error with the call site.
func annotate(err error, name string, i int) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Path = errors.Prefix(name, errors.Prefix(fmt.Sprintf("arg%d", i), e.Path))
	}
	return err
}
