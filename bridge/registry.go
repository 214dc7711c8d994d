package bridge

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/value"
)

// Registry maps stable symbol names to native functions.
type Registry struct {
	funcs map[string]Func
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Func),
	}
}

// Register adds fn under its signature name. Names are unique.
func (r *Registry) Register(fn Func) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseRegister, "function cannot be nil")
	}
	name := fn.Signature().Name
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "function name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[name]; ok {
		return errors.Registration(name, fmt.Errorf("symbol %q already registered", name))
	}
	r.funcs[name] = fn
	Logger().Debug("native registered", zapSig(fn.Signature())...)
	return nil
}

// RegisterNative registers a NativeFunc built from sig and fn.
func (r *Registry) RegisterNative(sig Signature, fn func(ctx context.Context, f *Frame, args []value.Value) (value.Value, error)) error {
	return r.Register(&NativeFunc{Sig: sig, Fn: fn})
}

// RegisterFunc derives a signature from a Go function by reflection and
// registers it. Supported parameter and result types are int, int32,
// int64, float64, bool, string, []T (array), *T (option), structs
// (records) and value.Handle. The function may take a leading
// context.Context and/or *Frame and may return a trailing error.
func (r *Registry) RegisterFunc(name string, fn any) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "function name cannot be empty")
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return errors.New(errors.PhaseRegister, errors.KindMismatch).
			Expected("func").
			Actual(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	rf, err := newReflectFunc(name, rv)
	if err != nil {
		return errors.Registration(name, err)
	}
	return r.Register(rf)
}

// MustRegisterFunc is RegisterFunc that panics on error, for package-level
// registration tables.
func (r *Registry) MustRegisterFunc(name string, fn any) {
	if err := r.RegisterFunc(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "native", name)
	}
	return fn, nil
}

// Names returns every registered symbol in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}
