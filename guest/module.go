package guest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/internal/wasmgen"
	"github.com/wippyai/hostbridge/value"
)

// Module is an instantiated guest whose exports are callable as bridge
// natives.
type Module struct {
	name        string
	mod         api.Module
	compiled    wazero.CompiledModule
	allocFn     api.Function
	freeFn      api.Function
	funcs       []*Func
	mu          sync.Mutex
	outstanding atomic.Int64
}

func newModule(name string, inst api.Module, compiled wazero.CompiledModule, sigs []bridge.Signature) (*Module, error) {
	m := &Module{
		name:     name,
		mod:      inst,
		compiled: compiled,
		allocFn:  inst.ExportedFunction(wasmgen.AllocExport),
		freeFn:   inst.ExportedFunction(wasmgen.FreeExport),
	}

	for _, sig := range sigs {
		fn := inst.ExportedFunction(sig.Name)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseLoad, "guest export", name+"."+sig.Name)
		}
		if err := m.check(sig, fn.Definition()); err != nil {
			return nil, err
		}
		export := sig.Name
		sig.Name = name + "." + export
		m.funcs = append(m.funcs, &Func{module: m, export: export, sig: sig, fn: fn})
	}
	return m, nil
}

// check verifies that def is the core lowering of sig and that the module
// can allocate when sig needs memory.
func (m *Module) check(sig bridge.Signature, def api.FunctionDefinition) error {
	var want []api.ValueType
	needsMemory := false
	for _, p := range sig.Params {
		flat, err := flatTypes(p)
		if err != nil {
			return errors.Registration(sig.Name, err)
		}
		want = append(want, flat...)
		needsMemory = needsMemory || p.Kind == value.KindString || p.Kind == value.KindArray
	}
	results, err := resultTypes(sig.Result)
	if err != nil {
		return errors.Registration(sig.Name, err)
	}

	if !slices.Equal(def.ParamTypes(), want) || !slices.Equal(def.ResultTypes(), results) {
		return errors.Registration(sig.Name, fmt.Errorf("core signature %s does not lower %s",
			coreSig(def.ParamTypes(), def.ResultTypes()), coreSig(want, results)))
	}
	if needsMemory && (m.allocFn == nil || m.freeFn == nil || m.mod.Memory() == nil) {
		return errors.Registration(sig.Name, fmt.Errorf("module must export memory, %s and %s", wasmgen.AllocExport, wasmgen.FreeExport))
	}
	return nil
}

func coreSig(params, results []api.ValueType) string {
	s := "("
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(p)
	}
	s += ") -> ("
	for i, r := range results {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(r)
	}
	return s + ")"
}

// Name returns the module name given to Load.
func (m *Module) Name() string { return m.name }

// Funcs returns the exported natives in declaration order.
func (m *Module) Funcs() []*Func {
	return append([]*Func(nil), m.funcs...)
}

// Func returns the native for the export name.
func (m *Module) Func(name string) (*Func, bool) {
	for _, f := range m.funcs {
		if f.export == name {
			return f, true
		}
	}
	return nil, false
}

// Register adds every exported native to reg as module.export.
func (m *Module) Register(reg *bridge.Registry) error {
	var err error
	for _, f := range m.funcs {
		err = multierr.Append(err, reg.Register(f))
	}
	return err
}

// Outstanding returns the number of live guest allocations made for call
// arguments. It is zero between calls.
func (m *Module) Outstanding() int64 {
	return m.outstanding.Load()
}

func (m *Module) alloc(ctx context.Context, size, align uint32) (uint32, error) {
	res, err := m.allocFn.Call(ctx, uint64(size), uint64(align))
	if err != nil {
		return 0, err
	}
	m.outstanding.Add(1)
	return uint32(res[0]), nil
}

func (m *Module) free(ctx context.Context, ptr, size uint32) error {
	if _, err := m.freeFn.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		Logger().Error("guest free failed", zap.String("module", m.name), zap.Uint32("ptr", ptr), zap.Error(err))
		return errors.Wrap(errors.PhaseCall, errors.KindNativeFailure, err, "guest free")
	}
	m.outstanding.Add(-1)
	return nil
}

func (m *Module) close(ctx context.Context) error {
	return multierr.Append(m.mod.Close(ctx), m.compiled.Close(ctx))
}

// Func is one guest export adapted to bridge.Func.
type Func struct {
	module *Module
	export string
	sig    bridge.Signature
	fn     api.Function
}

func (f *Func) Signature() bridge.Signature { return f.sig }

// Invoke lowers args into the guest, runs the export and lifts its result.
// Argument buffers are freed before Invoke returns.
func (f *Func) Invoke(ctx context.Context, frame *bridge.Frame, args []value.Value) (res value.Value, err error) {
	m := f.module
	outer, _ := callFrom(ctx)
	if outer.active(m) {
		return nil, errors.Unsupported(errors.PhaseCall, "re-entrant call into guest module "+m.name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &call{module: m, frame: frame, parent: outer}
	defer func() {
		err = multierr.Append(err, c.release(ctx))
	}()

	stack := make([]uint64, 0, len(args)*2)
	for i, a := range args {
		stack, err = c.lower(ctx, stack, a, []string{f.sig.Name, errors.PathIndex(i)})
		if err != nil {
			return nil, err
		}
	}

	raw, err := f.fn.Call(context.WithValue(ctx, callKey{}, c), stack...)
	if err != nil {
		if hostErr := unwrapHostError(err); hostErr != nil {
			return nil, hostErr
		}
		return nil, errors.NativeFailure(f.sig.Name, err)
	}
	return c.lift(raw, f.sig.Result, f.sig.Name)
}
