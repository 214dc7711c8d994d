package guest

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
)

// HostModule is the import namespace guests use to call back into host
// closures.
const HostModule = "hostbridge"

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps each guest's linear memory in 64KiB pages.
	// 0 keeps the wazero default.
	MemoryLimitPages uint32
}

// Engine runs guest modules. Each loaded module is instantiated once and
// its calls are serialized.
type Engine struct {
	runtime wazero.Runtime
	mu      sync.Mutex
	modules map[string]*Module
	closed  bool
}

// NewEngine creates an engine and instantiates the host callback module.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	rcfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)

	if err := instantiateHostModule(ctx, rt); err != nil {
		return nil, multierr.Append(errors.Wrap(errors.PhaseLoad, errors.KindNativeFailure, err, "instantiate host module"), rt.Close(ctx))
	}

	return &Engine{
		runtime: rt,
		modules: make(map[string]*Module),
	}, nil
}

// Load compiles and instantiates a core wasm module. witText declares the
// exported functions to expose; each must exist with a matching core
// signature. The module must export memory, alloc and free when any
// function takes a string or list.
func (e *Engine) Load(ctx context.Context, name string, wasm []byte, witText string) (*Module, error) {
	sigs, err := ParseSignatures(witText)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.Closed(errors.PhaseLoad, "guest engine")
	}
	if _, ok := e.modules[name]; ok {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module "+name+" already loaded")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "compile module "+name)
	}
	inst, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, multierr.Append(
			errors.Wrap(errors.PhaseLoad, errors.KindNativeFailure, err, "instantiate module "+name),
			compiled.Close(ctx),
		)
	}

	m, err := newModule(name, inst, compiled, sigs)
	if err != nil {
		return nil, multierr.Combine(err, inst.Close(ctx), compiled.Close(ctx))
	}
	e.modules[name] = m

	Logger().Info("guest module loaded", zap.String("module", name), zap.Int("funcs", len(m.funcs)))
	return m, nil
}

// Module returns a loaded module by name.
func (e *Engine) Module(name string) (*Module, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.modules[name]
	return m, ok
}

// Outstanding returns guest allocations not yet freed across all modules.
func (e *Engine) Outstanding() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int64
	for _, m := range e.modules {
		n += m.Outstanding()
	}
	return n
}

// Close releases all modules and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	mods := e.modules
	e.modules = nil
	e.mu.Unlock()

	var err error
	for _, m := range mods {
		err = multierr.Append(err, m.close(ctx))
	}
	return multierr.Append(err, e.runtime.Close(ctx))
}
