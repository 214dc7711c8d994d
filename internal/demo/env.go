package demo

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/leakcheck"
	"github.com/wippyai/hostbridge/roots"
	"github.com/wippyai/hostbridge/value"
)

// Options configures an Env.
type Options struct {
	CollectEvery     int
	MemoryLimitPages uint32
	// Guest loads the built-in wasm guest.
	Guest bool
}

// Env wires a heap, Root Table, registry, bridge and guest engine with the
// demo natives and a few named host closures.
type Env struct {
	Heap     *host.Heap
	Roots    *roots.Table
	Registry *bridge.Registry
	Bridge   *bridge.Bridge
	Engine   *guest.Engine
}

// NewEnv builds a ready-to-call environment.
func NewEnv(ctx context.Context, opts Options) (*Env, error) {
	cfg := host.DefaultConfig()
	if opts.CollectEvery > 0 {
		cfg.CollectEvery = opts.CollectEvery
	}
	heap := host.NewHeap(cfg)
	table := roots.NewTable()
	if err := table.Attach(heap); err != nil {
		return nil, err
	}

	env := &Env{
		Heap:     heap,
		Roots:    table,
		Registry: bridge.NewRegistry(),
	}
	env.Bridge = bridge.New(heap, table, env.Registry)

	err := multierr.Combine(Setup(heap), registerClosures(heap), Register(env.Registry))
	if err == nil {
		env.Engine, err = guest.NewEngine(ctx, &guest.Config{MemoryLimitPages: opts.MemoryLimitPages})
	}
	if err == nil && opts.Guest {
		err = env.LoadGuest(ctx, GuestName, GuestModule(), GuestWIT)
	}
	if err != nil {
		return nil, multierr.Append(err, env.Close(ctx))
	}
	return env, nil
}

// LoadGuest loads a wasm module and registers its exports as name.export.
func (e *Env) LoadGuest(ctx context.Context, name string, wasm []byte, witText string) error {
	m, err := e.Engine.Load(ctx, name, wasm, witText)
	if err != nil {
		return err
	}
	return m.Register(e.Registry)
}

// Checker returns a leak checker covering the bridge and guest memory.
func (e *Env) Checker() *leakcheck.Checker {
	return leakcheck.ForBridge(e.Bridge).With(leakcheck.Allocations("guest.allocations", e.Engine))
}

// Close shuts down the guest engine and detaches the Root Table.
func (e *Env) Close(ctx context.Context) error {
	var err error
	if e.Engine != nil {
		err = multierr.Append(err, e.Engine.Close(ctx))
	}
	return multierr.Append(err, e.Roots.Close())
}

// Invoke parses texts as literals of name's parameter types, calls name
// and formats the result. A handle parameter takes @name to refer to a
// named host value, or #id for a retained root.
func (e *Env) Invoke(ctx context.Context, name string, texts []string) (string, error) {
	fn, err := e.Registry.Lookup(name)
	if err != nil {
		return "", err
	}
	sig := fn.Signature()
	if len(texts) != len(sig.Params) {
		return "", errors.Arity(name, len(sig.Params), len(texts))
	}

	locals := e.Heap.OpenLocals()
	defer locals.Close()

	args := make([]host.Value, len(texts))
	for i, text := range texts {
		hv, err := e.parseArg(locals, strings.TrimSpace(text), sig.Params[i])
		if err != nil {
			return "", errors.ConversionFailed(errors.PhaseParse, []string{name, errors.PathIndex(i)}, "argument", err)
		}
		args[i] = hv
	}

	res, err := e.Bridge.Call(ctx, locals, name, args...)
	if err != nil {
		return "", err
	}

	if sig.Result.Kind == value.KindHandle {
		return describeHandle(e.Heap, res), nil
	}
	v, err := value.ToNative(e.Heap, res, sig.Result)
	if err != nil {
		return "", err
	}
	return value.Format(v), nil
}

func (e *Env) parseArg(locals *host.Locals, text string, t value.Type) (host.Value, error) {
	if t.Kind == value.KindHandle {
		switch {
		case strings.HasPrefix(text, "@"):
			hv, ok := e.Heap.Named(text[1:])
			if !ok {
				return host.Nil, errors.NotFound(errors.PhaseParse, "named value", text[1:])
			}
			return hv, nil
		case strings.HasPrefix(text, "#"):
			v, err := value.Parse(text[1:], value.Int64Type)
			if err != nil {
				return host.Nil, err
			}
			hv, ok := e.Roots.Get(roots.ID(v.(value.Int64)))
			if !ok {
				return host.Nil, errors.InvalidHandle(errors.PhaseParse, "root "+text+" is not live")
			}
			return hv, nil
		}
		// Anything else is a literal of unknown shape; guess from its syntax.
		t = guessType(text)
	}

	v, err := value.Parse(text, t)
	if err != nil {
		return host.Nil, err
	}
	return value.FromNative(e.Heap, locals, v)
}

func guessType(text string) value.Type {
	switch {
	case strings.HasPrefix(text, "\""):
		return value.StringType
	case strings.HasPrefix(text, "[|"), strings.HasPrefix(text, "["):
		return value.ArrayOf(value.IntType)
	case strings.ContainsAny(text, ".e") && !strings.HasPrefix(text, "("):
		return value.FloatType
	}
	return value.Int64Type
}

func describeHandle(h *host.Heap, v host.Value) string {
	tag, err := h.Tag(v)
	if err != nil {
		return v.String()
	}
	switch tag {
	case host.TagString:
		b, _ := h.Bytes(v)
		return value.Format(value.String(b)) + " " + v.String()
	case host.TagFloat:
		f, _ := h.Float(v)
		return value.Format(value.Float(f)) + " " + v.String()
	}
	n, _ := h.Len(v)
	return tag.String() + "[" + strconv.Itoa(n) + "] " + v.String()
}
