package demo

import (
	"context"

	"github.com/wippyai/hostbridge/host"
)

// Named host closures available to natives as @name arguments.
const (
	ClosureSucc   = "succ"
	ClosureDouble = "double"
	ClosureSum    = "sum"
	ClosureRaise  = "raise"
)

func registerClosures(h *host.Heap) error {
	closures := map[string]host.ClosureFunc{
		ClosureSucc:   intOp(func(x int64) int64 { return x + 1 }),
		ClosureDouble: intOp(func(x int64) int64 { return 2 * x }),
		ClosureSum: func(ctx context.Context, h *host.Heap, locals *host.Locals, self host.Value, args []host.Value) (host.Value, error) {
			elems, err := h.Fields(args[0])
			if err != nil {
				return host.Nil, err
			}
			var total int64
			for _, e := range elems {
				total += e.Int()
			}
			return host.Int(total), nil
		},
		ClosureRaise: func(ctx context.Context, h *host.Heap, locals *host.Locals, self host.Value, args []host.Value) (host.Value, error) {
			exn, _ := h.Named(NotFound)
			return exn, nil
		},
	}
	locals := h.OpenLocals()
	defer locals.Close()
	for name, fn := range closures {
		v, err := locals.NewClosure(fn)
		if err != nil {
			return err
		}
		h.Register(name, v)
	}
	return nil
}

func intOp(op func(int64) int64) host.ClosureFunc {
	return func(ctx context.Context, h *host.Heap, locals *host.Locals, self host.Value, args []host.Value) (host.Value, error) {
		if len(args) != 1 || !args[0].IsImmediate() {
			return locals.NewException("Invalid_argument", "expected one int")
		}
		return host.Int(op(args[0].Int())), nil
	}
}
