package bridge

import (
	"context"
	"strings"

	"github.com/wippyai/hostbridge/value"
)

// Signature declares a native function's name and the value types it
// consumes and produces.
type Signature struct {
	Name   string
	Params []value.Type
	Result value.Type
}

// String renders the signature in host notation, e.g.
// "test_func_1 : int32 array -> int -> int32".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(" : ")
	if len(s.Params) == 0 {
		b.WriteString("unit")
	}
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(" -> ")
		}
		ps := p.String()
		if p.Kind == value.KindTuple {
			ps = "(" + ps + ")"
		}
		b.WriteString(ps)
	}
	b.WriteString(" -> ")
	b.WriteString(s.Result.String())
	return b.String()
}

// Func is a native function callable through the bridge. Invoke receives
// arguments already converted and checked against Signature().Params.
type Func interface {
	Signature() Signature
	Invoke(ctx context.Context, f *Frame, args []value.Value) (value.Value, error)
}

// NativeFunc adapts a plain function to Func.
type NativeFunc struct {
	Fn  func(ctx context.Context, f *Frame, args []value.Value) (value.Value, error)
	Sig Signature
}

func (n *NativeFunc) Signature() Signature { return n.Sig }

func (n *NativeFunc) Invoke(ctx context.Context, f *Frame, args []value.Value) (value.Value, error) {
	return n.Fn(ctx, f, args)
}

// HostException is returned by native code that wants the host to observe
// a specific exception rather than a generic failure.
type HostException struct {
	Name    string
	Message string
}

func (e *HostException) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}
