package leakcheck

import (
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
)

// Source is a named counter that must not grow across a checked scope.
type Source struct {
	Name string
	Read func() int64
}

// Sample is one reading of a Source.
type Sample struct {
	Name  string
	Value int64
}

// Snapshot holds one reading per source, in source order.
type Snapshot []Sample

// Get returns the reading for name.
func (s Snapshot) Get(name string) (int64, bool) {
	for _, smp := range s {
		if smp.Name == name {
			return smp.Value, true
		}
	}
	return 0, false
}

// Checker compares counter snapshots around a body of work.
type Checker struct {
	sources []Source
}

// New creates a checker over sources.
func New(sources ...Source) *Checker {
	return &Checker{sources: append([]Source(nil), sources...)}
}

// With returns a copy of c that also samples sources.
func (c *Checker) With(sources ...Source) *Checker {
	out := &Checker{sources: make([]Source, 0, len(c.sources)+len(sources))}
	out.sources = append(out.sources, c.sources...)
	out.sources = append(out.sources, sources...)
	return out
}

// Sources returns the names of the sampled counters.
func (c *Checker) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name
	}
	return names
}

// Snapshot reads every source.
func (c *Checker) Snapshot() Snapshot {
	snap := make(Snapshot, len(c.sources))
	for i, s := range c.sources {
		snap[i] = Sample{Name: s.Name, Value: s.Read()}
	}
	return snap
}

// Diff returns every counter that grew from before to after. Counters
// missing from after are ignored.
func Diff(before, after Snapshot) []errors.Leak {
	var leaks []errors.Leak
	for _, b := range before {
		a, ok := after.Get(b.Name)
		if !ok || a <= b.Value {
			continue
		}
		leaks = append(leaks, errors.Leak{Source: b.Name, Before: b.Value, After: a})
	}
	return leaks
}

// Run executes body between two snapshots. It returns the body's error
// combined with a LeakDetected error when any counter grew.
//
// The after snapshot is taken however body exits. A panicking body is
// checked first and the panic is then re-raised.
func (c *Checker) Run(body func() error) (err error) {
	before := c.Snapshot()
	defer func() {
		r := recover()

		leaks := Diff(before, c.Snapshot())
		if len(leaks) > 0 {
			lerr := errors.LeakDetected(leaks)
			Logger().Warn("leak detected", zap.String("delta", lerr.Detail), zap.Bool("panicked", r != nil))
			err = multierr.Append(err, lerr)
		}

		if r != nil {
			panic(r)
		}
	}()

	return body()
}

// Check runs body and reports whether it succeeded without leaking.
func (c *Checker) Check(body func() error) bool {
	err := c.Run(body)
	if err != nil {
		Logger().Debug("check failed", zap.Error(err))
	}
	return err == nil
}

// Verify runs body and fails t if any counter grew.
func Verify(t testing.TB, c *Checker, body func()) {
	t.Helper()
	err := c.Run(func() error {
		body()
		return nil
	})
	if err != nil {
		t.Errorf("leakcheck: %v", err)
	}
}

// Assert is Verify for bodies that return an error; the body error also
// fails t.
func Assert(t testing.TB, c *Checker, body func() error) {
	t.Helper()
	for _, err := range multierr.Errors(c.Run(body)) {
		t.Errorf("leakcheck: %v", err)
	}
}
