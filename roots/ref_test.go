package roots

import (
	"testing"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

func TestRef(t *testing.T) {
	h := host.NewHeap(nil)
	table := NewTable()
	defer table.Close()
	if err := table.Attach(h); err != nil {
		t.Fatal(err)
	}

	v, _ := h.NewString([]byte("held"))
	a, err := Hold(table, v)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hold(table, v)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() != b.ID() || table.Count(a.ID()) != 2 {
		t.Fatalf("refs should share one entry with count 2, got count %d", table.Count(a.ID()))
	}

	h.Collect()
	if got, ok := a.Value(); !ok || got != v {
		t.Fatalf("Value = %v, %v", got, ok)
	}

	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if err := a.Release(); !errors.HasKind(err, errors.KindDoubleRelease) {
		t.Fatalf("second Release err = %v", err)
	}
	if table.Count(b.ID()) != 1 {
		t.Fatal("second Release on a must not consume b's registration")
	}
	if _, ok := a.Value(); ok {
		t.Error("released ref still yields a value")
	}

	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
	h.Collect()
	if h.IsLive(v) {
		t.Error("object survived after every ref was released")
	}
}

func TestRelease_AfterClose(t *testing.T) {
	h := host.NewHeap(nil)
	table := NewTable()
	if err := table.Attach(h); err != nil {
		t.Fatal(err)
	}

	v, _ := h.NewString([]byte("held"))
	ref, err := Hold(table, v)
	if err != nil {
		t.Fatal(err)
	}
	id, err := table.Retain(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		release func() error
	}{
		{"ref", ref.Release},
		{"table", func() error { return table.Release(id) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.release()
			if !errors.HasKind(err, errors.KindClosed) {
				t.Errorf("err = %v, want closed", err)
			}
			if errors.IsFatal(err) {
				t.Errorf("release after close must not be fatal: %v", err)
			}
		})
	}
}

func TestHold_Immediate(t *testing.T) {
	table := NewTable()
	defer table.Close()

	if _, err := Hold(table, host.Int(1)); !errors.HasKind(err, errors.KindInvalidHandle) {
		t.Errorf("err = %v", err)
	}
}
