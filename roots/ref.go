package roots

import (
	"sync"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// Ref holds one registration of a host object on behalf of native code
// that outlives a single call. Several Refs may share an object; each owns
// exactly one registration.
type Ref struct {
	table    *Table
	id       ID
	mu       sync.Mutex
	released bool
}

// Hold retains v in t and returns a Ref owning that registration.
func Hold(t *Table, v host.Value) (*Ref, error) {
	id, err := t.Retain(v)
	if err != nil {
		return nil, err
	}
	return &Ref{table: t, id: id}, nil
}

// ID returns the root ID backing the reference.
func (r *Ref) ID() ID {
	return r.id
}

// Value returns the host word for the held object. ok is false once the
// reference has been released.
func (r *Ref) Value() (host.Value, bool) {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released {
		return host.Nil, false
	}
	return r.table.Get(r.id)
}

// Release gives up the registration. A second Release is a double release
// even if other holders still keep the object rooted.
func (r *Ref) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return errors.DoubleRelease(uint64(r.id))
	}
	r.released = true
	r.mu.Unlock()
	return r.table.Release(r.id)
}
