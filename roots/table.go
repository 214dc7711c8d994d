package roots

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// Table is the set of host objects native code holds across collections,
// each with a registration count. It implements host.ScanParticipant and is
// safe for concurrent use. The table never calls into the heap, so it may
// be scanned while the heap lock is held.
type Table struct {
	index         map[host.ObjectID]uint32
	unregister    func()
	entries       []entry
	freeList      []uint32
	observers     []Observer
	registrations int64
	obsMu         sync.RWMutex
	mu            sync.RWMutex
	attached      bool
	closed        bool
}

type entry struct {
	object host.ObjectID
	count  uint32
	gen    uint32
	valid  bool
}

// NewTable creates an empty root table.
func NewTable() *Table {
	return &Table{
		index:    make(map[host.ObjectID]uint32, 64),
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Attach registers the table with a collector so that every retained
// object is reported on each collection. A table attaches at most once.
// Registration happens outside the table lock: collectors scan with their
// own lock held, so the order is always collector then table.
func (t *Table) Attach(c host.Collector) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.Closed(errors.PhaseRoots, "root table")
	}
	if t.attached {
		t.mu.Unlock()
		return errors.InvalidInput(errors.PhaseRoots, "root table already attached")
	}
	t.attached = true
	t.mu.Unlock()

	unregister := c.RegisterScanParticipant(t)

	t.mu.Lock()
	closed := t.closed
	if !closed {
		t.unregister = unregister
	}
	t.mu.Unlock()

	if closed {
		unregister()
	}
	return nil
}

// Retain registers one more native reference to v's identity. Retaining the
// same identity again returns the same ID with a higher count. The caller
// guarantees v is live.
func (t *Table) Retain(v host.Value) (ID, error) {
	obj := v.Object()
	if obj == 0 {
		return 0, errors.InvalidHandle(errors.PhaseRoots, "cannot root immediate or nil value "+v.String())
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.Closed(errors.PhaseRoots, "root table")
	}

	var slot uint32
	if s, ok := t.index[obj]; ok {
		slot = s
		t.entries[slot].count++
	} else {
		if n := len(t.freeList); n > 0 {
			slot = t.freeList[n-1]
			t.freeList = t.freeList[:n-1]
			e := &t.entries[slot]
			e.object = obj
			e.count = 1
			e.gen++
			e.valid = true
		} else {
			slot = uint32(len(t.entries))
			t.entries = append(t.entries, entry{object: obj, count: 1, gen: 1, valid: true})
		}
		t.index[obj] = slot
	}
	t.registrations++

	e := t.entries[slot]
	id := makeID(slot, e.gen)
	t.mu.Unlock()

	t.notify(Event{Type: EventRetained, ID: id, Object: obj, Count: e.count})
	return id, nil
}

// Release drops one registration. Releasing an ID whose entry is already
// gone (or that was never issued) is a double release. After Close every
// release reports Closed, since Close already dropped all entries.
func (t *Table) Release(id ID) error {
	slot, ok := id.slot()
	if !ok {
		return errors.DoubleRelease(uint64(id))
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.Closed(errors.PhaseRoots, "root table")
	}
	if int(slot) >= len(t.entries) {
		t.mu.Unlock()
		return errors.DoubleRelease(uint64(id))
	}
	e := &t.entries[slot]
	if !e.valid || e.gen != id.gen() || e.count == 0 {
		t.mu.Unlock()
		Logger().Error("double release", zap.Stringer("root", id))
		return errors.DoubleRelease(uint64(id))
	}

	e.count--
	t.registrations--
	obj, count := e.object, e.count
	if count == 0 {
		e.valid = false
		e.object = 0
		delete(t.index, obj)
		t.freeList = append(t.freeList, slot)
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventReleased, ID: id, Object: obj, Count: count})
	return nil
}

// Scan returns exactly the identities whose registration count is
// positive, in slot order.
func (t *Table) Scan() []host.ObjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]host.ObjectID, 0, len(t.index))
	for _, e := range t.entries {
		if e.valid {
			out = append(out, e.object)
		}
	}
	return out
}

// Get returns the host word for a live ID.
func (t *Table) Get(id ID) (host.Value, bool) {
	e, ok := t.lookup(id)
	if !ok {
		return host.Nil, false
	}
	return host.Ref(e.object), true
}

// Count returns the registration count of id, or 0 if it is not live.
func (t *Table) Count(id ID) uint32 {
	e, ok := t.lookup(id)
	if !ok {
		return 0
	}
	return e.count
}

// Lookup returns the ID currently rooting v, if any.
func (t *Table) Lookup(v host.Value) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	slot, ok := t.index[v.Object()]
	if !ok {
		return 0, false
	}
	return makeID(slot, t.entries[slot].gen), true
}

func (t *Table) lookup(id ID) (entry, bool) {
	slot, ok := id.slot()
	if !ok {
		return entry{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(slot) >= len(t.entries) {
		return entry{}, false
	}
	e := t.entries[slot]
	if !e.valid || e.gen != id.gen() {
		return entry{}, false
	}
	return e, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Registrations returns the sum of all registration counts.
func (t *Table) Registrations() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.registrations
}

// Entries returns a snapshot of every live root in slot order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.index))
	for i, e := range t.entries {
		if e.valid {
			out = append(out, Entry{ID: makeID(uint32(i), e.gen), Object: e.object, Count: e.count})
		}
	}
	return out
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close detaches the table from its collector and stops accepting
// retains. Outstanding entries are logged and dropped; their objects
// become collectable.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	unregister := t.unregister
	t.unregister = nil

	outstanding := len(t.index)
	registrations := t.registrations
	t.entries = nil
	t.freeList = nil
	t.index = make(map[host.ObjectID]uint32)
	t.registrations = 0
	t.mu.Unlock()

	if unregister != nil {
		unregister()
	}
	if outstanding > 0 {
		Logger().Warn("root table closed with outstanding entries",
			zap.Int("entries", outstanding),
			zap.Int64("registrations", registrations))
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnRootEvent(e)
	}
}
