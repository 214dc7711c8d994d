package leakcheck

import (
	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/roots"
)

// Source names used by the built-in sources.
const (
	RootRegistrationsName = "roots.registrations"
	RootEntriesName       = "roots.entries"
	HeapLiveName          = "heap.live"
	ActiveFramesName      = "bridge.frames"
)

// AllocationCounter reports native allocations that have not been freed.
type AllocationCounter interface {
	Outstanding() int64
}

// RootRegistrations samples the total registration count of t.
func RootRegistrations(t *roots.Table) Source {
	return Source{Name: RootRegistrationsName, Read: t.Registrations}
}

// RootEntries samples the number of distinct objects rooted in t.
func RootEntries(t *roots.Table) Source {
	return Source{Name: RootEntriesName, Read: func() int64 { return int64(t.Len()) }}
}

// HeapLive samples the number of live host objects. With collect set, a
// collection runs first so garbage produced by the body is not counted.
func HeapLive(h *host.Heap, collect bool) Source {
	return Source{Name: HeapLiveName, Read: func() int64 {
		if collect {
			h.Collect()
		}
		return int64(h.Live())
	}}
}

// ActiveFrames samples the number of calls in flight on b.
func ActiveFrames(b *bridge.Bridge) Source {
	return Source{Name: ActiveFramesName, Read: b.ActiveFrames}
}

// Allocations samples the outstanding native allocations of c.
func Allocations(name string, c AllocationCounter) Source {
	return Source{Name: name, Read: c.Outstanding}
}

// ForBridge returns a checker over b's Root Table, heap and frames.
func ForBridge(b *bridge.Bridge) *Checker {
	return New(
		RootRegistrations(b.Roots()),
		RootEntries(b.Roots()),
		ActiveFrames(b),
		HeapLive(b.Heap(), true),
	)
}
