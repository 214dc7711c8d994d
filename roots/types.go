package roots

import (
	"fmt"

	"github.com/wippyai/hostbridge/host"
)

// ID is an opaque root identifier. The low 32 bits select a slot, the high
// 32 bits carry the slot's generation, so an ID issued for a slot that has
// since been recycled never matches. ID 0 is reserved and always invalid.
type ID uint64

func makeID(slot, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(slot+1))
}

func (id ID) slot() (uint32, bool) {
	s := uint32(id)
	if s == 0 {
		return 0, false
	}
	return s - 1, true
}

func (id ID) gen() uint32 {
	return uint32(id >> 32)
}

func (id ID) String() string {
	if id == 0 {
		return "root(invalid)"
	}
	return fmt.Sprintf("root(%d/%d)", uint32(id), id.gen())
}

// EventType distinguishes root lifecycle notifications.
type EventType uint8

const (
	EventRetained EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventRetained:
		return "retained"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event describes one retain or release. Count is the registration count
// after the operation; zero on a release means the entry was destroyed.
type Event struct {
	Object host.ObjectID
	ID     ID
	Count  uint32
	Type   EventType
}

// Observer receives notifications about root lifecycle events.
// Observers are called outside the table lock.
type Observer interface {
	OnRootEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRootEvent(e Event) { f(e) }

// Entry is a snapshot of one live root.
type Entry struct {
	Object host.ObjectID
	ID     ID
	Count  uint32
}
