// Package roots tracks host objects that native code keeps across calls.
//
// The host collector only keeps an object alive if something reports it
// during a scan. Native code that stores a host reference beyond the
// current call retains it here; the table reports every retained identity
// to the collector it is attached to.
//
// # Registration Counts
//
// Each identity has one entry with a count:
//
//	table := roots.NewTable()
//	table.Attach(heap)
//
//	id, _ := table.Retain(v)   // count 1
//	id2, _ := table.Retain(v)  // same id, count 2
//	table.Release(id)          // count 1
//	table.Release(id2)         // entry destroyed
//	table.Release(id)          // double release
//
// Releasing more times than retained is a double release, a fatal
// bookkeeping error (see errors.IsFatal). IDs carry a generation, so a
// stale ID cannot decrement an entry created later in a recycled slot.
//
// # Refs
//
// Ref wraps one registration for code that holds a reference in a struct
// field or a goroutine:
//
//	ref, _ := roots.Hold(table, v)
//	defer ref.Release()
//
// # Observers
//
// Observers receive a Retained or Released event for each operation,
// outside the table lock. Events from concurrent callers may arrive in any
// order relative to each other.
//
// # Concurrency
//
// All methods are safe for concurrent use and never block on anything but
// the table's own lock. The table never calls into the collector after
// Attach, so collectors may call Scan while holding their own lock.
package roots
