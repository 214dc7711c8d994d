// Package leakcheck verifies that a unit of work leaves the bridge the way
// it found it.
//
// A Checker samples a set of named counters (Root Table registrations,
// live host objects, open call frames, outstanding guest allocations)
// before and after running a body. Any counter that grew is reported as a
// leak:
//
//	c := leakcheck.ForBridge(b)
//	if !c.Check(func() error {
//		locals := heap.OpenLocals()
//		defer locals.Close()
//		_, err := b.Call(ctx, locals, "get", arr, host.Int(0))
//		return err
//	}) {
//		// leaked or failed
//	}
//
// The after snapshot is taken on every exit path, including panics.
package leakcheck
