// Package bridge marshals calls from the host runtime into native functions.
//
// A Bridge combines a host heap, a Root Table and a Registry of native
// functions:
//
//	heap := host.NewHeap(nil)
//	table := roots.NewTable()
//	table.Attach(heap)
//
//	reg := bridge.NewRegistry()
//	reg.RegisterFunc("get", func(xs []int32, i int) int32 { ... })
//
//	b := bridge.New(heap, table, reg)
//	locals := heap.OpenLocals()
//	defer locals.Close()
//	res, err := b.Call(ctx, locals, "get", arr, host.Int(1))
//
// # Call Lifecycle
//
// Each call opens a Frame. Arguments are rooted as frame locals, converted
// left to right and the call fails fast on the first conversion error
// without running native code. The native function then runs with panic
// recovery, its result is checked against the signature and converted
// back into the caller's local root set, and the frame is closed: local
// roots are dropped and every root pinned with Frame.Pin is released. Roots
// promoted with Frame.Retain outlive the call.
//
// # Failures
//
// Call returns structured errors. CallHost turns them into host exception
// values instead, except for fatal errors (double release) which panic.
// Native code can raise a specific exception by returning a
// *HostException, or Frame.Raise for exceptions registered by name.
package bridge
