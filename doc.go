// Package hostbridge connects a garbage-collected host heap to native Go
// functions and WebAssembly guests.
//
// Host values live on a managed heap whose collector stops the world and
// relocates every survivor. Native code never holds raw host words across
// an allocation; it either converts them to owned values or registers them
// in the Root Table, which reports them to the collector and updates them
// when objects move.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	hostbridge/
//	├── host/            Managed heap, host words, local roots and the collector
//	├── value/           Native value model, conversion, comparison and literals
//	├── roots/           Root Table: retained host values with stable IDs
//	├── bridge/          Native registry and call marshaling with call frames
//	├── leakcheck/       Before/after counters that flag leaked roots and objects
//	├── guest/           wazero-backed natives exported by core wasm modules
//	├── errors/          Structured error types for debugging
//	└── cmd/bridgectl/   CLI and TUI for calling registered natives
//
// # Quick Start
//
// Register a Go function and call it with host values:
//
//	heap := host.NewHeap(host.DefaultConfig())
//	table := roots.NewTable()
//	if err := table.Attach(heap); err != nil {
//	    log.Fatal(err)
//	}
//	defer table.Close()
//
//	reg := bridge.NewRegistry()
//	reg.MustRegisterFunc("index", func(xs []int32, i int) int32 {
//	    return int32(value.IndexOr(value.Int32s(xs...), i).(value.Int32))
//	})
//
//	b := bridge.New(heap, table, reg)
//	locals := heap.OpenLocals()
//	defer locals.Close()
//	res, err := b.Call(ctx, locals, "index", arr, host.Int(1))
//
// The result is rooted in the caller's locals. Arguments are converted and
// type-checked before the native runs. A
// conversion failure names the offending path, for example index.arg0[2].
//
// # Keeping Values Alive
//
// Values that must outlive a call are retained:
//
//	id, err := table.Retain(v)
//	defer table.Release(id)
//
//	v, ok := table.Get(id) // current address, even after collections
//
// Releasing an ID twice is a fatal double release. leakcheck compares the
// Root Table and heap counters around a body and reports any growth.
//
// # Guests
//
// guest.Engine loads core wasm modules together with WIT function
// declarations. Strings and lists are copied into guest memory through the
// module's alloc and free exports, and every export is registered under
// module.export:
//
//	engine, _ := guest.NewEngine(ctx, nil)
//	mod, err := engine.Load(ctx, "math", wasmBytes, witText)
//	err = mod.Register(reg)
//	res, err := b.Call(ctx, locals, "math.sum", arr)
//
// Guests call back into host closures through the hostbridge.apply_int and
// hostbridge.apply_float imports.
package hostbridge
