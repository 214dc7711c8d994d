// Package guest runs native functions implemented as WebAssembly modules.
//
// A guest is a core wasm module plus WIT declarations of the exports to
// expose. Each export becomes a bridge.Func named module.export:
//
//	eng, _ := guest.NewEngine(ctx, &guest.Config{MemoryLimitPages: 256})
//	mod, _ := eng.Load(ctx, "wasm", bin, `export get: func(xs: list<s32>, i: int) -> s32;`)
//	mod.Register(registry)
//
// # Lowering
//
// Scalars map onto core types: bool and s32 to i32, s64 and int to i64,
// f64 to f64. Strings and lists are copied into guest memory through the
// module's alloc export and passed as (ptr, len); the buffers are freed
// before the call returns, and Outstanding reports any that were not.
// A handle parameter is passed as an index into the call's handle list;
// guests hand it to the hostbridge.apply_int and hostbridge.apply_float
// imports to call the host closure behind it.
//
// Results are scalars or handles. Calls into one module are serialized.
package guest
