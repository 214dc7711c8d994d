// Package demo provides ready-made natives, host closures and a wasm guest
// for the CLI, the example program and end-to-end tests.
//
// The Go natives cover array indexing with an out-of-bounds sentinel,
// callbacks into host closures, records with optional fields, tuples,
// deep cloning and roots retained across calls. The guest module exposes
// the same indexing function compiled to wasm, plus numeric and string
// helpers and a function that calls back into the host.
package demo
