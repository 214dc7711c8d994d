// Package errors provides structured error types for the host bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, expected/actual kind names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseToNative, errors.KindMismatch).
//		Path("args", "[1]").
//		Expected("int32").
//		Actual("string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Mismatch(errors.PhaseToNative, path, "int32", "string")
//	err := errors.OutOfBounds(errors.PhaseCall, path, 10, 5)
//
// Kinds map onto the bridge's failure classes. Marshaling failures
// (kind_mismatch, truncation, conversion_failed) are recoverable and surface
// to the host as failure values. double_release means the root-tracking
// invariant is broken; IsFatal reports it and the bridge never swallows it.
//
// All errors implement the standard error interface and support errors.Is/As.
// Target(kind) matches any phase:
//
//	if errors.Is(err, hberrors.Target(hberrors.KindTruncation)) { ... }
package errors
