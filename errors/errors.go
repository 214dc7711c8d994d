package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a boundary crossing the error occurred
type Phase string

const (
	PhaseToNative   Phase = "to_native"   // host value to native value
	PhaseFromNative Phase = "from_native" // native value to host value
	PhaseRoots      Phase = "roots"       // root table operations
	PhaseCall       Phase = "call"        // call marshaling and dispatch
	PhaseCheck      Phase = "check"       // leak/consistency checking
	PhaseLoad       Phase = "load"        // native module loading
	PhaseRegister   Phase = "register"    // symbol registration
	PhaseParse      Phase = "parse"       // signature and literal parsing
)

// Kind categorizes the error
type Kind string

const (
	KindMismatch         Kind = "kind_mismatch"
	KindTruncation       Kind = "truncation"
	KindConversionFailed Kind = "conversion_failed"
	KindDoubleRelease    Kind = "double_release"
	KindLeakDetected     Kind = "leak_detected"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInvalidHandle    Kind = "invalid_handle"
	KindArity            Kind = "arity"
	KindNotFound         Kind = "not_found"
	KindNativeFailure    Kind = "native_failure"
	KindUnsupported      Kind = "unsupported"
	KindClosed           Kind = "closed"
	KindCollected        Kind = "collected"
	KindInvalidInput     Kind = "invalid_input"
	KindRegistration     Kind = "registration"
)

// Error is the structured error type used across the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string
	Actual   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != "" || e.Actual != "" {
		b.WriteString(": ")
		switch {
		case e.Expected != "" && e.Actual != "":
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(", got ")
			b.WriteString(e.Actual)
		case e.Expected != "":
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		default:
			b.WriteString("got ")
			b.WriteString(e.Actual)
		}
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Actual != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected kind or type name
func (b *Builder) Expected(t string) *Builder {
	b.err.Expected = t
	return b
}

// Actual sets the observed kind or type name
func (b *Builder) Actual(t string) *Builder {
	b.err.Actual = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Target returns a phase-less error usable with errors.Is to match any
// error of the given kind.
func Target(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	return stderrors.Is(err, Target(kind))
}

// IsFatal reports whether err signals a broken root-tracking invariant.
// Fatal errors are never turned into host-visible failure values.
func IsFatal(err error) bool {
	return HasKind(err, KindDoubleRelease)
}

// Convenience constructors for common error patterns

// Mismatch creates a kind mismatch error
func Mismatch(phase Phase, path []string, expected, actual string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindMismatch,
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

// Truncation creates a numeric truncation error
func Truncation(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTruncation,
		Path:     path,
		Expected: target,
		Detail:   fmt.Sprintf("value %v does not fit %s", value, target),
		Value:    value,
	}
}

// ConversionFailed wraps the first element failure of an aggregate conversion
func ConversionFailed(phase Phase, path []string, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConversionFailed,
		Path:   path,
		Detail: fmt.Sprintf("%s conversion aborted", what),
		Cause:  cause,
	}
}

// DoubleRelease creates a double release error
func DoubleRelease(id uint64) *Error {
	return &Error{
		Phase:  PhaseRoots,
		Kind:   KindDoubleRelease,
		Detail: fmt.Sprintf("root %#x already released", id),
		Value:  id,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidHandle creates an invalid handle error
func InvalidHandle(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: detail,
	}
}

// Arity creates an argument count error
func Arity(name string, expected, actual int) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindArity,
		Path:     []string{name},
		Expected: fmt.Sprintf("%d arguments", expected),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NativeFailure wraps a failure raised by native code
func NativeFailure(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFailure,
		Path:   []string{name},
		Detail: "native function failed",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Closed creates an error for operations on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Collected creates an error for access to a collected host object
func Collected(phase Phase, path []string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCollected,
		Path:   path,
		Detail: "host object no longer live",
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Leak describes growth of one counter across a checked scope
type Leak struct {
	Source string
	Before int64
	After  int64
}

// Delta returns how much the counter grew
func (l Leak) Delta() int64 {
	return l.After - l.Before
}

// LeakDetected creates a leak error naming every counter that grew
func LeakDetected(leaks []Leak) *Error {
	parts := make([]string, 0, len(leaks))
	for _, l := range leaks {
		parts = append(parts, fmt.Sprintf("%s +%d (%d -> %d)", l.Source, l.Delta(), l.Before, l.After))
	}
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindLeakDetected,
		Detail: strings.Join(parts, ", "),
		Value:  leaks,
	}
}

// PathIndex renders an element index as a path segment
func PathIndex(i int) string {
	return fmt.Sprintf("[%d]", i)
}

// Prefix returns path with segment prepended, for annotating errors
// raised by nested conversions.
func Prefix(segment string, path []string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, segment)
	return append(out, path...)
}

// Extend returns a copy of path with segment appended. The result never
// shares a backing array with path.
func Extend(path []string, segment string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, segment)
}
