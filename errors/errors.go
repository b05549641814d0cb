package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the resource lifecycle the error occurred
type Phase string

const (
	PhaseAlloc   Phase = "alloc"   // cell allocation
	PhaseWrap    Phase = "wrap"    // wrapper attachment
	PhaseTrace   Phase = "trace"   // trace callbacks
	PhaseCollect Phase = "collect" // collection passes
	PhaseRealm   Phase = "realm"   // realm registry operations
	PhaseRuntime Phase = "runtime" // everything else
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation    Kind = "allocation"
	KindDoubleWrap    Kind = "double_wrap"
	KindTornDown      Kind = "torn_down"
	KindInvalidHandle Kind = "invalid_handle"
	KindReentrant     Kind = "reentrant"
	KindNotFound      Kind = "not_found"
	KindInvalidInput  Kind = "invalid_input"
)

// Error is the structured error type used throughout the bridge.
//
// Only boundary-crossing failures are reported this way; pure
// memory-management failures (allocation exhaustion, re-entrant
// collection, a missed trace) are not recoverable and panic instead.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
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

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the resource type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
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

// Convenience constructors for common error patterns

// DoubleWrap reports an attempt to attach a second wrapper to a cell
// that already has a live one. Overwriting would orphan the first
// wrapper, so the attempt is rejected instead.
func DoubleWrap(typeName string) *Error {
	return &Error{
		Phase:  PhaseWrap,
		Kind:   KindDoubleWrap,
		Type:   typeName,
		Detail: "cell already has a wrapper",
	}
}

// TornDown reports use of a realm after teardown.
func TornDown(op string) *Error {
	return &Error{
		Phase:  PhaseRealm,
		Kind:   KindTornDown,
		Detail: fmt.Sprintf("%s on torn-down realm", op),
	}
}

// AllocationFailed creates an allocation failure error. Callers treat
// this as fatal; it exists so the panic message carries structure.
func AllocationFailed(size, limit int) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("allocating %d bytes exceeds heap limit %d", size, limit),
	}
}

// InvalidHandle reports use of a released or dangling handle.
func InvalidHandle(detail string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInvalidHandle,
		Detail: detail,
	}
}

// Reentrant reports a collection pass triggered from inside another.
func Reentrant(op string) *Error {
	return &Error{
		Phase:  PhaseCollect,
		Kind:   KindReentrant,
		Detail: fmt.Sprintf("%s during an active collection pass", op),
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

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
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
