package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseProfile  Phase = "profile"  // ABI profile validation
	PhaseInit     Phase = "init"     // writing an empty container
	PhaseRead     Phase = "read"     // interpreting foreign bytes
	PhaseWrite    Phase = "write"    // mutating container state
	PhaseGrow     Phase = "grow"     // capacity growth
	PhaseRehash   Phase = "rehash"   // bucket redistribution
	PhaseTraverse Phase = "traverse" // structural walks
	PhaseExport   Phase = "export"   // snapshot flattening
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidProfile    Kind = "invalid_profile"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindAllocationFailure Kind = "allocation_failure"
	KindNotFound          Kind = "not_found"
	KindCorruptLayout     Kind = "corrupt_layout"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindTypeMismatch      Kind = "type_mismatch"
	KindUnsupported       Kind = "unsupported"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Addr   uint64
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

	if e.Addr != 0 {
		fmt.Fprintf(&b, " (addr 0x%x)", e.Addr)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Path sets the operation path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Addr sets the memory address the error relates to
func (b *Builder) Addr(addr uint64) *Builder {
	b.err.Addr = addr
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

// InvalidProfile creates a profile validation error
func InvalidProfile(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseProfile,
		Kind:   KindInvalidProfile,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// CapacityExceeded creates a fixed-capacity error
func CapacityExceeded(phase Phase, path []string, capacity uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCapacityExceeded,
		Path:   path,
		Detail: fmt.Sprintf("fixed capacity %d reached", capacity),
		Value:  capacity,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint64, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocationFailure,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// CorruptLayout creates a corrupt layout error
func CorruptLayout(phase Phase, addr uint64, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCorruptLayout,
		Addr:   addr,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// MemoryOutOfBounds creates an out of bounds error for a raw memory access
func MemoryOutOfBounds(phase Phase, addr, length, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Addr:   addr,
		Detail: fmt.Sprintf("%d byte access exceeds memory size %d", length, size),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
