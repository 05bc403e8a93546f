package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAcquire  Phase = "acquire"  // context acquisition
	PhaseAllocate Phase = "allocate" // object allocation and construction
	PhaseAccess   Phase = "access"   // borrow handle dereference
	PhaseRoot     Phase = "root"     // pinning and root borrowing
	PhaseEmbed    Phase = "embed"    // borrow handle to owned edge conversion
	PhaseCollect  Phase = "collect"  // mark and sweep
)

// Kind categorizes the error
type Kind string

const (
	KindBusy         Kind = "busy"
	KindClosed       Kind = "closed"
	KindStaleHandle  Kind = "stale_handle"
	KindForeignHeap  Kind = "foreign_heap"
	KindNilHandle    Kind = "nil_handle"
	KindReleased     Kind = "released"
	KindDangling     Kind = "dangling"
	KindTypeMismatch Kind = "type_mismatch"
	KindInvalidInput Kind = "invalid_input"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Addr   uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Addr != 0 {
		b.WriteString(" at @")
		b.WriteString(strconv.FormatUint(uint64(e.Addr), 10))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
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
// A target without a phase matches on kind alone.
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

// Sentinels for errors.Is checks that do not care about the phase.
var (
	ErrBusy     = &Error{Kind: KindBusy}
	ErrClosed   = &Error{Kind: KindClosed}
	ErrStale    = &Error{Kind: KindStaleHandle}
	ErrReleased = &Error{Kind: KindReleased}
	ErrDangling = &Error{Kind: KindDangling}
)

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

// Addr sets the heap address involved
func (b *Builder) Addr(addr uint32) *Builder {
	b.err.Addr = addr
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
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

// Busy creates a token contention error
func Busy() *Error {
	return &Error{
		Phase:  PhaseAcquire,
		Kind:   KindBusy,
		Detail: "a context is already active on this heap",
	}
}

// Closed creates an error for operations on a closed heap
func Closed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: "heap closed",
	}
}

// StaleHandle creates an error for a handle whose context has ended
func StaleHandle(phase Phase, addr uint32, handleEpoch, heapEpoch uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleHandle,
		Addr:   addr,
		Detail: fmt.Sprintf("handle from epoch %d used at epoch %d", handleEpoch, heapEpoch),
		Value:  handleEpoch,
	}
}

// ContextEnded creates an error for use of a released or collected context
func ContextEnded(phase Phase, epoch uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("context of epoch %d has ended", epoch),
		Value:  epoch,
	}
}

// ForeignHeap creates an error for a handle used with another heap's context
func ForeignHeap(phase Phase, addr uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindForeignHeap,
		Addr:   addr,
		Detail: "handle belongs to a different heap",
	}
}

// NilHandle creates an error for a zero-value handle
func NilHandle(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilHandle,
		GoType: goType,
		Detail: "nil handle",
	}
}

// Released creates an error for use of a released root
func Released(addr uint32) *Error {
	return &Error{
		Phase:  PhaseRoot,
		Kind:   KindReleased,
		Addr:   addr,
		Detail: "root already released",
	}
}

// Dangling creates an error for an edge whose target slot was freed or reused
func Dangling(phase Phase, addr uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDangling,
		Addr:   addr,
		Detail: "target object has been freed",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, addr uint32, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Addr:   addr,
		GoType: want,
		Detail: fmt.Sprintf("object holds %s", got),
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
