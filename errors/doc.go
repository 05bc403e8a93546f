// Package errors provides structured error types for the tracegc library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the heap address involved, the Go type name and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindStaleHandle).
//		Addr(7).
//		GoType("main.Node").
//		Detail("handle epoch %d, heap epoch %d", 3, 4).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Busy()
//	err := errors.StaleHandle(errors.PhaseAccess, addr, 3, 4)
//
// All errors implement the standard error interface and support errors.Is/As.
// The sentinels ErrBusy, ErrStale, ErrReleased and ErrClosed match any error
// of the same phase-independent kind.
package errors
