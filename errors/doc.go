// Package errors provides structured error types for the data broker.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the object ID or name involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseStream, errors.KindWrongAccessOrder).
//		ID(3).
//		Detail("begin_io called twice").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ObjectNotFound(errors.PhaseRetrieve, 7)
//	err := errors.ModuleNotFound("grdinfo")
//
// Matching by kind alone ignores the phase:
//
//	if errors.IsKind(err, errors.KindReadAfterEnd) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
