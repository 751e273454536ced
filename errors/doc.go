// Package errors provides structured error types for the container library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: operation path, the memory
// address involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRead, errors.KindCorruptLayout).
//		Path("hash_map", "bucket_array").
//		Addr(0x2f10).
//		Detail("bucket chain exceeds element count").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.CapacityExceeded(errors.PhaseGrow, path, 4)
//	err := errors.OutOfBounds(errors.PhaseRead, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
