package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a call or signal the engine refused before any handler ran.
// Handler rejections are *kitties.DispatchError and pass through unchanged.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Op is the requested operation, when there is one.
	Op string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSchemaMismatch means stored data is not in the layout the
	// registry reads, or a migration is partway through.
	ErrCodeSchemaMismatch RuntimeErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeUnknownOp means the request names no known operation.
	ErrCodeUnknownOp RuntimeErrorCode = "UNKNOWN_OP"

	// ErrCodeEmptyCaller means the call carries no authenticated identity.
	ErrCodeEmptyCaller RuntimeErrorCode = "EMPTY_CALLER"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsSchemaMismatch returns true if the engine refused a call because of the
// stored layout version. Uses errors.As to handle wrapped errors.
func IsSchemaMismatch(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSchemaMismatch
	}
	return false
}

// IsRuntimeError returns true if err is a *RuntimeError of any code.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}
