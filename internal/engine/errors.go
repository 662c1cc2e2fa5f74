package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes executor errors.
type ErrorCode string

const (
	// ErrCodeStepFailed indicates a step function returned an error or panicked.
	ErrCodeStepFailed ErrorCode = "STEP_FAILED"

	// ErrCodeNotCallable indicates a step without a function.
	ErrCodeNotCallable ErrorCode = "STEP_NOT_CALLABLE"

	// ErrCodeUnencodable indicates a step produced a value with no canonical form.
	ErrCodeUnencodable ErrorCode = "UNENCODABLE_OUTPUT"

	// ErrCodeAborted indicates the run was aborted by an earlier failure.
	ErrCodeAborted ErrorCode = "RUN_ABORTED"

	// ErrCodeInvalidState indicates an operation not allowed in the current state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeUnknownStep indicates a step name missing from the registry.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"
)

// DeterminismError reports that a step could not be applied deterministically.
// The run that produced it is aborted.
type DeterminismError struct {
	Code  ErrorCode
	Step  string // step name, empty when not tied to a step
	Index int    // 1-based step position, 0 when not tied to a step
	Err   error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *DeterminismError) Error() string {
	msg := string(e.Code)
	if e.Step != "" {
		msg = fmt.Sprintf("%s: step %d (%s)", msg, e.Index, e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DeterminismError) Unwrap() error {
	return e.Err
}

// HashMismatchError reports a recomputed hash that disagrees with the recorded one.
type HashMismatchError struct {
	What     string // "master", "fingerprint[2]", "H0", ...
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("HASH_MISMATCH: %s recorded %s, recomputed %s", e.What, e.Expected, e.Actual)
}

// IsDeterminismError returns true if the error is a DeterminismError.
// Uses errors.As to handle wrapped errors.
func IsDeterminismError(err error) bool {
	var de *DeterminismError
	return errors.As(err, &de)
}

// IsHashMismatch returns true if the error is a HashMismatchError.
// Uses errors.As to handle wrapped errors.
func IsHashMismatch(err error) bool {
	var he *HashMismatchError
	return errors.As(err, &he)
}

// IsUnknownStep returns true if the error reports an unregistered step name.
func IsUnknownStep(err error) bool {
	var de *DeterminismError
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnknownStep
	}
	return false
}

func stepFailed(index int, name string, err error) *DeterminismError {
	return &DeterminismError{Code: ErrCodeStepFailed, Step: name, Index: index, Err: err}
}
