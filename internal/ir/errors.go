package ir

import (
	"errors"
	"fmt"
)

// EncodingError reports a value that has no canonical encoding.
// It is always fatal for the operation that triggered it.
type EncodingError struct {
	// Path locates the offending value inside the encoded document ("$" is the root).
	Path string

	// Reason describes why the value cannot be canonicalized.
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("canonical encoding failed at %s: %s", e.Path, e.Reason)
}

func newEncodingError(path, reason string) *EncodingError {
	return &EncodingError{Path: path, Reason: reason}
}

// IsEncodingError returns true if err is or wraps an *EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}
