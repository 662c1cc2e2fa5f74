package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a chain definition that cannot be turned into a Chain.
// Pos points into the CUE source when the position is known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error // underlying CUE error, may be nil
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// Unwrap returns the CUE error this one was built from.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// cueError positions the first of a CUE error list. Errors without a position
// are returned unchanged.
func cueError(err error) error {
	if err == nil {
		return nil
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return err
	}
	first := list[0]
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: pos[0], Err: err}
	}
	return err
}
