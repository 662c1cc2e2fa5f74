package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrVersionEmpty     = "E101" // version is required
	ErrNoStages         = "E102" // at least one stage required
	ErrUnknownStage     = "E103" // stage not in the step registry
	ErrUnencodableValue = "E104" // initial state or config has no canonical form
)

// ValidationError represents a chain validation error.
type ValidationError struct {
	Chain   string `json:"chain"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Chain, e.Field, e.Message)
}

// Validate checks a compiled chain against a step registry.
// Returns all errors found (does not fail-fast).
func Validate(c *Chain, reg *engine.Registry) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Chain: c.Name, Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if strings.TrimSpace(c.Version) == "" {
		add("version", ErrVersionEmpty, "version is required and must be non-empty")
	}
	if len(c.Stages) == 0 {
		add("stages", ErrNoStages, "at least one stage is required")
	}
	for i, name := range c.Stages {
		if _, err := reg.Lookup(name); err != nil {
			add(fmt.Sprintf("stages[%d]", i), ErrUnknownStage, "unknown stage %q (registered: %s)", name, strings.Join(reg.Names(), ", "))
		}
	}
	if _, err := ir.MarshalCanonical(c.Initial); err != nil {
		add("initial", ErrUnencodableValue, "%v", err)
	}
	if _, err := ir.MarshalCanonical(c.Config); err != nil {
		add("config", ErrUnencodableValue, "%v", err)
	}
	return errs
}
