package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bor/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		if event.Type == EventStepRecorded {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Fn, event.Fingerprint)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against a built result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	b := result.Bundle
	if b == nil {
		return fmt.Errorf("no bundle to check")
	}
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: result.Trace}
	}

	switch a.Type {
	case AssertMaster:
		if want := fmt.Sprint(a.Equals); b.Primary.Master != want {
			return fail(want, b.Primary.Master)
		}
	case AssertHRich:
		if want := fmt.Sprint(a.Equals); b.HRich != want {
			return fail(want, b.HRich)
		}
	case AssertStepCount:
		if got := len(b.Primary.Steps); got != a.Count {
			return fail(fmt.Sprintf("%d steps", a.Count), fmt.Sprintf("%d steps", got))
		}
	case AssertStepOutput:
		if a.Step > len(b.Primary.Steps) {
			return fail(fmt.Sprintf("step %d", a.Step), fmt.Sprintf("%d steps", len(b.Primary.Steps)))
		}
		if err := sameValue(b.Primary.Steps[a.Step-1].Output.Get(), a.Equals); err != nil {
			return fail(fmt.Sprintf("step %d output %v", a.Step, a.Equals), err.Error())
		}
	case AssertTraceOrder:
		var fns []string
		for _, e := range result.Trace {
			if e.Type == EventStepRecorded {
				fns = append(fns, e.Fn)
			}
		}
		if !slices.Equal(fns, a.Fns) {
			return fail(strings.Join(a.Fns, " -> "), strings.Join(fns, " -> "))
		}
	case AssertSubproof:
		return assertSubproof(b, a, fail)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertSubproof(b *ir.Bundle, a Assertion, fail func(expected, actual string) error) error {
	res, ok := b.Subproofs[a.Name]
	if !ok {
		return fail("subproof "+a.Name, "not in bundle")
	}
	wantOK := a.OK == nil || *a.OK
	if res["ok"] != ir.IRBool(wantOK) {
		return fail(fmt.Sprintf("%s ok=%t", a.Name, wantOK), fmt.Sprintf("%s ok=%v", a.Name, res["ok"]))
	}
	if a.Field == "" {
		return nil
	}
	got, present := res[a.Field]
	if !present {
		return fail(fmt.Sprintf("%s.%s", a.Name, a.Field), "field missing")
	}
	if err := sameValue(got, a.Equals); err != nil {
		return fail(fmt.Sprintf("%s.%s = %v", a.Name, a.Field, a.Equals), err.Error())
	}
	return nil
}

// sameValue compares an IR value against a decoded YAML value by canonical bytes.
func sameValue(actual ir.IRValue, expected any) error {
	want, err := ir.FromGo(expected)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	wantBytes, err := ir.MarshalCanonical(want)
	if err != nil {
		return err
	}
	gotBytes, err := ir.MarshalCanonical(actual)
	if err != nil {
		return err
	}
	if !bytes.Equal(wantBytes, gotBytes) {
		return fmt.Errorf("%s", gotBytes)
	}
	return nil
}
