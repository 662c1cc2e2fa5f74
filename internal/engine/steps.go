package engine

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/roach88/bor/internal/ir"
)

// StepFunc is a pure transformation of the previous state. It must depend only on
// its arguments: the same (state, config, version) must always yield the same output.
type StepFunc func(state ir.IRValue, config ir.IRObject, version string) (ir.IRValue, error)

// Step is a named step function. Name is the stable identifier recorded in the
// fingerprint and used to resolve the step again during replay.
type Step struct {
	Name string
	Fn   StepFunc
}

// NewStep pairs a name with a function.
func NewStep(name string, fn StepFunc) Step {
	return Step{Name: name, Fn: fn}
}

// Registry maps step names to steps.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// DefaultRegistry returns a registry holding the built-in steps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range BuiltinSteps() {
		// Built-in names are unique and non-empty.
		_ = r.Register(s)
	}
	return r
}

// Register adds a step. Names must be non-empty and unique.
func (r *Registry) Register(s Step) error {
	if s.Name == "" {
		return fmt.Errorf("register step: empty name")
	}
	if s.Fn == nil {
		return &DeterminismError{Code: ErrCodeNotCallable, Step: s.Name}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.steps[s.Name]; dup {
		return fmt.Errorf("register step: %q already registered", s.Name)
	}
	r.steps[s.Name] = s
	return nil
}

// Lookup returns the step registered under name.
func (r *Registry) Lookup(name string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	if !ok {
		return Step{}, &DeterminismError{
			Code: ErrCodeUnknownStep,
			Err:  fmt.Errorf("no step registered as %q", name),
		}
	}
	return s, nil
}

// Resolve looks up every name in order.
func (r *Registry) Resolve(names []string) ([]Step, error) {
	steps := make([]Step, len(names))
	for i, name := range names {
		s, err := r.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("resolve stage %d: %w", i+1, err)
		}
		steps[i] = s
	}
	return steps, nil
}

// Names returns the registered names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BuiltinSteps returns the arithmetic steps shipped with the executor.
//
//	add      state + config.offset
//	square   state * state
//	double   state * 2
//	negate   -state
//	identity state
func BuiltinSteps() []Step {
	return []Step{
		NewStep("add", addStep),
		NewStep("square", squareStep),
		NewStep("double", doubleStep),
		NewStep("negate", negateStep),
		NewStep("identity", identityStep),
	}
}

func addStep(state ir.IRValue, config ir.IRObject, _ string) (ir.IRValue, error) {
	raw, ok := config["offset"]
	if !ok {
		return nil, fmt.Errorf("add: config key %q missing", "offset")
	}
	return arith(state, raw, "add",
		func(a, b int64) (int64, bool) {
			s := a + b
			return s, (s > a) == (b > 0)
		},
		func(a, b float64) float64 { return a + b })
}

func squareStep(state ir.IRValue, _ ir.IRObject, _ string) (ir.IRValue, error) {
	return arith(state, state, "square", mulInt, func(a, b float64) float64 { return a * b })
}

func doubleStep(state ir.IRValue, _ ir.IRObject, _ string) (ir.IRValue, error) {
	return arith(state, ir.IRInt(2), "double", mulInt, func(a, b float64) float64 { return a * b })
}

func negateStep(state ir.IRValue, _ ir.IRObject, _ string) (ir.IRValue, error) {
	return arith(state, ir.IRInt(-1), "negate", mulInt, func(a, b float64) float64 { return a * b })
}

func identityStep(state ir.IRValue, _ ir.IRObject, _ string) (ir.IRValue, error) {
	return ir.Clone(state), nil
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

// arith applies an integer operation when both operands are integral and a float
// operation otherwise. The path depends on the value, not its Go type, so 2.0
// and 2 compute alike. Integer overflow is an error, never a silent wrap.
func arith(a, b ir.IRValue, op string, intOp func(a, b int64) (int64, bool), floatOp func(a, b float64) float64) (ir.IRValue, error) {
	a, b = ir.Normalize(a), ir.Normalize(b)
	ai, aInt := a.(ir.IRInt)
	bi, bInt := b.(ir.IRInt)
	if aInt && bInt {
		r, ok := intOp(int64(ai), int64(bi))
		if !ok {
			return nil, fmt.Errorf("%s: integer overflow", op)
		}
		return ir.IRInt(r), nil
	}
	af, err := asFloat(a, op)
	if err != nil {
		return nil, err
	}
	bf, err := asFloat(b, op)
	if err != nil {
		return nil, err
	}
	return ir.IRFloat(floatOp(af, bf)), nil
}

func asFloat(v ir.IRValue, op string) (float64, error) {
	switch n := v.(type) {
	case ir.IRInt:
		return float64(n), nil
	case ir.IRFloat:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: operand must be a number, got %T", op, v)
	}
}
