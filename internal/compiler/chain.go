// Package compiler turns CUE chain definitions into executable chains.
//
// A chain file declares one or more chains under the top-level "chain" field:
//
//	chain: demo: {
//		initial: 7
//		config: offset: 4
//		version: "v1.0"
//		stages: ["add", "square"]
//	}
//
// Stage names are resolved against an engine.Registry when the chain is turned
// into a bundle input; the compiler itself only checks shape.
package compiler

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"

	"github.com/roach88/bor/internal/bundle"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
)

// Chain is a compiled chain definition.
type Chain struct {
	Name     string
	Initial  ir.IRValue
	Config   ir.IRObject
	Version  string
	Stages   []string
	Verifier string // optional; overrides the configured verifier
}

// CompileChain parses a CUE value into a Chain.
//
// The value should be the chain struct itself, e.g. the result of
// v.LookupPath(cue.ParsePath("chain.demo")).
func CompileChain(v cue.Value) (*Chain, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{Field: "chain", Message: "must be a struct", Pos: v.Pos()}
	}

	c := &Chain{Config: ir.IRObject{}}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		c.Name = labels[len(labels)-1].String()
	}

	initialVal := v.LookupPath(cue.ParsePath("initial"))
	if !initialVal.Exists() {
		return nil, &CompileError{Field: "initial", Message: "initial is required", Pos: v.Pos()}
	}
	initial, err := ToIRValue(initialVal)
	if err != nil {
		return nil, err
	}
	c.Initial = initial

	if configVal := v.LookupPath(cue.ParsePath("config")); configVal.Exists() {
		cfg, err := ToIRValue(configVal)
		if err != nil {
			return nil, err
		}
		obj, ok := cfg.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: "config", Message: "config must be a struct", Pos: configVal.Pos()}
		}
		c.Config = obj
	}

	c.Version, err = requiredString(v, "version")
	if err != nil {
		return nil, err
	}

	c.Stages, err = parseStages(v)
	if err != nil {
		return nil, err
	}

	if verifierVal := v.LookupPath(cue.ParsePath("verifier")); verifierVal.Exists() {
		if c.Verifier, err = verifierVal.String(); err != nil {
			return nil, cueError(err)
		}
	}
	return c, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", cueError(err)
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func parseStages(v cue.Value) ([]string, error) {
	stagesVal := v.LookupPath(cue.ParsePath("stages"))
	if !stagesVal.Exists() {
		return nil, &CompileError{Field: "stages", Message: "stages are required", Pos: v.Pos()}
	}
	iter, err := stagesVal.List()
	if err != nil {
		return nil, cueError(err)
	}
	var stages []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, cueError(err)
		}
		if name == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("stages[%d]", len(stages)),
				Message: "stage name must not be empty",
				Pos:     iter.Value().Pos(),
			}
		}
		stages = append(stages, name)
	}
	if len(stages) == 0 {
		return nil, &CompileError{Field: "stages", Message: "at least one stage is required", Pos: stagesVal.Pos()}
	}
	return stages, nil
}

// ToIRValue converts a concrete CUE value to an IRValue.
// Non-concrete values, bytes and non-finite numbers are rejected.
func ToIRValue(v cue.Value) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	if !v.IsConcrete() {
		return nil, &CompileError{Field: "value", Message: "value must be concrete", Pos: v.Pos()}
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: "value", Message: "integer out of int64 range", Pos: v.Pos()}
		}
		return ir.IRInt(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, &CompileError{Field: "value", Message: "float out of range", Pos: v.Pos()}
		}
		return ir.Number(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueError(err)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, cueError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := ToIRValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := ToIRValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported kind %s", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// Input resolves the chain's stages through reg and returns the bundle input.
func (c *Chain) Input(reg *engine.Registry) (bundle.Input, error) {
	steps, err := reg.Resolve(c.Stages)
	if err != nil {
		return bundle.Input{}, fmt.Errorf("chain %s: %w", c.Name, err)
	}
	return bundle.Input{
		Initial: ir.Clone(c.Initial),
		Config:  ir.CloneObject(c.Config),
		Version: c.Version,
		Steps:   steps,
	}, nil
}
