package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadChains compiles every chain declared in path, in declaration order.
// path may be a single .cue file or a directory holding one CUE package.
func LoadChains(path string) ([]Chain, error) {
	value, err := build(path)
	if err != nil {
		return nil, err
	}

	chainsVal := value.LookupPath(cue.ParsePath("chain"))
	if !chainsVal.Exists() {
		return nil, fmt.Errorf("%s: no chain definitions found", path)
	}
	iter, err := chainsVal.Fields()
	if err != nil {
		return nil, cueError(err)
	}

	var chains []Chain
	for iter.Next() {
		c, err := CompileChain(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("chain.%s: %w", iter.Label(), err)
		}
		chains = append(chains, *c)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("%s: no chain definitions found", path)
	}
	return chains, nil
}

// LoadChain compiles the chain called name from path. An empty name selects
// the only chain, and fails if there is more than one.
func LoadChain(path, name string) (*Chain, error) {
	chains, err := LoadChains(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(chains) != 1 {
			names := make([]string, len(chains))
			for i, c := range chains {
				names[i] = c.Name
			}
			return nil, fmt.Errorf("%s declares %d chains %v; pick one by name", path, len(chains), names)
		}
		return &chains[0], nil
	}
	for i := range chains {
		if chains[i].Name == name {
			return &chains[i], nil
		}
	}
	return nil, fmt.Errorf("%s: no chain named %q", path, name)
}

func build(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("chain definitions: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return cue.Value{}, fmt.Errorf("%s: no CUE instances loaded", path)
		}
		if err := instances[0].Err; err != nil {
			return cue.Value{}, fmt.Errorf("loading CUE files: %w", err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("chain definitions: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, cueError(err)
	}
	return value, nil
}
