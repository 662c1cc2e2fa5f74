package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Outcome is the result of one scenario file in a batch.
type Outcome struct {
	Path   string  `json:"path"`
	Name   string  `json:"name,omitempty"`
	Result *Result `json:"result,omitempty"`
	Err    string  `json:"error,omitempty"`
}

// Passed reports whether the scenario ran and all its checks held.
func (o Outcome) Passed() bool {
	return o.Err == "" && o.Result != nil && o.Result.Pass
}

// FindScenarios returns the scenario files at path: path itself when it is a
// file, otherwise every *.yaml and *.yml file below it, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenarios: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(p); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunAll loads and runs every scenario file in order. A file that fails to
// load or run is reported in its Outcome; the batch continues.
func (h *Harness) RunAll(ctx context.Context, files []string) []Outcome {
	outcomes := make([]Outcome, 0, len(files))
	for _, f := range files {
		o := Outcome{Path: f}
		scenario, err := LoadScenario(f)
		if err != nil {
			o.Err = err.Error()
			outcomes = append(outcomes, o)
			continue
		}
		o.Name = scenario.Name
		result, err := h.Run(ctx, scenario)
		if err != nil {
			o.Err = err.Error()
		}
		o.Result = result
		outcomes = append(outcomes, o)
	}
	return outcomes
}
