// Package audit replays persisted bundles and reports drift.
//
// A bundle drifts when anything recomputed from its recorded inputs disagrees
// with what it recorded: the primary chain, a sub-proof hash, H_MASTER or H_RICH.
// Drift is data. AuditLastN keeps going past individual failures and lists every
// drifted bundle in the report.
package audit

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/bundle"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
)

//go:embed schema.json
var bundleSchema string

const schemaURL = "https://bor.local/schemas/rich_proof_bundle.json"

// DriftError reports one recomputed value that disagrees with the recorded one.
type DriftError struct {
	Field    string
	Recorded string
	Replayed string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("%s drift: recorded %s, replayed %s", e.Field, e.Recorded, e.Replayed)
}

// IsDrift reports whether err is or wraps a *DriftError.
func IsDrift(err error) bool {
	var de *DriftError
	return errors.As(err, &de)
}

// HistorySink records finished audit runs. *store.Store implements it.
type HistorySink interface {
	RecordAudit(ctx context.Context, runAt, root string, rep ir.AuditReport) (int64, error)
}

// Auditor replays bundles. It never writes bundle files.
type Auditor struct {
	steps   *engine.Registry
	history HistorySink
	clock   engine.Clock
	logger  *slog.Logger
	schema  *jsonschema.Schema
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithSteps sets the registry used to resolve recorded stage names.
// Default: engine.DefaultRegistry().
func WithSteps(r *engine.Registry) Option {
	return func(a *Auditor) { a.steps = r }
}

// WithHistory records every AuditLastN report to h.
func WithHistory(h HistorySink) Option {
	return func(a *Auditor) { a.history = h }
}

// WithClock sets the clock used to stamp history records.
func WithClock(c engine.Clock) Option {
	return func(a *Auditor) { a.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// New compiles the bundle schema and returns an Auditor.
func New(opts ...Option) (*Auditor, error) {
	a := &Auditor{
		clock:  engine.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.steps == nil {
		a.steps = engine.DefaultRegistry()
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(bundleSchema)); err != nil {
		return nil, fmt.Errorf("load bundle schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile bundle schema: %w", err)
	}
	a.schema = schema
	return a, nil
}

// Discover returns the n most recently modified bundle files under root,
// newest first, ties broken by path. n <= 0 returns all of them.
// A missing root holds no bundles.
func Discover(root string, n int) ([]string, error) {
	type found struct {
		path  string
		mtime time.Time
	}
	var all []found
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != artifact.BundleFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		all = append(all, found{path: path, mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover bundles in %s: %w", root, err)
	}

	slices.SortFunc(all, func(a, b found) int {
		if c := b.mtime.Compare(a.mtime); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	paths := make([]string, len(all))
	for i, f := range all {
		paths[i] = f.path
	}
	return paths, nil
}

// VerifyBundleFile replays the bundle at path.
//
// It returns nil when every recomputed value matches, a *DriftError when one
// does not, and any other error when the file cannot be read, parsed or
// replayed at all.
func (a *Auditor) VerifyBundleFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	b, err := a.parse(data)
	if err != nil {
		return err
	}
	return a.VerifyBundle(ctx, b)
}

func (a *Auditor) parse(data []byte) (*ir.Bundle, error) {
	doc, err := unmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("bundle schema: %w", err)
	}
	return artifact.DecodeBundle(data)
}

// unmarshalJSON decodes a JSON document in the form jsonschema/v5 validates
// (numbers as json.Number) and rejects trailing data after the value.
func unmarshalJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return doc, nil
}

// VerifyBundle checks a decoded bundle: first its internal consistency, then a
// full deterministic rebuild from the recorded S0, C, V and stage names.
func (a *Auditor) VerifyBundle(ctx context.Context, b *ir.Bundle) error {
	if err := checkRecorded(b); err != nil {
		return err
	}

	steps, err := a.steps.Resolve(b.Primary.StageNames())
	if err != nil {
		return err
	}
	builder := bundle.NewBuilder(bundle.WithEnv(b.Primary.Meta.Env.Get()), bundle.WithClock(a.clock))
	rebuilt, err := builder.Build(ctx, bundle.Input{
		Initial: b.Primary.Meta.S0.Get(),
		Config:  b.Primary.Meta.C,
		Version: b.Primary.Meta.V,
		Steps:   steps,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if rebuilt.Primary.Master != b.Primary.Master {
		return &DriftError{Field: "master", Recorded: b.Primary.Master, Replayed: rebuilt.Primary.Master}
	}
	if b.HMaster != "" && rebuilt.HMaster != b.HMaster {
		return &DriftError{Field: "H_MASTER", Recorded: b.HMaster, Replayed: rebuilt.HMaster}
	}
	recordedNames := ir.SortedNames(b.SubproofHashes)
	replayedNames := ir.SortedNames(rebuilt.SubproofHashes)
	if !slices.Equal(recordedNames, replayedNames) {
		return &DriftError{
			Field:    "subproof set",
			Recorded: strings.Join(recordedNames, ","),
			Replayed: strings.Join(replayedNames, ","),
		}
	}
	for _, name := range replayedNames {
		if rec, rep := b.SubproofHashes[name], rebuilt.SubproofHashes[name]; rec != rep {
			return &DriftError{Field: "subproof_hashes[" + name + "]", Recorded: rec, Replayed: rep}
		}
	}
	if rebuilt.HRich != b.HRich {
		return &DriftError{Field: "H_RICH", Recorded: b.HRich, Replayed: rebuilt.HRich}
	}
	return nil
}

// checkRecorded verifies the bundle against itself without executing a step.
func checkRecorded(b *ir.Bundle) error {
	if err := engine.VerifyPrimary(&b.Primary); err != nil {
		var hm *engine.HashMismatchError
		if errors.As(err, &hm) {
			return &DriftError{Field: "primary " + hm.What, Recorded: hm.Expected, Replayed: hm.Actual}
		}
		return err
	}
	for _, name := range ir.SortedNames(b.SubproofHashes) {
		res, ok := b.Subproofs[name]
		if !ok {
			return &DriftError{Field: "subproofs[" + name + "]", Recorded: "missing", Replayed: b.SubproofHashes[name]}
		}
		h, err := ir.ContentHash(res)
		if err != nil {
			return fmt.Errorf("hash subproof %s: %w", name, err)
		}
		if h != b.SubproofHashes[name] {
			return &DriftError{Field: "subproofs[" + name + "]", Recorded: b.SubproofHashes[name], Replayed: h}
		}
	}
	if h := ir.RichCommitment(b.SubproofHashes); h != b.HRich {
		return &DriftError{Field: "H_RICH", Recorded: b.HRich, Replayed: h}
	}
	return nil
}

// AuditLastN replays the n most recent bundles under root.
//
// Every failure to verify a bundle, including an unreadable or malformed file,
// becomes a drift entry. Only discovery failure, cancellation or a history
// write error is returned as an error.
func (a *Auditor) AuditLastN(ctx context.Context, root string, n int) (ir.AuditReport, error) {
	report := ir.AuditReport{Drift: []ir.DriftEntry{}}

	paths, err := Discover(root, n)
	if err != nil {
		return report, err
	}

	for _, path := range paths {
		err := a.VerifyBundleFile(ctx, path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		report.Checked++
		if err != nil {
			a.logger.Warn("bundle drift", "bundle", path, "reason", err.Error())
			report.Drift = append(report.Drift, ir.DriftEntry{Bundle: path, Reason: err.Error()})
			continue
		}
		a.logger.Debug("bundle verified", "bundle", path)
		report.Verified++
	}
	report.OK = len(report.Drift) == 0

	a.logger.Info("audit complete",
		"root", root,
		"checked", report.Checked,
		"verified", report.Verified,
		"drift", len(report.Drift),
	)

	if a.history != nil {
		if _, err := a.history.RecordAudit(ctx, engine.Timestamp(a.clock.Now()), root, report); err != nil {
			return report, fmt.Errorf("record audit: %w", err)
		}
	}
	return report, nil
}
