// Package config loads bor.yaml.
//
// Every field has a default, so a missing file is equivalent to an empty one.
// Command-line flags override loaded values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bor/internal/consensus"
	"github.com/roach88/bor/internal/logging"
	"github.com/roach88/bor/internal/registry"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "bor.yaml"

// Config is the full bor configuration.
type Config struct {
	// Verifier identifies this node in registry entries.
	Verifier string `yaml:"verifier"`

	// OutDir receives bundle directories.
	OutDir string `yaml:"out_dir"`

	// Concurrency bounds concurrent sub-proofs. Zero means no bound.
	Concurrency int `yaml:"concurrency"`

	Registry RegistryConfig `yaml:"registry"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
	Trace    TraceConfig    `yaml:"trace"`
}

// RegistryConfig selects the registry backend.
type RegistryConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LedgerConfig controls consensus output.
type LedgerConfig struct {
	Path   string `yaml:"path"`
	Quorum int    `yaml:"quorum"`
}

// AuditConfig controls self-audit.
type AuditConfig struct {
	Root  string `yaml:"root"`
	Limit int    `yaml:"limit"`
	// History, when set, is a SQLite database receiving every audit report.
	History string `yaml:"history"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TraceConfig controls span export.
type TraceConfig struct {
	// File, when set, receives one JSON line per finished span.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		OutDir: "out",
		Registry: RegistryConfig{
			Backend: registry.BackendFile,
			Path:    "proof_registry.jsonl",
		},
		Ledger: LedgerConfig{
			Path:   "consensus_ledger.json",
			Quorum: consensus.DefaultQuorum,
		},
		Audit: AuditConfig{
			Root:  "out",
			Limit: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults unless
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document does not set.
// Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch {
	case c.OutDir == "":
		return fmt.Errorf("out_dir must not be empty")
	case c.Concurrency < 0:
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	case c.Registry.Backend != registry.BackendFile && c.Registry.Backend != registry.BackendSQLite:
		return fmt.Errorf("registry.backend must be %s or %s, got %q", registry.BackendFile, registry.BackendSQLite, c.Registry.Backend)
	case c.Registry.Path == "":
		return fmt.Errorf("registry.path must not be empty")
	case c.Ledger.Quorum < 1:
		return fmt.Errorf("ledger.quorum must be >= 1, got %d", c.Ledger.Quorum)
	case c.Audit.Limit < 0:
		return fmt.Errorf("audit.limit must be >= 0, got %d", c.Audit.Limit)
	case !logging.ValidFormat(c.Log.Format):
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RequireVerifier reports an error when no verifier is configured. Commands
// that write registry entries call it.
func (c *Config) RequireVerifier() error {
	if c.Verifier == "" {
		return fmt.Errorf("verifier is required: set it in %s or pass --verifier", DefaultFile)
	}
	return nil
}
