// Package registry records which verifier produced which commitment.
//
// The registry is append-only. Two backends exist: a JSON Lines file (the
// interchange format) and a SQLite database (internal/store). Consensus is
// always recomputed from the full entry list; nothing here aggregates.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Registry is an append-only log of registry entries.
type Registry interface {
	// Append adds one entry. Entries are never rewritten or removed.
	Append(ctx context.Context, e ir.RegistryEntry) error

	// Entries returns every entry in append order.
	Entries(ctx context.Context) ([]ir.RegistryEntry, error)

	Close() error
}

// Open opens the registry backend named by backend at path.
func Open(backend, path string) (Registry, error) {
	switch backend {
	case BackendFile, "":
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown registry backend %q (want %s or %s)", backend, BackendFile, BackendSQLite)
	}
}

// NewEntry builds the registry entry for a bundle.
func NewEntry(b *ir.Bundle, verifier, bundlePath string, now time.Time) ir.RegistryEntry {
	return ir.RegistryEntry{
		HRich:     b.HRich,
		HMaster:   b.HMaster,
		Verifier:  verifier,
		Timestamp: engine.Timestamp(now),
		Bundle:    bundlePath,
	}
}

// Validate checks the fields every entry must carry.
func Validate(e ir.RegistryEntry) error {
	switch {
	case e.HRich == "":
		return fmt.Errorf("registry entry: H_RICH is required")
	case e.HMaster == "":
		return fmt.Errorf("registry entry: H_MASTER is required")
	case e.Verifier == "":
		return fmt.Errorf("registry entry: verifier is required")
	}
	return nil
}
