package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/store"
)

// SQLite is a registry backed by the store's registry_entries table.
type SQLite struct {
	st *store.Store
}

// OpenSQLite opens (or creates) the SQLite registry at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return &SQLite{st: st}, nil
}

// NewSQLite wraps an already open store. Close closes the store.
func NewSQLite(st *store.Store) *SQLite {
	return &SQLite{st: st}
}

// Store returns the underlying store, for audit history on the same database.
func (r *SQLite) Store() *store.Store { return r.st }

// Append inserts e.
func (r *SQLite) Append(ctx context.Context, e ir.RegistryEntry) error {
	if err := Validate(e); err != nil {
		return err
	}
	_, err := r.st.AppendEntry(ctx, e)
	return err
}

// Entries returns every entry in insertion order.
func (r *SQLite) Entries(ctx context.Context) ([]ir.RegistryEntry, error) {
	return r.st.Entries(ctx)
}

// Close closes the database.
func (r *SQLite) Close() error {
	return r.st.Close()
}
