package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/bor/internal/ir"
)

// AppendEntry inserts a registry entry and returns its sequence number.
// The verifier must be non-empty; the schema CHECK constraint enforces it too.
func (s *Store) AppendEntry(ctx context.Context, e ir.RegistryEntry) (int64, error) {
	if e.Verifier == "" {
		return 0, fmt.Errorf("append entry: verifier is required")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_entries (h_rich, h_master, verifier, timestamp, bundle)
		VALUES (?, ?, ?, ?, ?)
	`, e.HRich, e.HMaster, e.Verifier, e.Timestamp, e.Bundle)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	return seq, nil
}

// Entries returns every registry entry in insertion order.
// Returns an empty slice (not nil) when the registry is empty.
func (s *Store) Entries(ctx context.Context) ([]ir.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h_rich, h_master, verifier, timestamp, bundle
		FROM registry_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query registry entries: %w", err)
	}
	return scanEntries(rows)
}

// EntriesForHash returns the entries registered under one H_RICH, in insertion order.
func (s *Store) EntriesForHash(ctx context.Context, hRich string) ([]ir.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h_rich, h_master, verifier, timestamp, bundle
		FROM registry_entries
		WHERE h_rich = ?
		ORDER BY seq ASC
	`, hRich)
	if err != nil {
		return nil, fmt.Errorf("query registry entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]ir.RegistryEntry, error) {
	defer rows.Close()

	entries := []ir.RegistryEntry{}
	for rows.Next() {
		var e ir.RegistryEntry
		if err := rows.Scan(&e.HRich, &e.HMaster, &e.Verifier, &e.Timestamp, &e.Bundle); err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry entries: %w", err)
	}
	return entries, nil
}
