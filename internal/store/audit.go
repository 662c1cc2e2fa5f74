package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/bor/internal/ir"
)

// AuditRun is one recorded self-audit batch.
type AuditRun struct {
	Seq    int64          `json:"seq"`
	RunAt  string         `json:"run_at"`
	Root   string         `json:"root"`
	Report ir.AuditReport `json:"report"`
}

// RecordAudit appends an audit report and returns its sequence number.
func (s *Store) RecordAudit(ctx context.Context, runAt, root string, rep ir.AuditReport) (int64, error) {
	driftJSON, err := marshalDrift(rep.Drift)
	if err != nil {
		return 0, fmt.Errorf("record audit: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (run_at, root, checked, verified, ok, drift)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runAt, root, rep.Checked, rep.Verified, rep.OK, driftJSON)
	if err != nil {
		return 0, fmt.Errorf("record audit: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record audit: %w", err)
	}
	return seq, nil
}

// AuditRuns returns up to limit audit runs, newest first. limit <= 0 returns all.
func (s *Store) AuditRuns(ctx context.Context, limit int) ([]AuditRun, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, run_at, root, checked, verified, ok, drift
		FROM audit_runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit runs: %w", err)
	}
	defer rows.Close()

	runs := []AuditRun{}
	for rows.Next() {
		var (
			run       AuditRun
			driftJSON string
		)
		if err := rows.Scan(&run.Seq, &run.RunAt, &run.Root,
			&run.Report.Checked, &run.Report.Verified, &run.Report.OK, &driftJSON); err != nil {
			return nil, fmt.Errorf("scan audit run: %w", err)
		}
		drift, err := unmarshalDrift(driftJSON)
		if err != nil {
			return nil, fmt.Errorf("audit run %d: %w", run.Seq, err)
		}
		run.Report.Drift = drift
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit runs: %w", err)
	}
	return runs, nil
}

// marshalDrift converts the drift list to canonical JSON TEXT for storage.
func marshalDrift(drift []ir.DriftEntry) (string, error) {
	if drift == nil {
		drift = []ir.DriftEntry{}
	}
	data, err := ir.MarshalCanonical(drift)
	if err != nil {
		return "", fmt.Errorf("marshal drift: %w", err)
	}
	return string(data), nil
}

// unmarshalDrift parses stored drift JSON. Empty lists decode to an empty slice.
func unmarshalDrift(data string) ([]ir.DriftEntry, error) {
	drift := []ir.DriftEntry{}
	if data == "" {
		return drift, nil
	}
	if err := json.Unmarshal([]byte(data), &drift); err != nil {
		return nil, fmt.Errorf("unmarshal drift: %w", err)
	}
	return drift, nil
}
