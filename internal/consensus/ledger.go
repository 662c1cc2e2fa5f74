// Package consensus derives the consensus ledger from registry entries.
//
// Entries are grouped by H_RICH. A group is CONFIRMED once at least quorum
// distinct verifiers registered it; otherwise it is PENDING. The ledger is a
// pure function of the entry list and is rebuilt from scratch every time.
package consensus

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/ir"
)

// DefaultQuorum is the number of distinct verifiers required for confirmation.
const DefaultQuorum = 3

// EpochLayout formats the epoch date of a ledger build.
const EpochLayout = "2006-01-02"

// ComputeEpochs groups entries by commitment and classifies each group.
//
// Ordering: CONFIRMED groups first, then ascending hash. Verifier lists are
// sorted and de-duplicated; a verifier registering the same commitment twice
// counts once. The entry slice is not modified.
func ComputeEpochs(entries []ir.RegistryEntry, quorum int, epoch string) ([]ir.Epoch, error) {
	if quorum < 1 {
		return nil, fmt.Errorf("compute epochs: quorum must be at least 1, got %d", quorum)
	}

	groups := make(map[string]map[string]struct{})
	for i, e := range entries {
		if e.Verifier == "" {
			return nil, fmt.Errorf("compute epochs: entry %d has no verifier", i+1)
		}
		g, ok := groups[e.HRich]
		if !ok {
			g = make(map[string]struct{})
			groups[e.HRich] = g
		}
		g[e.Verifier] = struct{}{}
	}

	epochs := make([]ir.Epoch, 0, len(groups))
	for hash, vs := range groups {
		verifiers := make([]string, 0, len(vs))
		for v := range vs {
			verifiers = append(verifiers, v)
		}
		slices.Sort(verifiers)

		status := ir.StatusPending
		if len(verifiers) >= quorum {
			status = ir.StatusConfirmed
		}
		epochs = append(epochs, ir.Epoch{
			Epoch:     epoch,
			Hash:      hash,
			Verifiers: verifiers,
			Count:     len(verifiers),
			Status:    status,
		})
	}

	slices.SortFunc(epochs, func(a, b ir.Epoch) int {
		ac, bc := a.Status == ir.StatusConfirmed, b.Status == ir.StatusConfirmed
		if ac != bc {
			if ac {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Hash, b.Hash)
	})
	return epochs, nil
}

// BuildLedger computes epochs dated by now.
func BuildLedger(entries []ir.RegistryEntry, quorum int, now time.Time) ([]ir.Epoch, error) {
	return ComputeEpochs(entries, quorum, now.UTC().Format(EpochLayout))
}

// MarshalLedger renders epochs as a canonical JSON array.
func MarshalLedger(epochs []ir.Epoch) ([]byte, error) {
	if epochs == nil {
		epochs = []ir.Epoch{}
	}
	data, err := ir.MarshalCanonical(epochs)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	return data, nil
}

// WriteLedger replaces the ledger file at path with epochs.
func WriteLedger(path string, epochs []ir.Epoch) error {
	data, err := MarshalLedger(epochs)
	if err != nil {
		return err
	}
	if err := artifact.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Counts returns how many epochs are confirmed and pending.
func Counts(epochs []ir.Epoch) (confirmed, pending int) {
	for _, e := range epochs {
		if e.Status == ir.StatusConfirmed {
			confirmed++
		} else {
			pending++
		}
	}
	return confirmed, pending
}

// Result is the outcome of a consensus check.
type Result struct {
	Hash      string   `json:"hash"` // most-agreed commitment, empty when there are no entries
	Verifiers []string `json:"verifiers"`
	Count     int      `json:"count"`
	Quorum    int      `json:"quorum"`
	Reached   bool     `json:"reached"`
	Groups    int      `json:"groups"` // number of distinct commitments
}

// Check reports the commitment with the most distinct verifiers and whether it
// reached quorum. Ties go to the smallest hash.
func Check(entries []ir.RegistryEntry, quorum int) (Result, error) {
	epochs, err := ComputeEpochs(entries, quorum, "")
	if err != nil {
		return Result{}, err
	}
	res := Result{Quorum: quorum, Groups: len(epochs), Verifiers: []string{}}
	for _, e := range epochs {
		if e.Count > res.Count || (e.Count == res.Count && e.Hash < res.Hash) {
			res.Hash = e.Hash
			res.Verifiers = e.Verifiers
			res.Count = e.Count
		}
	}
	res.Reached = res.Count >= quorum
	return res, nil
}
