package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/roach88/bor/internal/config"
	"github.com/roach88/bor/internal/consensus"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/registry"
)

// DefaultEnv is the environment fingerprint recorded by prove. Nothing reads
// it back; it only tells a reader where a bundle was produced.
func DefaultEnv() ir.IRValue {
	return ir.IRObject{
		"os":      ir.IRString(runtime.GOOS),
		"arch":    ir.IRString(runtime.GOARCH),
		"runtime": ir.IRString(runtime.Version()),
		"engine":  ir.IRString(ir.EngineVersion),
	}
}

func openRegistry(cfg *config.Config) (registry.Registry, error) {
	r, err := registry.Open(cfg.Registry.Backend, cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return r, nil
}

// rebuildLedger recomputes the consensus ledger from every registry entry and
// replaces the ledger file. now stamps the epochs.
func rebuildLedger(ctx context.Context, cfg *config.Config, r registry.Registry, quorum int, now time.Time) ([]ir.Epoch, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return nil, err
	}
	epochs, err := consensus.BuildLedger(entries, quorum, now)
	if err != nil {
		return nil, err
	}
	if err := consensus.WriteLedger(cfg.Ledger.Path, epochs); err != nil {
		return nil, err
	}
	return epochs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
