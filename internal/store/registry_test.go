package store

import (
	"context"
	"testing"

	"github.com/roach88/bor/internal/ir"
)

func testEntry(hRich, verifier string) ir.RegistryEntry {
	return ir.RegistryEntry{
		HRich:     hRich,
		HMaster:   "m-" + hRich,
		Verifier:  verifier,
		Timestamp: "2025-01-01T00:00:00Z",
		Bundle:    "out/" + hRich + "/rich_proof_bundle.json",
	}
}

func TestAppendEntry_ReadBackInOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	want := []ir.RegistryEntry{testEntry("h1", "alice"), testEntry("h2", "bob"), testEntry("h1", "carol")}
	for i, e := range want {
		seq, err := s.AppendEntry(ctx, e)
		if err != nil {
			t.Fatalf("AppendEntry(%d) failed: %v", i, err)
		}
		if seq != int64(i+1) {
			t.Errorf("AppendEntry(%d) seq = %d, want %d", i, seq, i+1)
		}
	}

	got, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries() failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAppendEntry_RejectsMissingVerifier(t *testing.T) {
	s := openTemp(t)

	if _, err := s.AppendEntry(context.Background(), testEntry("h1", "")); err == nil {
		t.Error("expected error for empty verifier")
	}
}

func TestEntries_EmptyIsNotNil(t *testing.T) {
	s := openTemp(t)

	got, err := s.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Entries() = %#v, want empty non-nil slice", got)
	}
}

func TestEntriesForHash(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for _, e := range []ir.RegistryEntry{testEntry("h1", "alice"), testEntry("h2", "bob"), testEntry("h1", "carol")} {
		if _, err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry() failed: %v", err)
		}
	}

	got, err := s.EntriesForHash(ctx, "h1")
	if err != nil {
		t.Fatalf("EntriesForHash() failed: %v", err)
	}
	if len(got) != 2 || got[0].Verifier != "alice" || got[1].Verifier != "carol" {
		t.Errorf("EntriesForHash(h1) = %+v", got)
	}
}
