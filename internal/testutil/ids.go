package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable bundle identifiers:
// 00000000-0000-0000-0000-000000000001, ...000002, and so on.
//
// This keeps artifact paths stable across test runs.
//
// Thread-safety: SequentialIDs is safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialIDs creates a generator whose first ID ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// NewID returns the next identifier.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}

// FixedID always returns the same identifier.
type FixedID string

// NewID returns the fixed identifier, or a default when empty.
func (f FixedID) NewID() string {
	if f == "" {
		return "00000000-0000-0000-0000-000000000000"
	}
	return string(f)
}
