// Package artifact lays out bundle files on disk.
//
// Each bundle lives in its own directory named by a bundle ID:
//
//	<out>/<bundle-id>/rich_proof_bundle.json
//	<out>/<bundle-id>/primary_proof.json
//	<out>/<bundle-id>/bundle_index.json
//
// Files are written atomically (temp + rename) so a reader never observes a
// partially written bundle.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/bor/internal/ir"
)

// File names inside a bundle directory.
const (
	BundleFile  = "rich_proof_bundle.json"
	PrimaryFile = "primary_proof.json"
	IndexFile   = "bundle_index.json"
)

// IDGenerator names bundle directories.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues UUIDv7 identifiers. The embedded timestamp keeps
// bundle directories sorted by creation time.
type UUIDGenerator struct{}

// NewID returns a new UUIDv7 string. Panics if the random source fails.
func (UUIDGenerator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Writer persists bundles under a root directory.
type Writer struct {
	root string
	ids  IDGenerator
}

// NewWriter creates a writer rooted at root. A nil ids uses UUIDGenerator.
func NewWriter(root string, ids IDGenerator) *Writer {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Writer{root: root, ids: ids}
}

// Written describes the files of one persisted bundle.
type Written struct {
	ID      string
	Dir     string
	Bundle  string
	Primary string
	Index   string
}

// Write stores b, its primary proof and its index in a fresh bundle directory.
func (w *Writer) Write(b *ir.Bundle) (*Written, error) {
	id := w.ids.NewID()
	dir := filepath.Join(w.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}

	out := &Written{
		ID:      id,
		Dir:     dir,
		Bundle:  filepath.Join(dir, BundleFile),
		Primary: filepath.Join(dir, PrimaryFile),
		Index:   filepath.Join(dir, IndexFile),
	}
	// The bundle file goes last: discovery keys on it, so a directory without it
	// is ignored.
	if err := WriteJSON(out.Primary, &b.Primary); err != nil {
		return nil, err
	}
	idx := b.Index()
	if err := WriteJSON(out.Index, &idx); err != nil {
		return nil, err
	}
	if err := WriteJSON(out.Bundle, b); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode renders v as indented JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON atomically writes v to path (temp + rename).
func WriteJSON(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file beside path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadBundle decodes a bundle file and checks its format version.
// The raw bytes are returned for schema validation.
func ReadBundle(path string) (*ir.Bundle, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read bundle: %w", err)
	}
	b, err := DecodeBundle(data)
	if err != nil {
		return nil, data, fmt.Errorf("bundle %s: %w", path, err)
	}
	return b, data, nil
}

// DecodeBundle decodes bundle JSON and checks its format version.
func DecodeBundle(data []byte) (*ir.Bundle, error) {
	var b ir.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if err := ir.CheckFormatVersion(b.FormatVersion); err != nil {
		return nil, err
	}
	return &b, nil
}

// ReadPrimary decodes a primary proof file.
func ReadPrimary(path string) (*ir.PrimaryProof, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read primary proof: %w", err)
	}
	var p ir.PrimaryProof
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode primary proof %s: %w", path, err)
	}
	return &p, nil
}

// ReadIndex decodes a bundle index file.
func ReadIndex(path string) (*ir.BundleIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle index: %w", err)
	}
	var idx ir.BundleIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode bundle index %s: %w", path, err)
	}
	return &idx, nil
}
