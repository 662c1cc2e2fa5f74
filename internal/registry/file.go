package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/bor/internal/ir"
)

// File is a JSON Lines registry: one canonical JSON entry per line.
//
// Appends use O_APPEND with a single write per entry, so concurrent appenders
// on a local filesystem never interleave within a line. Reads also accept the
// legacy layout of a single JSON array.
type File struct {
	mu   sync.Mutex
	path string
}

// OpenFile returns a file registry at path, creating its directory if needed.
// The file itself is created on first append.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("open registry: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return &File{path: path}, nil
}

// Path returns the registry file path.
func (f *File) Path() string { return f.path }

// Append writes e as one line.
func (f *File) Append(_ context.Context, e ir.RegistryEntry) error {
	if err := Validate(e); err != nil {
		return err
	}
	line, err := ir.MarshalCanonical(e)
	if err != nil {
		return fmt.Errorf("append registry entry: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append registry entry: %w", err)
	}
	if _, err := fh.Write(line); err != nil {
		fh.Close()
		return fmt.Errorf("append registry entry: %w", err)
	}
	return fh.Close()
}

// Entries reads every entry. A missing file is an empty registry.
func (f *File) Entries(_ context.Context) ([]ir.RegistryEntry, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return []ir.RegistryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Decode(data)
}

// Close is a no-op; the file is opened per operation.
func (f *File) Close() error { return nil }

// Decode parses registry bytes in either JSON Lines or legacy JSON array form.
// Every entry must pass Validate.
func Decode(data []byte) ([]ir.RegistryEntry, error) {
	trimmed := bytes.TrimSpace(data)
	entries := []ir.RegistryEntry{}
	if len(trimmed) == 0 {
		return entries, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode legacy registry: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var e ir.RegistryEntry
			err := dec.Decode(&e)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decode registry entry %d: %w", len(entries)+1, err)
			}
			entries = append(entries, e)
		}
	}

	for i, e := range entries {
		if err := Validate(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return entries, nil
}
