package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Domain tag and separator for the master commitment.
// The tag keeps a master hash from colliding with hashes of similarly shaped strings.
const (
	MasterDomain = "P2"
	Separator    = "|"
)

// ContentHash returns hex(SHA-256(MarshalCanonical(v))).
func ContentHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return sha256Hex(canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(v any) string {
	h, err := ContentHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// InitHash computes the initialization proof hash P0 over the run inputs and the
// opaque environment fingerprint.
func InitHash(initial IRValue, config IRObject, version string, env IRValue) (string, error) {
	h, err := ContentHash(IRObject{
		"S0":  Clone(initial),
		"C":   CloneObject(config),
		"V":   IRString(version),
		"env": Clone(env),
	})
	if err != nil {
		return "", fmt.Errorf("InitHash: %w", err)
	}
	return h, nil
}

// Fingerprint computes the content-addressed fingerprint of one step.
//
// DESIGN DECISION: the step output is intentionally EXCLUDED. A fingerprint
// certifies what was asked (function, input, configuration, version). The output
// is still recorded on the step for audit, and it becomes the next step's input,
// so a changed output still changes every later fingerprint.
func Fingerprint(fn string, input IRValue, config IRObject, version string) (string, error) {
	h, err := ContentHash(IRObject{
		"fn":      IRString(fn),
		"input":   Clone(input),
		"config":  CloneObject(config),
		"version": IRString(version),
	})
	if err != nil {
		return "", fmt.Errorf("Fingerprint(%s): %w", fn, err)
	}
	return h, nil
}

// MasterCommitment folds ordered step fingerprints into the master commitment:
// ContentHash("P2|" + join("|", fingerprints)). Order matters.
func MasterCommitment(fingerprints []string) string {
	concat := MasterDomain + Separator + strings.Join(fingerprints, Separator)
	// A string always has a canonical form.
	return MustContentHash(IRString(concat))
}

// RichCommitment computes H_RICH: SHA-256 over the sub-proof hashes joined with
// "|" in lexicographically sorted name order. Map iteration order never leaks in.
func RichCommitment(hashes map[string]string) string {
	names := SortedNames(hashes)
	ordered := make([]string, len(names))
	for i, name := range names {
		ordered[i] = hashes[name]
	}
	return sha256Hex([]byte(strings.Join(ordered, Separator)))
}

// SortedNames returns the keys of m in ascending byte order.
func SortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
