package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reference values for the chain 7 -> add(offset 4) -> square, version v1.0.
const (
	addFingerprint    = "ac971c1ddacb80d4c117bc4eea2fcb49cfc4af61c1e441be88403ba061f8d60b"
	squareFingerprint = "1862bc99cabe4c467216a642394b4b488d0a255526b66b80d369d4966f28e9f1"
	scenarioMaster    = "dde71a3e4391be92ebb1ffe972388a262633328612435fee83ece2dedae24c5b"
)

func TestFingerprintReferenceValues(t *testing.T) {
	cfg := IRObject{"offset": IRInt(4)}

	h1, err := Fingerprint("add", IRInt(7), cfg, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, addFingerprint, h1)

	h2, err := Fingerprint("square", IRInt(11), cfg, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, squareFingerprint, h2)

	assert.Equal(t, scenarioMaster, MasterCommitment([]string{h1, h2}))
}

func TestFingerprintChangesWithEachInput(t *testing.T) {
	cfg := IRObject{"offset": IRInt(4)}
	base, err := Fingerprint("add", IRInt(7), cfg, "v1.0")
	require.NoError(t, err)

	variants := map[string]func() (string, error){
		"fn":      func() (string, error) { return Fingerprint("sub", IRInt(7), cfg, "v1.0") },
		"input":   func() (string, error) { return Fingerprint("add", IRInt(8), cfg, "v1.0") },
		"config":  func() (string, error) { return Fingerprint("add", IRInt(7), IRObject{"offset": IRInt(5)}, "v1.0") },
		"version": func() (string, error) { return Fingerprint("add", IRInt(7), cfg, "v1.1") },
	}
	for name, fn := range variants {
		t.Run(name, func(t *testing.T) {
			h, err := fn()
			require.NoError(t, err)
			assert.NotEqual(t, base, h)
			assert.Len(t, h, 64, "SHA-256 hex is 64 characters")
		})
	}
}

func TestFingerprintRejectsNonCanonicalInput(t *testing.T) {
	_, err := Fingerprint("add", IRFloat(0), IRObject{"bad": IRFloat(nan())}, "v1")
	require.Error(t, err)
	assert.True(t, IsEncodingError(err))
}

func TestMasterCommitmentOrderSensitive(t *testing.T) {
	a := MasterCommitment([]string{addFingerprint, squareFingerprint})
	b := MasterCommitment([]string{squareFingerprint, addFingerprint})
	assert.NotEqual(t, a, b)
}

func TestMasterCommitmentIsDomainTagged(t *testing.T) {
	// The master commitment is the content hash of the tagged string, not of the
	// bare joined fingerprints.
	assert.Equal(t, MustContentHash(IRString("P2|"+addFingerprint+"|"+squareFingerprint)), scenarioMaster)
	assert.NotEqual(t, MustContentHash(IRString(addFingerprint+"|"+squareFingerprint)), scenarioMaster)
}

func TestMasterCommitmentEmptyChain(t *testing.T) {
	assert.Equal(t, "97f5e64e8892530c7ff77a1014ae09fd1f3d130c3937a8812a8bc920e1424d93", MasterCommitment(nil))
}

func TestRichCommitmentSortsNames(t *testing.T) {
	// Insertion order must not matter; names are folded in sorted order.
	m1 := map[string]string{"b": "b", "a": "a"}
	m2 := map[string]string{"a": "a", "b": "b"}

	assert.Equal(t, "0eab8a0a3380abf4c7d1fb0b43b66aafbb64a4b953e4eb2dccca579461912d0c", RichCommitment(m1))
	assert.Equal(t, RichCommitment(m1), RichCommitment(m2))
}

func TestRichCommitmentSensitiveToNameBinding(t *testing.T) {
	// Swapping which name owns which hash changes the fold order.
	m1 := map[string]string{"a": "x", "b": "y"}
	m2 := map[string]string{"a": "y", "b": "x"}
	assert.NotEqual(t, RichCommitment(m1), RichCommitment(m2))
}

func TestInitHashIncludesEnvironment(t *testing.T) {
	cfg := IRObject{"offset": IRInt(4)}
	h1, err := InitHash(IRInt(7), cfg, "v1.0", IRString("env-a"))
	require.NoError(t, err)
	h2, err := InitHash(IRInt(7), cfg, "v1.0", IRString("env-b"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestSortedNames(t *testing.T) {
	assert.Equal(t, []string{"CCP", "DIP", "PoPI", "TRP"}, SortedNames(map[string]int{"TRP": 0, "PoPI": 0, "CCP": 0, "DIP": 0}))
}
