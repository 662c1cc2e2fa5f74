package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProof() *PrimaryProof {
	return &PrimaryProof{
		Meta: Meta{
			S0:  V(IRInt(7)),
			C:   IRObject{"offset": IRInt(4)},
			V:   "v1.0",
			Env: V(IRObject{"os": IRString("linux")}),
			H0:  "h0",
		},
		Steps: []StepRecord{
			{Index: 1, Fn: "add", Input: V(IRInt(7)), Output: V(IRInt(11)), Config: IRObject{"offset": IRInt(4)}, Version: "v1.0", Fingerprint: "f1"},
			{Index: 2, Fn: "square", Input: V(IRInt(11)), Output: V(IRInt(121)), Config: IRObject{"offset": IRInt(4)}, Version: "v1.0", Fingerprint: "f2"},
		},
		StageHashes: []string{"f1", "f2"},
		Master:      "m",
	}
}

func TestJSONFieldNaming(t *testing.T) {
	data, err := json.Marshal(sampleProof())
	require.NoError(t, err)

	for _, key := range []string{`"meta"`, `"S0"`, `"C"`, `"V"`, `"env"`, `"H0"`, `"steps"`, `"i"`, `"fn"`, `"fingerprint"`, `"stage_hashes"`, `"master"`} {
		assert.Contains(t, string(data), key)
	}
	assert.NotContains(t, string(data), `"StageHashes"`)

	entry, err := json.Marshal(RegistryEntry{HRich: "r", HMaster: "m", Verifier: "node-a", Timestamp: "t"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"H_RICH":"r","H_MASTER":"m","verifier":"node-a","timestamp":"t"}`, string(entry))
}

func TestPrimaryProofRoundTrip(t *testing.T) {
	p := sampleProof()
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got PrimaryProof
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, IRInt(7), got.Meta.S0.Get())
	assert.Equal(t, IRInt(121), got.Steps[1].Output.Get())
	assert.Equal(t, []string{"add", "square"}, got.StageNames())
}

func TestPrimaryProofCloneIsDeep(t *testing.T) {
	p := sampleProof()
	c := p.Clone()

	c.Meta.C["offset"] = IRInt(99)
	c.Steps[0].Config["offset"] = IRInt(99)
	c.StageHashes[0] = "changed"

	assert.Equal(t, IRInt(4), p.Meta.C["offset"])
	assert.Equal(t, IRInt(4), p.Steps[0].Config["offset"])
	assert.Equal(t, "f1", p.StageHashes[0])
}

func TestBundleIndexCopiesHashes(t *testing.T) {
	b := &Bundle{HRich: "r", SubproofHashes: map[string]string{"CCP": "a"}}
	idx := b.Index()
	idx.SubproofHashes["CCP"] = "b"

	assert.Equal(t, "r", idx.HRich)
	assert.Equal(t, "a", b.SubproofHashes["CCP"])
}

func TestZeroValueMarshalsNull(t *testing.T) {
	var v Value
	assert.Equal(t, IRNull{}, v.Get())

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
