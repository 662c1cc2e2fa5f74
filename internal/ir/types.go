package ir

// StepRecord is the exported record of one applied step.
// Fingerprint covers fn, input, config and version; Output is recorded for audit only.
type StepRecord struct {
	Index       int      `json:"i"` // 1-based position in the chain
	Fn          string   `json:"fn"`
	Input       Value    `json:"input"`
	Output      Value    `json:"output"`
	Config      IRObject `json:"config"`
	Version     string   `json:"version"`
	Fingerprint string   `json:"fingerprint"`
}

// Clone returns a deep copy of r.
func (r StepRecord) Clone() StepRecord {
	r.Input = V(Clone(r.Input.Get()))
	r.Output = V(Clone(r.Output.Get()))
	r.Config = CloneObject(r.Config)
	return r
}

// Meta holds the run inputs and the initialization hash P0.
type Meta struct {
	S0  Value    `json:"S0"`  // initial state
	C   IRObject `json:"C"`   // configuration
	V   string   `json:"V"`   // version label
	Env Value    `json:"env"` // opaque environment fingerprint
	H0  string   `json:"H0"`  // initialization hash P0
}

// PrimaryProof is the finalized certificate over one reasoning chain.
type PrimaryProof struct {
	Meta        Meta         `json:"meta"`
	Steps       []StepRecord `json:"steps"`
	StageHashes []string     `json:"stage_hashes"`
	Master      string       `json:"master"`
}

// Clone returns a deep copy of p.
func (p *PrimaryProof) Clone() *PrimaryProof {
	steps := make([]StepRecord, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.Clone()
	}
	return &PrimaryProof{
		Meta: Meta{
			S0:  V(Clone(p.Meta.S0.Get())),
			C:   CloneObject(p.Meta.C),
			V:   p.Meta.V,
			Env: V(Clone(p.Meta.Env.Get())),
			H0:  p.Meta.H0,
		},
		Steps:       steps,
		StageHashes: append([]string(nil), p.StageHashes...),
		Master:      p.Master,
	}
}

// StageNames returns the function identifiers of the recorded steps, in order.
func (p *PrimaryProof) StageNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Fn
	}
	return names
}

// Bundle is the rich proof bundle: the primary proof, the sub-proof results,
// their individual hashes, and the second-order commitment H_RICH.
type Bundle struct {
	Primary        PrimaryProof        `json:"primary"`
	Subproofs      map[string]IRObject `json:"subproofs"`
	SubproofHashes map[string]string   `json:"subproof_hashes"`
	HRich          string              `json:"H_RICH"`
	HMaster        string              `json:"H_MASTER"`
	GeneratedAt    string              `json:"generated_at"`
	FormatVersion  string              `json:"format_version"`
}

// BundleIndex is the compact form of a bundle used for quick verification.
type BundleIndex struct {
	HRich          string            `json:"H_RICH"`
	SubproofHashes map[string]string `json:"subproof_hashes"`
}

// Index returns the compact index of b.
func (b *Bundle) Index() BundleIndex {
	hashes := make(map[string]string, len(b.SubproofHashes))
	for k, v := range b.SubproofHashes {
		hashes[k] = v
	}
	return BundleIndex{HRich: b.HRich, SubproofHashes: hashes}
}

// RegistryEntry is one append-only registry line. Verifier is mandatory: quorum
// counts distinct verifiers, so an entry without one cannot be counted.
type RegistryEntry struct {
	HRich     string `json:"H_RICH"`
	HMaster   string `json:"H_MASTER"`
	Verifier  string `json:"verifier"`
	Timestamp string `json:"timestamp"`
	Bundle    string `json:"bundle,omitempty"`
}

// EpochStatus classifies a consensus group.
type EpochStatus string

const (
	StatusConfirmed EpochStatus = "CONFIRMED"
	StatusPending   EpochStatus = "PENDING"
)

// Epoch is one consensus group: every registry entry sharing a commitment.
type Epoch struct {
	Epoch     string      `json:"epoch"` // YYYY-MM-DD of the ledger build
	Hash      string      `json:"hash"`
	Verifiers []string    `json:"verifiers"`
	Count     int         `json:"count"`
	Status    EpochStatus `json:"status"`
}

// DriftEntry names one bundle that failed replay.
type DriftEntry struct {
	Bundle string `json:"bundle"`
	Reason string `json:"reason"`
}

// AuditReport summarizes a self-audit batch.
type AuditReport struct {
	Checked  int          `json:"checked"`
	Verified int          `json:"verified"`
	Drift    []DriftEntry `json:"drift"`
	OK       bool         `json:"ok"`
}
