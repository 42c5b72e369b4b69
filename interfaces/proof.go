package interfaces

import "encoding/json"

// ProofMethod names the verification technique backing a proof.
type ProofMethod string

const (
	// MethodTEEML is hardware-TEE attested ML execution.
	MethodTEEML ProofMethod = "tee-ml"
	// MethodZKML is zero-knowledge proven ML execution.
	MethodZKML ProofMethod = "zk-ml"
	// MethodOPML is optimistically verified ML execution.
	MethodOPML ProofMethod = "op-ml"

	// MethodIPFSCID is IPFS content addressing; the CID is the proof.
	MethodIPFSCID ProofMethod = "ipfs-cid"
	// MethodMerkle is a Merkle inclusion proof against a root hash.
	MethodMerkle ProofMethod = "merkle-proof"
	// MethodSHA256 is plain SHA-256 content addressing.
	MethodSHA256 ProofMethod = "sha256"
	// MethodKeccak256 is Keccak-256 content addressing.
	MethodKeccak256 ProofMethod = "keccak-256"
	// MethodSignature is a provider signature over the content.
	MethodSignature ProofMethod = "signature"

	// MethodNone marks the absence of any verification technique.
	MethodNone ProofMethod = "none"
)

// ComputeMethods lists the verification techniques a compute proof may
// legitimately declare.
var ComputeMethods = []ProofMethod{MethodTEEML, MethodZKML, MethodOPML}

// StorageMethods lists the content-addressing schemes a storage proof
// may legitimately declare.
var StorageMethods = []ProofMethod{MethodIPFSCID, MethodMerkle, MethodSHA256, MethodKeccak256, MethodSignature}

// KnownComputeMethod reports whether m is a recognized compute
// verification technique.
func KnownComputeMethod(m ProofMethod) bool {
	for _, known := range ComputeMethods {
		if m == known {
			return true
		}
	}
	return false
}

// KnownStorageMethod reports whether m is a recognized storage
// content-addressing scheme.
func KnownStorageMethod(m ProofMethod) bool {
	for _, known := range StorageMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Proof describes the cryptographic or attestation evidence of correct
// execution, independent of which backend produced it. Proofs are
// immutable value objects owned by the caller after return.
type Proof struct {
	// Method is the verification technique. Always set, even when no
	// cryptographic evidence is available.
	Method ProofMethod `json:"method"`

	// ImageDigest identifies the executing code, when known.
	ImageDigest string `json:"image_digest,omitempty"`

	// EnclaveKey is the public key bound to the secure execution
	// environment, when the provider exposes one.
	EnclaveKey string `json:"enclave_key,omitempty"`

	// Attestation is the opaque provider-specific evidence blob.
	Attestation map[string]any `json:"attestation,omitempty"`

	// ExecutionHash binds inputs, code and output.
	ExecutionHash string `json:"execution_hash,omitempty"`

	// Signature is the provider's signature over the execution.
	Signature string `json:"signature,omitempty"`

	// Timestamp is the execution time as a Unix timestamp.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Verified reports whether the proof carries actual evidence. A proof
// with a method but no attestation, signature or execution hash is
// nominal only; callers must check this before trusting a result for
// accountability purposes.
func (p Proof) Verified() bool {
	if p.Method == "" || p.Method == MethodNone {
		return false
	}
	return len(p.Attestation) > 0 || p.Signature != "" || p.ExecutionHash != ""
}

// Result carries a completed job's output together with its proof.
// Adapters construct a Result only once a job has reached a terminal
// successful state.
type Result struct {
	JobID  string `json:"job_id"`
	Output any    `json:"output"`
	Proof  Proof  `json:"proof"`

	// Raw is the unmodified provider payload, retained for audit.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// StorageProof describes evidence of correct storage.
type StorageProof struct {
	// Method is the content-addressing scheme. Always set.
	Method ProofMethod `json:"method"`

	// ContentHash is the primary content identifier. Required.
	ContentHash string `json:"content_hash"`

	// Metadata carries size, pin timestamps and provider extras.
	Metadata map[string]any `json:"metadata,omitempty"`

	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// VerifierURL is a human-checkable gateway, when one exists.
	VerifierURL string `json:"verifier_url,omitempty"`
}

// StorageResult carries the canonical locator of stored content plus
// its proof. For content-addressed backends the URI is re-derivable
// from Proof.ContentHash.
type StorageResult struct {
	// URI is the canonical scheme-prefixed locator, e.g. ipfs://...,
	// zerog://...
	URI   string       `json:"uri"`
	Proof StorageProof `json:"proof"`

	// Raw is the unmodified provider payload, retained for audit.
	Raw json.RawMessage `json:"raw,omitempty"`

	// AlternativeURIs are equivalent access points such as HTTP
	// gateway mirrors.
	AlternativeURIs []string `json:"alternative_uris,omitempty"`
}
