package cryptoutils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// ExecutionHash computes the Keccak-256 digest binding a job's input
// payload to its output. Adapters attach it to compute proofs so a
// verifier can re-derive the binding from the audited raw payloads.
func ExecutionHash(input, output []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(input)
	h.Write(output)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ContentKeccak256 computes the Keccak-256 digest of content, used by
// backends that address content with the keccak-256 method.
func ContentKeccak256(content []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(content)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ContentSHA256 computes the SHA-256 digest of content, the address
// used by hash-addressed storage backends.
func ContentSHA256(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// VerifyResultSignature checks a secp256k1 signature over an execution
// hash against the enclave public key embedded in a proof. Both hash
// and signature are hex strings with optional 0x prefixes; the key is
// a hex-encoded uncompressed or compressed secp256k1 public key.
func VerifyResultSignature(executionHash, signature, enclaveKey string) (bool, error) {
	digest, err := decodeHex(executionHash)
	if err != nil {
		return false, fmt.Errorf("decoding execution hash: %w", err)
	}
	if len(digest) != 32 {
		return false, fmt.Errorf("execution hash must be 32 bytes, got %d", len(digest))
	}

	sig, err := decodeHex(signature)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	// Strip the recovery id if present; VerifySignature takes R||S.
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false, fmt.Errorf("signature must be 64 or 65 bytes, got %d", len(sig))
	}

	pubkey, err := decodeHex(enclaveKey)
	if err != nil {
		return false, fmt.Errorf("decoding enclave key: %w", err)
	}
	if len(pubkey) == 33 {
		decompressed, err := crypto.DecompressPubkey(pubkey)
		if err != nil {
			return false, fmt.Errorf("decompressing enclave key: %w", err)
		}
		pubkey = crypto.FromECDSAPub(decompressed)
	}

	return crypto.VerifySignature(pubkey, digest, sig), nil
}

// VerifyComputeProof checks whatever evidence a compute proof carries.
// A proof with a signature and enclave key must have a valid signature
// over its execution hash; a proof carrying a raw TDX quote in its
// attestation data must have a verifiable quote. Proofs with no
// evidence at all fail outright.
func VerifyComputeProof(proof interfaces.Proof) error {
	if !proof.Verified() {
		return fmt.Errorf("proof carries no evidence (method %q)", proof.Method)
	}

	if proof.Signature != "" && proof.EnclaveKey != "" && proof.ExecutionHash != "" {
		ok, err := VerifyResultSignature(proof.ExecutionHash, proof.Signature, proof.EnclaveKey)
		if err != nil {
			return fmt.Errorf("verifying result signature: %w", err)
		}
		if !ok {
			return fmt.Errorf("result signature does not match enclave key")
		}
	}

	if raw, ok := rawQuote(proof.Attestation); ok {
		if _, err := VerifyTDXQuote(raw); err != nil {
			return fmt.Errorf("verifying attestation quote: %w", err)
		}
	}

	return nil
}

func rawQuote(attestation map[string]any) ([]byte, bool) {
	quoteHex, ok := attestation["quote"].(string)
	if !ok || quoteHex == "" {
		return nil, false
	}
	raw, err := decodeHex(quoteHex)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
