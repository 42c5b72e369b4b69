// Package cryptoutils verifies the evidence carried by compute proofs:
// Keccak-256 execution hashes binding inputs to outputs, secp256k1
// result signatures against enclave public keys, and raw DCAP TDX
// attestation quotes.
//
// Adapters only construct proofs; they never verify them. Verification
// is the caller's decision, made here after results cross the backend
// boundary.
package cryptoutils
