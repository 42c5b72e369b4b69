// Package interfaces defines the provider-agnostic contracts of the
// verifiable backend layer: the four-operation compute and storage
// interfaces, the proof data model, and the shared error taxonomy.
//
// # Backend Contracts
//
// ComputeBackend (Submit, Status, Result, Cancel) and StorageBackend
// (Put, Get, Exists, GetProof) are structural contracts with no shared
// implementation; each adapter in the compute and storage packages
// implements them independently on top of one provider's transport.
// Callers obtain a concrete adapter through a factory, submit work
// through the interface, and receive immutable Result/StorageResult
// values carrying a Proof they can persist or forward for audit.
//
// # Proofs
//
// A Proof's Method names the verification technique (tee-ml, zk-ml,
// op-ml for compute; ipfs-cid, merkle-proof, sha256, keccak-256,
// signature for storage). A proof is only Verified when it carries at
// least one of attestation data, a signature or an execution hash;
// callers that need accountability must check this before trusting a
// result.
//
// # Errors
//
// Every adapter failure is classified into exactly one ErrorKind.
// Kinds, not messages, drive retry policy: Connection, Timeout and
// RateLimit are retriable, the rest are not. Timeouts are expressed
// with context deadlines; an exceeded deadline always surfaces as
// KindTimeout.
package interfaces
