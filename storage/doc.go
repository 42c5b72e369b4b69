// Package storage provides verifiable storage backends behind a
// single four-operation contract: Put, Get, Exists and GetProof.
//
// Every backend addresses content by a cryptographic commitment, so
// the URI returned by Put is itself the integrity anchor:
//
//   - IPFS node storage, addressed by CID
//   - Pinata pinning service, addressed by CID
//   - 0G decentralized storage via a sidecar bridge, addressed by
//     merkle root
//   - S3-compatible object storage, addressed by SHA-256 hash
//   - HashiCorp Vault with TLS client authentication, addressed by
//     SHA-256 hash
//   - File system storage for local development and tests
//
// # Backend URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/backends/artifacts/
//   - ipfs://ipfs.example.com:5001/?gateway=https://gateway.example.com/ipfs/
//   - pinata://?jwt-env=PINATA_JWT
//   - zerog://localhost:8081
//   - s3://bucket-name/prefix/?region=us-west-2
//   - vault://vault.example.com:8200/secret/artifacts
//
// # Content URIs
//
// Put returns a canonical content URI plus any alternative access
// URIs (gateway URLs, alternate schemes). Get, Exists and GetProof
// accept every form the backend family produces: scheme-prefixed
// URIs, gateway URLs and bare identifiers all name the same content.
//
// # Proofs
//
// GetProof never downloads content. For content-addressed backends
// the proof derives from the URI alone; the 0G backend fetches the
// network's merkle proof from its bridge.
//
// # Existence Checks
//
// Exists treats absence as a normal false result, never an error.
// Backends with a direct, reliable connection (IPFS node, S3, Vault,
// 0G bridge) propagate connection-level failures; the Pinata backend
// degrades to false because its pin list is a third-party index.
//
// # Multi-Backend Redundancy
//
// CreateMultiBackend aggregates several locations into one backend
// that stores everywhere and reads from the first member that has the
// content:
//
//	factory := storage.NewFactory(logger, nil)
//	backend, err := factory.CreateMultiBackend([]string{
//	    "file:///var/lib/backends/",
//	    "ipfs://localhost:5001/",
//	    "s3://my-bucket/artifacts/?region=us-west-2",
//	})
package storage
