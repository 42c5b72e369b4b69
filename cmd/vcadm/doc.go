// Package main (cmd/vcadm) implements an operator CLI for verifiable compute
// and storage backends.
//
// The CLI talks to backends directly through their location URIs, without
// going through a running adapterd. It is meant for smoke-testing backend
// configurations, one-off content operations, and offline proof checks.
//
// Compute commands cover the full job lifecycle:
//
//	vcadm compute --backend 'eigenai://?api-key-env=EIGENAI_API_KEY' \
//	    submit --task '{"prompt": "hello", "max_tokens": 16}'
//	vcadm compute --backend '...' status <job-id>
//	vcadm compute --backend '...' result <job-id> --wait
//	vcadm compute --backend '...' cancel <job-id>
//
// Storage commands store and retrieve content with proofs:
//
//	vcadm storage --backend 'ipfs://localhost:5001/' put --file report.json
//	vcadm storage --backend '...' get ipfs://Qm... --out report.json
//	vcadm storage --backend '...' exists ipfs://Qm...
//	vcadm storage --backend '...' proof ipfs://Qm...
//
// The verify-proof command checks a previously fetched compute result
// offline, validating the execution hash, the provider signature when an
// enclave key is present, and any embedded TDX attestation quote:
//
//	vcadm verify-proof --result-file result.json
package main
