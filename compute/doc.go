// Package compute provides verifiable compute backends with a uniform
// asynchronous job lifecycle.
//
// Each backend implements the four-operation contract from the
// interfaces package: Submit, Status, Result and Cancel. Jobs move
// through pending, running and a terminal state (completed or failed),
// never backwards, and every completed job carries a cryptographic
// proof describing how the computation can be verified.
//
// Available backends:
//
//   - EigenAI TEE inference, a synchronous chat completions API
//     presented through the asynchronous contract via a response cache
//   - 0G decentralized inference through a sidecar bridge, with a real
//     asynchronous lifecycle
//
// # Backend URI Format
//
// Compute backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - eigenai://?api-key-env=EIGENAI_API_KEY
//   - eigenai://inference.example.com?api-key-env=EIGENAI_API_KEY&model=gpt-oss-120b-f16
//   - zerog://localhost:8080?timeout=60s
//
// With srv=true in the query, the host is treated as a service domain
// and resolved through DNS SRV records before dialing.
//
// # Synchronous Providers
//
// EigenAI answers inference requests in a single round trip. The
// adapter caches each response under the provider's completion id, so
// Status immediately reports completed, Result returns the cached
// response, and Cancel reports false because the work already
// finished. Cached jobs expire after a TTL; afterwards they fail with
// a not-found error like any unknown id.
//
// # Error Classification
//
// All backends classify failures into the shared taxonomy: bad
// credentials are authentication errors, malformed tasks are
// validation errors, throttling is a rate-limit error carrying the
// provider's retry-after hint, context deadline expiry is always a
// timeout error, and anything else network-shaped is a connection
// error.
//
// # Usage Example
//
//	factory := compute.NewFactory(logger, nil)
//	loc, _ := interfaces.ParseBackendLocation("eigenai://?api-key-env=EIGENAI_API_KEY")
//	backend, err := factory.ComputeBackendFor(loc)
//	if err != nil {
//	    log.Fatalf("Failed to create compute backend: %v", err)
//	}
//
//	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "2+2?"})
//	result, err := backend.Result(ctx, jobID, true)
package compute
