// Package main (cmd/adapterd) implements the verifiable backend adapter daemon.
//
// The daemon exposes a uniform HTTP API over the configured compute and storage
// backends. Compute backends run tasks as asynchronous jobs and return results
// with verification proofs; storage backends store content by hash and return
// content URIs with retrievability proofs.
//
// Backends are configured through repeatable location URI flags and are routed
// by backend name in the API path:
//
//	adapterd \
//	    --compute-backend 'eigenai://?api-key-env=EIGENAI_API_KEY' \
//	    --compute-backend 'zerog://localhost:8080/' \
//	    --storage-backend 'ipfs://localhost:5001/' \
//	    --storage-backend 'pinata://?jwt-env=PINATA_JWT' \
//	    --listen-addr 0.0.0.0:8080
//
// Credentials are passed either inline in the URI userinfo or, preferably,
// through environment variables named by the api-key-env and jwt-env URI
// parameters. Backend hosts can be discovered through DNS SRV records by
// adding srv=true to a location URI; the --dns-resolver flag selects the DNS
// server used for those lookups.
//
// The daemon serves Prometheus metrics on a separate listener, supports
// health checks and connection draining, and shuts down gracefully on
// SIGINT/SIGTERM.
package main
