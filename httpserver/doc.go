/*
Package httpserver exposes the compute and storage backends over a
JSON HTTP API.

Backends are registered under names at startup; the {backend} path
segment selects among them per request. Errors surface with status
codes derived from the shared error taxonomy: validation failures are
400, credential problems 401, unknown jobs or content 404, provider
throttling 429 (with a Retry-After header when the provider supplied a
hint), deadline expiry 504, configuration faults 500 and everything
network-shaped 502.

API Endpoints:

  - POST /api/compute/{backend}/jobs - Submit a task, returns a job id
  - GET  /api/compute/{backend}/jobs/{job_id} - Job status
  - GET  /api/compute/{backend}/jobs/{job_id}/result?wait=true - Job result with proof
  - POST /api/compute/{backend}/jobs/{job_id}/cancel - Cancel a job

  - POST /api/storage/{backend}/objects - Store content (base64 JSON body)
  - GET  /api/storage/{backend}/objects?uri=... - Retrieve content
  - GET  /api/storage/{backend}/objects/exists?uri=... - Existence check
  - GET  /api/storage/{backend}/proof?uri=... - Storage proof without content

  - GET  /api/backends - List registered backends

Health and diagnostics:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check (load balancer health)
  - GET /drain - Mark not ready, begin graceful drain
  - GET /undrain - Mark ready again
  - /debug - pprof endpoints when enabled

Requesting a result without wait while the job is still in flight
answers 409, signalling the caller to poll again rather than treat the
job as failed.
*/
package httpserver
