package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
	"github.com/ruteri/verifiable-backends/metrics"
)

// maxBodySize is the maximum allowed request body size (32MB).
const maxBodySize = 32 * 1024 * 1024

// Handler processes HTTP requests against a set of named compute and
// storage backends. Backends are registered once at construction; the
// {backend} path segment selects among them.
type Handler struct {
	computeBackends map[string]interfaces.ComputeBackend
	storageBackends map[string]interfaces.StorageBackend
	metrics         *metrics.MetricsServer
	log             *slog.Logger
}

// NewHandler creates an HTTP request handler serving the given
// backends. The metrics server is optional.
func NewHandler(computeBackends map[string]interfaces.ComputeBackend, storageBackends map[string]interfaces.StorageBackend, m *metrics.MetricsServer, log *slog.Logger) *Handler {
	if computeBackends == nil {
		computeBackends = map[string]interfaces.ComputeBackend{}
	}
	if storageBackends == nil {
		storageBackends = map[string]interfaces.StorageBackend{}
	}
	return &Handler{
		computeBackends: computeBackends,
		storageBackends: storageBackends,
		metrics:         m,
		log:             log,
	}
}

type submitRequest struct {
	Task interfaces.Task `json:"task"`
}

type putRequest struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HandleSubmit processes job submissions.
//
// URL format: POST /api/compute/{backend}/jobs
// Request body: {"task": {...}}
// Response: {"job_id": "..."}
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.computeBackend(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	jobID, err := backend.Submit(r.Context(), req.Task)
	h.observe(backend.Name(), "submit", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

// HandleStatus reports a job's current state.
//
// URL format: GET /api/compute/{backend}/jobs/{job_id}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.computeBackend(w, r)
	if !ok {
		return
	}

	start := time.Now()
	status, err := backend.Status(r.Context(), r.PathValue("job_id"))
	h.observe(backend.Name(), "status", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// HandleResult returns a completed job's output and proof. With
// ?wait=true the request blocks until the job reaches a terminal
// state, bounded by the request context.
//
// URL format: GET /api/compute/{backend}/jobs/{job_id}/result[?wait=true]
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.computeBackend(w, r)
	if !ok {
		return
	}

	wait := r.URL.Query().Get("wait") == "true"

	start := time.Now()
	result, err := backend.Result(r.Context(), r.PathValue("job_id"), wait)
	h.observe(backend.Name(), "result", err, start)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotReady) {
			h.writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleCancel requests job cancellation.
//
// URL format: POST /api/compute/{backend}/jobs/{job_id}/cancel
// Response: {"cancelled": true|false}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.computeBackend(w, r)
	if !ok {
		return
	}

	start := time.Now()
	cancelled, err := backend.Cancel(r.Context(), r.PathValue("job_id"))
	h.observe(backend.Name(), "cancel", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

// HandlePut stores content.
//
// URL format: POST /api/storage/{backend}/objects
// Request body: {"content": "<base64>", "metadata": {...}}
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.storageBackend(w, r)
	if !ok {
		return
	}

	var req putRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		http.Error(w, "Content must be base64 encoded", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := backend.Put(r.Context(), content, req.Metadata)
	h.observe(backend.Name(), "put", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleGet retrieves content by URI.
//
// URL format: GET /api/storage/{backend}/objects?uri=...
// Response: {"content": "<base64>"}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.storageBackend(w, r)
	if !ok {
		return
	}
	uri, ok := h.contentURI(w, r)
	if !ok {
		return
	}

	start := time.Now()
	content, err := backend.Get(r.Context(), uri)
	h.observe(backend.Name(), "get", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"content": base64.StdEncoding.EncodeToString(content),
	})
}

// HandleExists checks for content by URI.
//
// URL format: GET /api/storage/{backend}/objects/exists?uri=...
// Response: {"exists": true|false}
func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.storageBackend(w, r)
	if !ok {
		return
	}
	uri, ok := h.contentURI(w, r)
	if !ok {
		return
	}

	start := time.Now()
	exists, err := backend.Exists(r.Context(), uri)
	h.observe(backend.Name(), "exists", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"exists": exists})
}

// HandleProof returns the storage proof for a URI.
//
// URL format: GET /api/storage/{backend}/proof?uri=...
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.storageBackend(w, r)
	if !ok {
		return
	}
	uri, ok := h.contentURI(w, r)
	if !ok {
		return
	}

	start := time.Now()
	proof, err := backend.GetProof(r.Context(), uri)
	h.observe(backend.Name(), "proof", err, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proof)
}

// HandleBackends lists the registered backends.
//
// URL format: GET /api/backends
func (h *Handler) HandleBackends(w http.ResponseWriter, r *http.Request) {
	compute := make([]string, 0, len(h.computeBackends))
	for name := range h.computeBackends {
		compute = append(compute, name)
	}
	storage := make([]string, 0, len(h.storageBackends))
	for name := range h.storageBackends {
		storage = append(storage, name)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"compute": compute,
		"storage": storage,
	})
}

func (h *Handler) computeBackend(w http.ResponseWriter, r *http.Request) (interfaces.ComputeBackend, bool) {
	name := r.PathValue("backend")
	backend, ok := h.computeBackends[name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown compute backend: %s", name), http.StatusNotFound)
		return nil, false
	}
	return backend, true
}

func (h *Handler) storageBackend(w http.ResponseWriter, r *http.Request) (interfaces.StorageBackend, bool) {
	name := r.PathValue("backend")
	backend, ok := h.storageBackends[name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown storage backend: %s", name), http.StatusNotFound)
		return nil, false
	}
	return backend, true
}

func (h *Handler) contentURI(w http.ResponseWriter, r *http.Request) (string, bool) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		http.Error(w, "Missing uri query parameter", http.StatusBadRequest)
		return "", false
	}
	return uri, true
}

func (h *Handler) observe(backend, operation string, err error, start time.Time) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = interfaces.KindOf(err).String()
	}
	h.metrics.ObserveOperation(backend, operation, outcome, time.Since(start))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// writeError maps the adapter error taxonomy onto HTTP status codes.
// Rate-limit errors carry the provider's retry hint in a Retry-After
// header.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var adapterErr *interfaces.Error
	if !errors.As(err, &adapterErr) {
		h.log.Error("Unclassified adapter error", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var status int
	switch adapterErr.Kind {
	case interfaces.KindValidation:
		status = http.StatusBadRequest
	case interfaces.KindAuthentication:
		status = http.StatusUnauthorized
	case interfaces.KindNotFound:
		status = http.StatusNotFound
	case interfaces.KindRateLimit:
		status = http.StatusTooManyRequests
		if adapterErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(adapterErr.RetryAfter.Seconds())))
		}
	case interfaces.KindTimeout:
		status = http.StatusGatewayTimeout
	case interfaces.KindConfiguration:
		status = http.StatusInternalServerError
	default:
		status = http.StatusBadGateway
	}

	h.writeJSON(w, status, map[string]any{
		"error":   adapterErr.Message,
		"kind":    adapterErr.Kind.String(),
		"adapter": adapterErr.Adapter,
	})
}
