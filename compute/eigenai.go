package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
)

const (
	eigenAIDefaultEndpoint = "https://eigenai.eigencloud.xyz"
	eigenAIDefaultModel    = "gpt-oss-120b-f16"
	eigenAIDefaultTimeout  = 120 * time.Second

	eigenAIChatCompletions = "/v1/chat/completions"
	eigenAIModels          = "/v1/models"
)

// EigenAIBackend runs TEE-attested inference against the EigenAI chat
// completions API. The provider answers in a single round trip, so the
// adapter satisfies the four-operation job contract by caching each
// response under the provider's completion id: Status, Result and
// Cancel answer from the cache without further network calls, and the
// external state machine still reports completed for every known job.
type EigenAIBackend struct {
	client         *http.Client
	apiURL         string
	apiKey         string
	model          string
	defaultTimeout time.Duration
	jobs           *jobCache
	log            *slog.Logger
}

// EigenAIConfig carries the explicit construction parameters for an
// EigenAI backend. No configuration is read from globals.
type EigenAIConfig struct {
	// APIURL defaults to the public EigenAI endpoint.
	APIURL string

	// APIKey is required.
	APIKey string

	// Model is the default model for tasks that do not name one.
	Model string

	// Timeout applies to calls whose context has no deadline.
	Timeout time.Duration

	// JobTTL bounds the response cache.
	JobTTL time.Duration
}

// NewEigenAIBackend creates an EigenAI compute backend.
func NewEigenAIBackend(cfg EigenAIConfig, log *slog.Logger) (*EigenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "eigenai", "api key is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = eigenAIDefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = eigenAIDefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = eigenAIDefaultTimeout
	}

	return &EigenAIBackend{
		client:         &http.Client{},
		apiURL:         apiURL,
		apiKey:         cfg.APIKey,
		model:          model,
		defaultTimeout: timeout,
		jobs:           newJobCache(cfg.JobTTL),
		log:            log,
	}, nil
}

// Name returns the adapter identifier for logging.
func (b *EigenAIBackend) Name() string { return "eigenai" }

type eigenAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage             map[string]any `json:"usage"`
	Signature         string         `json:"signature"`
	SystemFingerprint string         `json:"system_fingerprint"`
}

// Submit sends the task as a chat completion and caches the response
// under the provider's completion id, which becomes the job id.
func (b *EigenAIBackend) Submit(ctx context.Context, task interfaces.Task) (string, error) {
	start := time.Now()

	payload, err := b.chatPayload(task)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", interfaces.NewError(interfaces.KindValidation, "eigenai", "task is not serializable").WithCause(err)
	}

	ctx, cancel := b.withDefaultTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+eigenAIChatCompletions, bytes.NewReader(body))
	if err != nil {
		return "", interfaces.Classify(err, "eigenai")
	}
	req.Header.Set("X-API-Key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err, "eigenai")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", interfaces.Classify(err, "eigenai")
	}
	if err := classifyHTTPStatus(resp, raw, "eigenai"); err != nil {
		return "", err
	}

	var chat eigenAIChatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return "", interfaces.NewError(interfaces.KindConnection, "eigenai", "malformed provider response").WithCause(err)
	}

	jobID := chat.ID
	if jobID == "" {
		jobID = "eigen-" + uuid.NewString()
	}

	completedAt := chat.Created
	if completedAt == 0 {
		completedAt = time.Now().Unix()
	}

	b.jobs.put(jobID, &cachedJob{
		status: interfaces.JobStatus{
			JobID:     jobID,
			State:     interfaces.JobCompleted,
			Progress:  100,
			UpdatedAt: completedAt,
		},
		result: b.buildResult(jobID, body, raw, &chat, completedAt),
	})

	b.log.Debug("Submitted EigenAI completion",
		slog.String("jobID", jobID),
		slog.String("model", chat.Model),
		slog.Bool("signed", chat.Signature != ""),
		slog.Duration("duration", time.Since(start)))

	return jobID, nil
}

// Status reports the cached job state. EigenAI completions transition
// to completed instantly; unknown ids fail with KindNotFound.
func (b *EigenAIBackend) Status(ctx context.Context, jobID string) (interfaces.JobStatus, error) {
	job, ok := b.jobs.get(jobID)
	if !ok {
		return interfaces.JobStatus{}, jobNotFound("eigenai", jobID)
	}
	return job.status, nil
}

// Result returns the cached result. The wait flag is accepted for
// contract compatibility; there is never anything to wait for.
func (b *EigenAIBackend) Result(ctx context.Context, jobID string, wait bool) (*interfaces.Result, error) {
	job, ok := b.jobs.get(jobID)
	if !ok {
		return nil, jobNotFound("eigenai", jobID)
	}
	return job.result, nil
}

// Cancel always returns false for known jobs: the provider completes
// synchronously, so every cached job is already terminal. The cached
// result stays retrievable.
func (b *EigenAIBackend) Cancel(ctx context.Context, jobID string) (bool, error) {
	if _, ok := b.jobs.get(jobID); !ok {
		return false, jobNotFound("eigenai", jobID)
	}
	return false, nil
}

// ModelInfo describes a model offered by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// ListModels returns the models available on the EigenAI endpoint.
func (b *EigenAIBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := b.withDefaultTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiURL+eigenAIModels, nil)
	if err != nil {
		return nil, interfaces.Classify(err, "eigenai")
	}
	req.Header.Set("X-API-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "eigenai")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, interfaces.Classify(err, "eigenai")
	}
	if err := classifyHTTPStatus(resp, raw, "eigenai"); err != nil {
		return nil, err
	}

	var parsed struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, "eigenai", "malformed models response").WithCause(err)
	}
	return parsed.Data, nil
}

// chatPayload translates the open task map into the provider's chat
// completion request. A missing prompt is a validation error; the seed
// defaults to 42 so results are reproducible unless the caller opts
// out.
func (b *EigenAIBackend) chatPayload(task interfaces.Task) (map[string]any, error) {
	var messages any
	switch prompt := task["prompt"].(type) {
	case string:
		if prompt == "" {
			return nil, interfaces.NewError(interfaces.KindValidation, "eigenai", "task prompt is empty")
		}
		messages = []map[string]any{{"role": "user", "content": prompt}}
	case nil:
		if task["messages"] == nil {
			return nil, interfaces.NewError(interfaces.KindValidation, "eigenai", "task requires a prompt or messages")
		}
		messages = task["messages"]
	default:
		// Already structured messages passed under "prompt".
		messages = prompt
	}

	model := b.model
	if m, ok := task["model"].(string); ok && m != "" {
		model = m
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"seed":     42,
	}
	for _, field := range []string{"max_tokens", "temperature", "seed", "top_p", "frequency_penalty", "presence_penalty"} {
		if v, ok := task[field]; ok {
			payload[field] = v
		}
	}
	return payload, nil
}

// buildResult constructs the immutable Result for a completed chat
// call. The execution hash binds the request payload to the returned
// text; the provider's signature and system fingerprint, when present,
// are the TEE evidence.
func (b *EigenAIBackend) buildResult(jobID string, request, raw []byte, chat *eigenAIChatResponse, completedAt int64) *interfaces.Result {
	var output string
	if len(chat.Choices) > 0 {
		output = chat.Choices[0].Message.Content
	}

	proof := interfaces.Proof{
		Method:        interfaces.MethodTEEML,
		Signature:     chat.Signature,
		ExecutionHash: cryptoutils.ExecutionHash(request, []byte(output)),
		Timestamp:     completedAt,
	}
	if chat.Signature != "" {
		proof.Attestation = map[string]any{
			"signature":          chat.Signature,
			"system_fingerprint": chat.SystemFingerprint,
			"id":                 chat.ID,
			"created":            chat.Created,
		}
	}

	return &interfaces.Result{
		JobID:  jobID,
		Output: output,
		Proof:  proof,
		Raw:    json.RawMessage(raw),
	}
}

func (b *EigenAIBackend) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.defaultTimeout)
}

func jobNotFound(adapter, jobID string) *interfaces.Error {
	return interfaces.NewError(interfaces.KindNotFound, adapter, "unknown job: "+jobID).
		WithDetails(map[string]any{"job_id": jobID})
}

// classifyTransportError maps an http.Client error onto the taxonomy.
func classifyTransportError(err error, adapter string) *interfaces.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewError(interfaces.KindTimeout, adapter, "request deadline exceeded").WithCause(err)
	}
	return interfaces.NewError(interfaces.KindConnection, adapter, "provider unreachable").WithCause(err)
}

// classifyHTTPStatus maps a non-2xx provider response onto the
// taxonomy. Unrecognized statuses default to KindConnection.
func classifyHTTPStatus(resp *http.Response, body []byte, adapter string) *interfaces.Error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	details := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(body),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return interfaces.NewError(interfaces.KindAuthentication, adapter, "credentials rejected").WithDetails(details)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return interfaces.NewError(interfaces.KindValidation, adapter, "provider rejected request").WithDetails(details)
	case resp.StatusCode == http.StatusNotFound:
		return interfaces.NewError(interfaces.KindNotFound, adapter, "resource not found").WithDetails(details)
	case resp.StatusCode == http.StatusTooManyRequests:
		e := interfaces.NewError(interfaces.KindRateLimit, adapter, "provider throttled request").WithDetails(details)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e = e.WithRetryAfter(time.Duration(secs) * time.Second)
		}
		return e
	case resp.StatusCode == http.StatusGatewayTimeout:
		return interfaces.NewError(interfaces.KindTimeout, adapter, "provider timed out").WithDetails(details)
	default:
		return interfaces.NewError(interfaces.KindConnection, adapter,
			fmt.Sprintf("unexpected provider status %d", resp.StatusCode)).WithDetails(details)
	}
}
