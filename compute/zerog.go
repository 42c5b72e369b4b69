package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
)

const (
	zeroGDefaultBridge  = "http://localhost:8080"
	zeroGDefaultTimeout = 60 * time.Second
	zeroGPollInterval   = 2 * time.Second
)

// ZeroGComputeBackend drives 0G decentralized inference through a
// sidecar bridge exposing a small JSON API. Unlike EigenAI the job
// lifecycle is real: Submit returns immediately and the bridge tracks
// the job through pending, running and a terminal state.
type ZeroGComputeBackend struct {
	client    *http.Client
	bridgeURL string
	timeout   time.Duration
	log       *slog.Logger
}

// ZeroGComputeConfig configures the bridge client.
type ZeroGComputeConfig struct {
	// BridgeURL defaults to the local sidecar address.
	BridgeURL string

	// Timeout applies per bridge round trip when the caller's context
	// has no deadline. Result polling with wait set is bounded only by
	// the caller's context.
	Timeout time.Duration
}

// NewZeroGComputeBackend creates a 0G compute backend talking to the
// given bridge.
func NewZeroGComputeBackend(cfg ZeroGComputeConfig, log *slog.Logger) *ZeroGComputeBackend {
	bridgeURL := cfg.BridgeURL
	if bridgeURL == "" {
		bridgeURL = zeroGDefaultBridge
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = zeroGDefaultTimeout
	}
	return &ZeroGComputeBackend{
		client:    &http.Client{},
		bridgeURL: bridgeURL,
		timeout:   timeout,
		log:       log,
	}
}

// Name returns the adapter identifier for logging.
func (b *ZeroGComputeBackend) Name() string { return "zerog" }

// Submit posts the task to the bridge and returns the job id it
// assigns.
func (b *ZeroGComputeBackend) Submit(ctx context.Context, task interfaces.Task) (string, error) {
	if len(task) == 0 {
		return "", interfaces.NewError(interfaces.KindValidation, "zerog", "task is empty")
	}

	var parsed struct {
		JobID string `json:"job_id"`
	}
	if err := b.call(ctx, http.MethodPost, "/compute/submit", task, &parsed); err != nil {
		return "", err
	}
	if parsed.JobID == "" {
		return "", interfaces.NewError(interfaces.KindConnection, "zerog", "bridge returned no job id")
	}

	b.log.Debug("Submitted 0G compute job", slog.String("jobID", parsed.JobID))
	return parsed.JobID, nil
}

type zeroGStatusResponse struct {
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	Progress  int    `json:"progress"`
	Error     string `json:"error"`
	UpdatedAt int64  `json:"updated_at"`
}

// Status queries the bridge for the job's current state.
func (b *ZeroGComputeBackend) Status(ctx context.Context, jobID string) (interfaces.JobStatus, error) {
	var parsed zeroGStatusResponse
	if err := b.call(ctx, http.MethodGet, "/compute/status/"+jobID, nil, &parsed); err != nil {
		return interfaces.JobStatus{}, err
	}

	state := interfaces.JobState(parsed.State)
	if !state.Valid() {
		return interfaces.JobStatus{}, interfaces.NewError(interfaces.KindConnection, "zerog",
			fmt.Sprintf("bridge reported unknown state %q", parsed.State))
	}

	return interfaces.JobStatus{
		JobID:     jobID,
		State:     state,
		Progress:  parsed.Progress,
		Error:     parsed.Error,
		UpdatedAt: parsed.UpdatedAt,
	}, nil
}

type zeroGResultResponse struct {
	JobID  string         `json:"job_id"`
	Output any            `json:"output"`
	Proof  map[string]any `json:"proof"`
}

// Result fetches the completed job's output and proof. With wait set
// it polls status until the job reaches a terminal state, bounded by
// the caller's context. Without wait, a job still in flight fails with
// a validation error wrapping ErrJobNotReady.
func (b *ZeroGComputeBackend) Result(ctx context.Context, jobID string, wait bool) (*interfaces.Result, error) {
	for {
		status, err := b.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case interfaces.JobCompleted:
			return b.fetchResult(ctx, jobID)
		case interfaces.JobFailed:
			return nil, interfaces.NewError(interfaces.KindConnection, "zerog",
				"job failed: "+status.Error).WithDetails(map[string]any{"job_id": jobID})
		}

		if !wait {
			return nil, interfaces.NewError(interfaces.KindValidation, "zerog",
				fmt.Sprintf("job %s is %s", jobID, status.State)).
				WithCause(interfaces.ErrJobNotReady).
				WithDetails(map[string]any{"job_id": jobID, "state": string(status.State)})
		}

		select {
		case <-ctx.Done():
			return nil, interfaces.Classify(ctx.Err(), "zerog")
		case <-time.After(zeroGPollInterval):
		}
	}
}

func (b *ZeroGComputeBackend) fetchResult(ctx context.Context, jobID string) (*interfaces.Result, error) {
	raw, err := b.callRaw(ctx, http.MethodGet, "/compute/result/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var parsed zeroGResultResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, "zerog", "malformed bridge result").WithCause(err)
	}

	proof := interfaces.Proof{Method: interfaces.MethodNone, Timestamp: time.Now().Unix()}
	if parsed.Proof != nil {
		// The bridge runs TEE inference; a missing or unrecognized
		// method string still means tee-ml, never a storage scheme.
		proof.Method = interfaces.MethodTEEML
		if m, ok := parsed.Proof["method"].(string); ok && interfaces.KnownComputeMethod(interfaces.ProofMethod(m)) {
			proof.Method = interfaces.ProofMethod(m)
		}
		if s, ok := parsed.Proof["signature"].(string); ok {
			proof.Signature = s
		}
		if h, ok := parsed.Proof["execution_hash"].(string); ok {
			proof.ExecutionHash = h
		}
		if k, ok := parsed.Proof["enclave_key"].(string); ok {
			proof.EnclaveKey = k
		}
		if d, ok := parsed.Proof["image_digest"].(string); ok {
			proof.ImageDigest = d
		}
		if ts, ok := parsed.Proof["timestamp"].(float64); ok && ts > 0 {
			proof.Timestamp = int64(ts)
		}
		proof.Attestation = parsed.Proof
	}

	return &interfaces.Result{
		JobID:  jobID,
		Output: parsed.Output,
		Proof:  proof,
		Raw:    json.RawMessage(raw),
	}, nil
}

// Cancel asks the bridge to stop the job. The bridge answers with
// cancelled=false for jobs already terminal.
func (b *ZeroGComputeBackend) Cancel(ctx context.Context, jobID string) (bool, error) {
	var parsed struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := b.call(ctx, http.MethodPost, "/compute/cancel/"+jobID, nil, &parsed); err != nil {
		return false, err
	}
	return parsed.Cancelled, nil
}

func (b *ZeroGComputeBackend) call(ctx context.Context, method, path string, payload, out any) error {
	raw, err := b.callRaw(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return interfaces.NewError(interfaces.KindConnection, "zerog", "malformed bridge response").WithCause(err)
	}
	return nil
}

func (b *ZeroGComputeBackend) callRaw(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, interfaces.NewError(interfaces.KindValidation, "zerog", "payload is not serializable").WithCause(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.bridgeURL+path, body)
	if err != nil {
		return nil, interfaces.Classify(err, "zerog")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "zerog")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, interfaces.Classify(err, "zerog")
	}
	if err := classifyHTTPStatus(resp, raw, "zerog"); err != nil {
		return nil, err
	}
	return raw, nil
}
