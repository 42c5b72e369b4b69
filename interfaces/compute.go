package interfaces

import (
	"context"
	"errors"
)

// ErrJobNotReady is wrapped into the KindValidation error a backend
// returns when Result is called with wait=false before the job has
// completed.
var ErrJobNotReady = errors.New("job has not reached a terminal state")

// Task is the open key/value task description submitted to a compute
// backend. Common fields: model, prompt or inputs, max_tokens,
// temperature, seed, verification. Each adapter validates the fields
// it requires and fails with a KindValidation error otherwise.
type Task map[string]any

// JobState is the externally visible lifecycle state of a compute job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Valid reports whether s is one of the four canonical states.
func (s JobState) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the job can no longer change state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is the externally visible projection of a backend-owned job.
type JobStatus struct {
	JobID    string   `json:"job_id"`
	State    JobState `json:"status"`
	Progress int      `json:"progress,omitempty"`
	Error    string   `json:"error,omitempty"`

	// UpdatedAt is the last state change as a Unix timestamp.
	UpdatedAt int64 `json:"updated_at"`
}

// ComputeBackend is the four-operation contract any verifiable compute
// provider must implement. Implementations own their transport client,
// which must be safe for concurrent use by multiple in-flight jobs;
// the interface itself carries no shared mutable state across calls.
//
// Timeouts are expressed through context deadlines. An exceeded
// deadline is always surfaced as a KindTimeout error, never as a
// partial result.
type ComputeBackend interface {
	// Submit sends a task and returns the provider's job identifier.
	// Fails with KindValidation if required task fields are missing or
	// uninterpretable, KindConnection if the provider is unreachable,
	// KindAuthentication if credentials are rejected.
	Submit(ctx context.Context, task Task) (string, error)

	// Status returns the job's lifecycle state. Fails with
	// KindNotFound if the job is unknown to this backend instance.
	Status(ctx context.Context, jobID string) (JobStatus, error)

	// Result returns the job's output and proof. With wait=true the
	// call polls until the job is terminal or the context deadline
	// expires (KindTimeout). With wait=false it returns immediately,
	// failing with ErrJobNotReady wrapped in a KindValidation error if
	// the job has not completed; it never fabricates a proof.
	Result(ctx context.Context, jobID string, wait bool) (*Result, error)

	// Cancel requests cancellation. Returns true only if the job left
	// pending/running as a direct result of this call, false if it was
	// already terminal. Fails with KindNotFound if unknown.
	Cancel(ctx context.Context, jobID string) (bool, error)

	// Name returns an identifier for logging.
	Name() string
}
