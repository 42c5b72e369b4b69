package compute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/conformance"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// fakeBridge emulates the sidecar's job state machine: each status
// query advances the job one step toward completion.
type fakeBridge struct {
	mu    sync.Mutex
	jobs  map[string]int
	next  int
	steps int
}

func newFakeBridge(steps int) *fakeBridge {
	return &fakeBridge{jobs: make(map[string]int), steps: steps}
}

func (f *fakeBridge) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == "POST" && r.URL.Path == "/compute/submit":
			f.next++
			jobID := "job-" + string(rune('a'+f.next-1))
			f.jobs[jobID] = 0
			json.NewEncoder(w).Encode(map[string]any{"job_id": jobID})

		case strings.HasPrefix(r.URL.Path, "/compute/status/"):
			jobID := strings.TrimPrefix(r.URL.Path, "/compute/status/")
			step, ok := f.jobs[jobID]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			state := "running"
			if step == 0 {
				state = "pending"
			}
			if step >= f.steps {
				state = "completed"
			} else {
				f.jobs[jobID] = step + 1
			}
			json.NewEncoder(w).Encode(map[string]any{
				"job_id":     jobID,
				"state":      state,
				"progress":   step * 100 / f.steps,
				"updated_at": time.Now().Unix(),
			})

		case strings.HasPrefix(r.URL.Path, "/compute/result/"):
			jobID := strings.TrimPrefix(r.URL.Path, "/compute/result/")
			if _, ok := f.jobs[jobID]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"job_id": jobID,
				"output": map[string]any{"answer": "42"},
				"proof": map[string]any{
					"method":         "tee-ml",
					"execution_hash": "0xabc123",
					"timestamp":      float64(time.Now().Unix()),
				},
			})

		case r.Method == "POST" && strings.HasPrefix(r.URL.Path, "/compute/cancel/"):
			jobID := strings.TrimPrefix(r.URL.Path, "/compute/cancel/")
			step, ok := f.jobs[jobID]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"cancelled": step < f.steps})

		default:
			t.Errorf("unexpected bridge request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newZeroGBackend(t *testing.T, bridge *fakeBridge) *ZeroGComputeBackend {
	t.Helper()
	srv := httptest.NewServer(bridge.handler(t))
	t.Cleanup(srv.Close)
	return NewZeroGComputeBackend(ZeroGComputeConfig{BridgeURL: srv.URL}, testLogger())
}

func TestZeroGComputeLifecycle(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(2))
	assert.Equal(t, "zerog", backend.Name())

	ctx := context.Background()
	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	status, err := backend.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobPending, status.State)

	status, err = backend.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobRunning, status.State)

	status, err = backend.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobCompleted, status.State)

	result, err := backend.Result(ctx, jobID, false)
	require.NoError(t, err)
	assert.Equal(t, jobID, result.JobID)
	assert.Equal(t, interfaces.MethodTEEML, result.Proof.Method)
	assert.Equal(t, "0xabc123", result.Proof.ExecutionHash)
	assert.True(t, result.Proof.Verified())
}

func TestZeroGUnrecognizedProofMethodReportsTEEML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/compute/submit":
			json.NewEncoder(w).Encode(map[string]any{"job_id": "job-1"})
		case strings.HasPrefix(r.URL.Path, "/compute/status/"):
			json.NewEncoder(w).Encode(map[string]any{
				"job_id": "job-1", "state": "completed", "progress": 100, "updated_at": time.Now().Unix(),
			})
		case strings.HasPrefix(r.URL.Path, "/compute/result/"):
			json.NewEncoder(w).Encode(map[string]any{
				"job_id": "job-1",
				"output": "ok",
				"proof": map[string]any{
					"method":         "merkle-proof",
					"execution_hash": "0xabc123",
				},
			})
		}
	}))
	defer srv.Close()

	backend := NewZeroGComputeBackend(ZeroGComputeConfig{BridgeURL: srv.URL}, testLogger())

	ctx := context.Background()
	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "hello"})
	require.NoError(t, err)

	result, err := backend.Result(ctx, jobID, false)
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodTEEML, result.Proof.Method)
	assert.True(t, interfaces.KnownComputeMethod(result.Proof.Method))
	assert.Equal(t, "merkle-proof", result.Proof.Attestation["method"])
}

func TestZeroGComputeConformance(t *testing.T) {
	conformance.RunCompute(t, newZeroGBackend(t, newFakeBridge(1)))
}

func TestZeroGResultNotReadyWithoutWait(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(5))

	ctx := context.Background()
	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)

	_, err = backend.Result(ctx, jobID, false)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindValidation))
	assert.ErrorIs(t, err, interfaces.ErrJobNotReady)
}

func TestZeroGResultWaitBoundedByContext(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(1000))

	jobID, err := backend.Submit(context.Background(), interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = backend.Result(ctx, jobID, true)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindTimeout))
}

func TestZeroGCancel(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(10))

	ctx := context.Background()
	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)

	cancelled, err := backend.Cancel(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestZeroGUnknownJob(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(1))

	_, err := backend.Status(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))
}

func TestZeroGRejectsEmptyTask(t *testing.T) {
	backend := newZeroGBackend(t, newFakeBridge(1))

	_, err := backend.Submit(context.Background(), interfaces.Task{})
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindValidation))
}

func TestZeroGBridgeUnreachable(t *testing.T) {
	backend := NewZeroGComputeBackend(ZeroGComputeConfig{BridgeURL: "http://127.0.0.1:1"}, testLogger())

	_, err := backend.Submit(context.Background(), interfaces.Task{"prompt": "hi"})
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))
}
