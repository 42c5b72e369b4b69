package compute

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/conformance"
	"github.com/ruteri/verifiable-backends/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEigenAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func eigenAIChatHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "POST", r.Method)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["messages"])
		assert.NotEmpty(t, payload["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-123",
			"model":   payload["model"],
			"created": time.Now().Unix(),
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "4"}},
			},
			"signature":          "0xdeadbeef",
			"system_fingerprint": "fp_tee_1",
		})
	}
}

func TestEigenAILifecycle(t *testing.T) {
	srv := newEigenAIServer(t, eigenAIChatHandler(t))

	backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "eigenai", backend.Name())

	ctx := context.Background()
	jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "2+2?"})
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-123", jobID)

	status, err := backend.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobCompleted, status.State)
	assert.Equal(t, 100, status.Progress)

	result, err := backend.Result(ctx, jobID, false)
	require.NoError(t, err)
	assert.Equal(t, jobID, result.JobID)
	assert.Equal(t, "4", result.Output)
	assert.Equal(t, interfaces.MethodTEEML, result.Proof.Method)
	assert.Equal(t, "0xdeadbeef", result.Proof.Signature)
	assert.NotEmpty(t, result.Proof.ExecutionHash)
	assert.True(t, result.Proof.Verified())

	// Already terminal, nothing to cancel.
	cancelled, err := backend.Cancel(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	// Result must stay retrievable after the cancel attempt.
	again, err := backend.Result(ctx, jobID, true)
	require.NoError(t, err)
	assert.Equal(t, result.Proof.ExecutionHash, again.Proof.ExecutionHash)
}

func TestEigenAIConformance(t *testing.T) {
	srv := newEigenAIServer(t, eigenAIChatHandler(t))

	backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	conformance.RunCompute(t, backend)
}

func TestEigenAIRequiresAPIKey(t *testing.T) {
	_, err := NewEigenAIBackend(EigenAIConfig{}, testLogger())
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConfiguration))
}

func TestEigenAIValidatesTask(t *testing.T) {
	backend, err := NewEigenAIBackend(EigenAIConfig{APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	_, err = backend.Submit(context.Background(), interfaces.Task{})
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindValidation))

	_, err = backend.Submit(context.Background(), interfaces.Task{"prompt": ""})
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindValidation))
}

func TestEigenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryAfter string
		wantKind   interfaces.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, "", interfaces.KindAuthentication},
		{"forbidden", http.StatusForbidden, "", interfaces.KindAuthentication},
		{"bad request", http.StatusBadRequest, "", interfaces.KindValidation},
		{"rate limited", http.StatusTooManyRequests, "30", interfaces.KindRateLimit},
		{"gateway timeout", http.StatusGatewayTimeout, "", interfaces.KindTimeout},
		{"server error", http.StatusInternalServerError, "", interfaces.KindConnection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newEigenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(tc.statusCode)
			})

			backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
			require.NoError(t, err)

			_, err = backend.Submit(context.Background(), interfaces.Task{"prompt": "hi"})
			require.Error(t, err)
			assert.True(t, interfaces.IsKind(err, tc.wantKind), "expected %s, got %v", tc.wantKind, err)

			if tc.retryAfter != "" {
				var adapterErr *interfaces.Error
				require.ErrorAs(t, err, &adapterErr)
				assert.Equal(t, 30*time.Second, adapterErr.RetryAfter)
			}
		})
	}
}

func TestEigenAIDeadlineExceeded(t *testing.T) {
	srv := newEigenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindTimeout))
}

func TestEigenAIUnknownJob(t *testing.T) {
	backend, err := NewEigenAIBackend(EigenAIConfig{APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = backend.Status(ctx, "nope")
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))

	_, err = backend.Result(ctx, "nope", true)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))

	_, err = backend.Cancel(ctx, "nope")
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))
}

func TestEigenAIExecutionHashBindsOutput(t *testing.T) {
	output := "first"
	srv := newEigenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-" + output,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": output}},
			},
		})
	})

	backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	jobA, err := backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)

	output = "second"
	jobB, err := backend.Submit(ctx, interfaces.Task{"prompt": "hi"})
	require.NoError(t, err)

	resultA, err := backend.Result(ctx, jobA, false)
	require.NoError(t, err)
	resultB, err := backend.Result(ctx, jobB, false)
	require.NoError(t, err)

	// Same request, different outputs, so the hashes must differ.
	assert.NotEqual(t, resultA.Proof.ExecutionHash, resultB.Proof.ExecutionHash)
}

func TestEigenAIListModels(t *testing.T) {
	srv := newEigenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "gpt-oss-120b-f16", "owned_by": "eigenai"},
				{"id": "deepseek-r1", "owned_by": "eigenai"},
			},
		})
	})

	backend, err := NewEigenAIBackend(EigenAIConfig{APIURL: srv.URL, APIKey: "test-key"}, testLogger())
	require.NoError(t, err)

	models, err := backend.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-oss-120b-f16", models[0].ID)
}
