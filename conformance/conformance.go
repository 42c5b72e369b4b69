// Package conformance provides reusable test harnesses that check a
// backend implementation against the behavioral contract shared by
// all adapters. Run them from any backend's own test file:
//
//	func TestMyBackendConformance(t *testing.T) {
//	    conformance.RunCompute(t, newMyBackend(t))
//	}
//
// The harnesses exercise the full operation surface over whatever
// transport the backend is wired to, so they work equally against
// in-memory implementations and adapters pointed at test servers.
package conformance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// RunCompute checks a compute backend against the job lifecycle
// contract: submit succeeds, status is always a valid state, the
// result of a completed job carries a verifiable proof, and unknown
// job ids fail with not-found.
func RunCompute(t *testing.T, backend interfaces.ComputeBackend) {
	t.Helper()
	ctx := context.Background()

	require.NotEmpty(t, backend.Name(), "backend must have a name")

	t.Run("submit and complete", func(t *testing.T) {
		jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "conformance check"})
		require.NoError(t, err)
		require.NotEmpty(t, jobID, "Submit must return a job id")

		status, err := backend.Status(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, jobID, status.JobID)
		assert.True(t, status.State.Valid(), "state %q is not a valid job state", status.State)

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		result, err := backend.Result(waitCtx, jobID, true)
		require.NoError(t, err)
		assert.Equal(t, jobID, result.JobID)
		assert.True(t, result.Proof.Verified(), "completed job must carry proof evidence")
		assert.True(t, interfaces.KnownComputeMethod(result.Proof.Method),
			"proof method %q is not a recognized compute verification technique", result.Proof.Method)
		assert.NotZero(t, result.Proof.Timestamp)

		// Terminal state is sticky.
		status, err = backend.Status(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, interfaces.JobCompleted, status.State)

		// The result stays retrievable after completion.
		again, err := backend.Result(ctx, jobID, false)
		require.NoError(t, err)
		assert.Equal(t, result.JobID, again.JobID)
	})

	t.Run("cancel semantics", func(t *testing.T) {
		jobID, err := backend.Submit(ctx, interfaces.Task{"prompt": "to be cancelled"})
		require.NoError(t, err)

		cancelled, err := backend.Cancel(ctx, jobID)
		require.NoError(t, err)

		if cancelled {
			// A successful cancel must not leave the job completable.
			status, err := backend.Status(ctx, jobID)
			require.NoError(t, err)
			assert.NotEqual(t, interfaces.JobCompleted, status.State)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := backend.Status(ctx, "conformance-nonexistent-job")
		require.Error(t, err)
		assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound),
			"Status on unknown id must be a not-found error, got %v", err)

		_, err = backend.Result(ctx, "conformance-nonexistent-job", false)
		require.Error(t, err)
		assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound),
			"Result on unknown id must be a not-found error, got %v", err)
	})

	t.Run("invalid task", func(t *testing.T) {
		_, err := backend.Submit(ctx, interfaces.Task{})
		require.Error(t, err)
		assert.True(t, interfaces.IsKind(err, interfaces.KindValidation),
			"Submit with an empty task must be a validation error, got %v", err)
	})
}

// RunStorage checks a storage backend against the storage contract:
// put-get round trips preserve content, every URI form Put returns
// names the same content, Exists treats absence as false, and GetProof
// is derivable without the content.
func RunStorage(t *testing.T, backend interfaces.StorageBackend) {
	t.Helper()
	ctx := context.Background()

	require.NotEmpty(t, backend.Name(), "backend must have a name")
	require.NotEmpty(t, backend.LocationURI(), "backend must have a location URI")

	t.Run("round trip", func(t *testing.T) {
		content := []byte("conformance content " + time.Now().String())

		result, err := backend.Put(ctx, content, map[string]string{"suite": "conformance"})
		require.NoError(t, err)
		require.NotEmpty(t, result.URI, "Put must return a URI")
		require.NotEmpty(t, result.Proof.ContentHash, "proof must carry a content commitment")
		assert.True(t, interfaces.KnownStorageMethod(result.Proof.Method),
			"unknown proof method %q", result.Proof.Method)

		uris := append([]string{result.URI}, result.AlternativeURIs...)
		for _, uri := range uris {
			data, err := backend.Get(ctx, uri)
			require.NoError(t, err, "Get(%s)", uri)
			assert.Equal(t, content, data, "Get(%s) returned different content", uri)

			exists, err := backend.Exists(ctx, uri)
			require.NoError(t, err, "Exists(%s)", uri)
			assert.True(t, exists, "Exists(%s) after Put must be true", uri)
		}
	})

	t.Run("proof idempotence", func(t *testing.T) {
		result, err := backend.Put(ctx, []byte("proof content"), nil)
		require.NoError(t, err)

		first, err := backend.GetProof(ctx, result.URI)
		require.NoError(t, err)
		second, err := backend.GetProof(ctx, result.URI)
		require.NoError(t, err)

		assert.Equal(t, first.Method, second.Method)
		assert.Equal(t, first.ContentHash, second.ContentHash)
		assert.Equal(t, result.Proof.Method, first.Method)
		assert.Equal(t, result.Proof.ContentHash, first.ContentHash)
	})

	t.Run("absent content", func(t *testing.T) {
		missing := missingContentURI()

		exists, err := backend.Exists(ctx, missing)
		if err == nil {
			assert.False(t, exists, "Exists on absent content must be false")
		}

		_, err = backend.Get(ctx, missing)
		require.Error(t, err)
		assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound),
			"Get on absent content must be a not-found error, got %v", err)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := backend.Put(ctx, nil, nil)
		require.Error(t, err)
		assert.True(t, interfaces.IsKind(err, interfaces.KindValidation),
			"Put with empty content must be a validation error, got %v", err)
	})
}

// missingContentURI returns a bare identifier every backend family
// accepts but none stores content under.
func missingContentURI() string {
	return "636f6e666f726d616e63655f6d697373696e675f636f6e74656e745f686173"
}
