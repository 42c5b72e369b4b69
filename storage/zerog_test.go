package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/conformance"
	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// fakeZeroGBridge emulates the storage sidecar, addressing content by
// its keccak hash as the merkle root stand-in.
type fakeZeroGBridge struct {
	objects map[string][]byte
}

func (f *fakeZeroGBridge) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/storage/put":
			var payload struct {
				Content string `json:"content"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			content, err := base64.StdEncoding.DecodeString(payload.Content)
			require.NoError(t, err)

			root := cryptoutils.ContentKeccak256(content)
			f.objects[root] = content
			json.NewEncoder(w).Encode(map[string]any{
				"root":    root,
				"tx_hash": "0xfeed",
			})

		case strings.HasPrefix(r.URL.Path, "/storage/get/"):
			root := strings.TrimPrefix(r.URL.Path, "/storage/get/")
			content, ok := f.objects[root]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"content": base64.StdEncoding.EncodeToString(content),
			})

		case strings.HasPrefix(r.URL.Path, "/storage/exists/"):
			root := strings.TrimPrefix(r.URL.Path, "/storage/exists/")
			_, ok := f.objects[root]
			json.NewEncoder(w).Encode(map[string]any{"exists": ok})

		case strings.HasPrefix(r.URL.Path, "/storage/proof/"):
			root := strings.TrimPrefix(r.URL.Path, "/storage/proof/")
			if _, ok := f.objects[root]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"root":         root,
				"proof":        map[string]any{"siblings": []string{"0x01", "0x02"}},
				"verifier_url": "https://scan.0g.ai/" + root,
			})

		default:
			t.Errorf("unexpected bridge request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newZeroGStorage(t *testing.T) *ZeroGStorageBackend {
	t.Helper()
	fake := &fakeZeroGBridge{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewZeroGStorageBackend(srv.URL, testLogger())
}

func TestZeroGStorageRoundTrip(t *testing.T) {
	backend := newZeroGStorage(t)

	ctx := context.Background()
	content := []byte("decentralized content")

	result, err := backend.Put(ctx, content, nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodMerkle, result.Proof.Method)
	assert.True(t, strings.HasPrefix(result.URI, "zerog://"))
	require.Len(t, result.AlternativeURIs, 1)
	assert.True(t, strings.HasPrefix(result.AlternativeURIs[0], "0g://"))

	for _, uri := range []string{result.URI, result.AlternativeURIs[0], result.Proof.ContentHash} {
		data, err := backend.Get(ctx, uri)
		require.NoError(t, err, "uri %s", uri)
		assert.Equal(t, content, data)

		exists, err := backend.Exists(ctx, uri)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestZeroGStorageConformance(t *testing.T) {
	conformance.RunStorage(t, newZeroGStorage(t))
}

func TestZeroGStorageProof(t *testing.T) {
	backend := newZeroGStorage(t)

	ctx := context.Background()
	result, err := backend.Put(ctx, []byte("content"), nil)
	require.NoError(t, err)

	proof, err := backend.GetProof(ctx, result.URI)
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodMerkle, proof.Method)
	assert.Equal(t, result.Proof.ContentHash, proof.ContentHash)
	assert.NotEmpty(t, proof.VerifierURL)
	assert.NotEmpty(t, proof.Metadata)
}

func TestZeroGStorageMissingContent(t *testing.T) {
	backend := newZeroGStorage(t)

	ctx := context.Background()
	_, err := backend.Get(ctx, "zerog://0xmissing")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))

	exists, err := backend.Exists(ctx, "zerog://0xmissing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestZeroGStorageBridgeUnreachable(t *testing.T) {
	backend := NewZeroGStorageBackend("http://127.0.0.1:1", testLogger())

	_, err := backend.Put(context.Background(), []byte("content"), nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))

	// Exists on a direct bridge propagates the failure.
	_, err = backend.Exists(context.Background(), "zerog://0xabc")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))
}
