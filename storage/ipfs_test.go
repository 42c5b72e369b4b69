package storage

import (
	"context"
	"encoding/json"
	"io"
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

// fakeIPFSNode emulates the node HTTP API endpoints the shell client
// uses: version, add, cat and object/stat. Content is addressed by a
// deterministic CID derived from its hash.
type fakeIPFSNode struct {
	blocks map[string][]byte
}

func fakeCID(content []byte) string {
	return "Qm" + cryptoutils.ContentSHA256(content)[:32]
}

func (f *fakeIPFSNode) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v0/version":
			json.NewEncoder(w).Encode(map[string]any{"Version": "0.14.0"})

		case r.URL.Path == "/api/v0/add":
			reader, err := r.MultipartReader()
			require.NoError(t, err)
			part, err := reader.NextPart()
			require.NoError(t, err)
			content, err := io.ReadAll(part)
			require.NoError(t, err)

			cid := fakeCID(content)
			f.blocks[cid] = content
			json.NewEncoder(w).Encode(map[string]any{
				"Name": cid,
				"Hash": cid,
				"Size": "0",
			})

		case r.URL.Path == "/api/v0/cat":
			content, ok := f.blocks[r.URL.Query().Get("arg")]
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{"Message": "merkledag: not found", "Code": 0, "Type": "error"})
				return
			}
			w.Write(content)

		case r.URL.Path == "/api/v0/object/stat":
			cid := r.URL.Query().Get("arg")
			content, ok := f.blocks[cid]
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{"Message": "merkledag: not found", "Code": 0, "Type": "error"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"Hash":           cid,
				"NumLinks":       0,
				"BlockSize":      len(content),
				"CumulativeSize": len(content),
			})

		default:
			t.Errorf("unexpected node request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newIPFSBackend(t *testing.T) (*IPFSBackend, *fakeIPFSNode) {
	t.Helper()
	fake := &fakeIPFSNode{blocks: make(map[string][]byte)}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	hostPort := strings.TrimPrefix(srv.URL, "http://")
	host, port, found := strings.Cut(hostPort, ":")
	require.True(t, found)

	backend, err := NewIPFSBackend(host, port, "https://gateway.example.com/ipfs/", testLogger())
	require.NoError(t, err)
	return backend, fake
}

func TestIPFSRoundTrip(t *testing.T) {
	backend, _ := newIPFSBackend(t)

	ctx := context.Background()
	content := []byte("node content")

	result, err := backend.Put(ctx, content, nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodIPFSCID, result.Proof.Method)
	assert.True(t, strings.HasPrefix(result.URI, "ipfs://"))
	require.NotEmpty(t, result.AlternativeURIs)
	assert.Equal(t, "https://gateway.example.com/ipfs/"+result.Proof.ContentHash, result.AlternativeURIs[0])

	// Every URI form Put returned must resolve to the same content.
	for _, uri := range append([]string{result.URI, result.Proof.ContentHash}, result.AlternativeURIs...) {
		data, err := backend.Get(ctx, uri)
		require.NoError(t, err, "uri %s", uri)
		assert.Equal(t, content, data)
	}

	exists, err := backend.Exists(ctx, result.URI)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIPFSConformance(t *testing.T) {
	backend, _ := newIPFSBackend(t)
	conformance.RunStorage(t, backend)
}

func TestIPFSGetNotFound(t *testing.T) {
	backend, _ := newIPFSBackend(t)

	_, err := backend.Get(context.Background(), "ipfs://QmMissing")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))
}

func TestIPFSExistsAbsentIsFalse(t *testing.T) {
	backend, _ := newIPFSBackend(t)

	exists, err := backend.Exists(context.Background(), "ipfs://QmMissing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIPFSNodeUnreachable(t *testing.T) {
	backend, err := NewIPFSBackend("127.0.0.1", "1", "", testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = backend.Put(ctx, []byte("content"), nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))

	// Unlike Pinata, a direct node connection failure propagates.
	_, err = backend.Exists(ctx, "ipfs://QmTest")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))
}

func TestIPFSRejectsEmptyContent(t *testing.T) {
	backend, _ := newIPFSBackend(t)

	_, err := backend.Put(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindValidation))
}

func TestIPFSProofFromURI(t *testing.T) {
	backend, _ := newIPFSBackend(t)

	proof, err := backend.GetProof(context.Background(), "ipfs://QmTest123")
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodIPFSCID, proof.Method)
	assert.Equal(t, "QmTest123", proof.ContentHash)
}
