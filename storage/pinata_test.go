package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/conformance"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// fakePinata emulates the pinning API and the gateway together: pinned
// content is served back under /ipfs/CID.
type fakePinata struct {
	pins map[string][]byte
}

func (f *fakePinata) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/pinning/pinFileToIPFS":
			if r.Header.Get("Authorization") != "Bearer test-jwt" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, _, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()

			buf := make([]byte, 1<<20)
			n, _ := file.Read(buf)
			content := buf[:n]

			cid := "Qm" + string(rune('A'+len(f.pins)))
			f.pins[cid] = content
			json.NewEncoder(w).Encode(map[string]any{
				"IpfsHash": cid,
				"PinSize":  n,
			})

		case r.Method == "GET" && r.URL.Path == "/data/pinList":
			cid := r.URL.Query().Get("hashContains")
			count := 0
			if _, ok := f.pins[cid]; ok {
				count = 1
			}
			json.NewEncoder(w).Encode(map[string]any{"count": count})

		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/ipfs/"):
			cid := strings.TrimPrefix(r.URL.Path, "/ipfs/")
			content, ok := f.pins[cid]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(content)

		default:
			t.Errorf("unexpected pinata request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newPinataBackend(t *testing.T, jwt string) (*PinataBackend, *fakePinata) {
	t.Helper()
	fake := &fakePinata{pins: make(map[string][]byte)}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	backend, err := NewPinataBackend(srv.URL, srv.URL+"/ipfs/", jwt, testLogger())
	require.NoError(t, err)
	return backend, fake
}

func TestPinataRoundTrip(t *testing.T) {
	backend, _ := newPinataBackend(t, "test-jwt")

	ctx := context.Background()
	content := []byte("pinned content")

	result, err := backend.Put(ctx, content, map[string]string{"name": "artifact"})
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodIPFSCID, result.Proof.Method)
	assert.True(t, strings.HasPrefix(result.URI, "ipfs://"))
	require.NotEmpty(t, result.AlternativeURIs)

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

func TestPinataConformance(t *testing.T) {
	backend, _ := newPinataBackend(t, "test-jwt")
	conformance.RunStorage(t, backend)
}

func TestPinataAuthenticationError(t *testing.T) {
	backend, _ := newPinataBackend(t, "wrong-jwt")

	_, err := backend.Put(context.Background(), []byte("content"), nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindAuthentication))
}

func TestPinataExistsDegradesToFalse(t *testing.T) {
	backend, err := NewPinataBackend("http://127.0.0.1:1", "http://127.0.0.1:1/ipfs/", "test-jwt", testLogger())
	require.NoError(t, err)

	// Pin list lookups that fail report absence, not an error.
	exists, err := backend.Exists(context.Background(), "ipfs://QmMissing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPinataGetNotFound(t *testing.T) {
	backend, _ := newPinataBackend(t, "test-jwt")

	_, err := backend.Get(context.Background(), "ipfs://QmMissing")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))
}

func TestPinataRequiresJWT(t *testing.T) {
	_, err := NewPinataBackend("", "", "", testLogger())
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConfiguration))
}

func TestPinataProofFromURI(t *testing.T) {
	backend, _ := newPinataBackend(t, "test-jwt")

	proof, err := backend.GetProof(context.Background(), "ipfs://QmTest123")
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodIPFSCID, proof.Method)
	assert.Equal(t, "QmTest123", proof.ContentHash)
}
