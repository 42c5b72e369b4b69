package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
)

const zeroGStorageDefaultBridge = "http://localhost:8081"

// ZeroGStorageBackend stores content on the 0G decentralized storage
// network through a sidecar bridge. The bridge returns the merkle root
// the network computed over the uploaded chunks, which doubles as the
// content address; the proof method is merkle-proof.
type ZeroGStorageBackend struct {
	client      *http.Client
	bridgeURL   string
	log         *slog.Logger
	locationURI string
}

// NewZeroGStorageBackend creates a 0G storage backend talking to the
// given bridge. An empty bridgeURL selects the local sidecar.
func NewZeroGStorageBackend(bridgeURL string, log *slog.Logger) *ZeroGStorageBackend {
	if bridgeURL == "" {
		bridgeURL = zeroGStorageDefaultBridge
	}
	return &ZeroGStorageBackend{
		client:      &http.Client{Timeout: 120 * time.Second},
		bridgeURL:   bridgeURL,
		log:         log,
		locationURI: "zerog://" + bridgeURL,
	}
}

// Put uploads the content through the bridge and returns the merkle
// root as the address.
func (b *ZeroGStorageBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	payload := map[string]any{
		"content":  base64.StdEncoding.EncodeToString(content),
		"metadata": metadata,
	}
	raw, err := b.call(ctx, http.MethodPost, "/storage/put", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Root   string `json:"root"`
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "malformed bridge response").WithCause(err)
	}
	if parsed.Root == "" {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "bridge returned no merkle root")
	}

	b.log.Debug("Stored content on 0G",
		slog.String("root", parsed.Root),
		slog.Int("size", len(content)),
		slog.Duration("duration", time.Since(start)))

	proofMeta := map[string]any{"network": "0g"}
	if parsed.TxHash != "" {
		proofMeta["tx_hash"] = parsed.TxHash
	}

	return &interfaces.StorageResult{
		URI: "zerog://" + parsed.Root,
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodMerkle,
			ContentHash: parsed.Root,
			Timestamp:   time.Now().Unix(),
			Metadata:    proofMeta,
		},
		Raw:             json.RawMessage(raw),
		AlternativeURIs: []string{"0g://" + parsed.Root},
	}, nil
}

// Get downloads content by merkle root. Accepts zerog://, 0g:// and
// bare-root forms.
func (b *ZeroGStorageBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	root, err := extractRoot(uri)
	if err != nil {
		return nil, err
	}

	raw, err := b.call(ctx, http.MethodGet, "/storage/get/"+root, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "malformed bridge response").WithCause(err)
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Content)
	if err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "bridge returned invalid content encoding").WithCause(err)
	}
	return data, nil
}

// Exists asks the bridge whether the root is present. Bridge failures
// propagate as connection errors.
func (b *ZeroGStorageBackend) Exists(ctx context.Context, uri string) (bool, error) {
	root, err := extractRoot(uri)
	if err != nil {
		return false, err
	}

	raw, err := b.call(ctx, http.MethodGet, "/storage/exists/"+root, nil)
	if err != nil {
		if interfaces.IsKind(err, interfaces.KindNotFound) {
			return false, nil
		}
		return false, err
	}

	var parsed struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, interfaces.NewError(interfaces.KindConnection, b.Name(), "malformed bridge response").WithCause(err)
	}
	return parsed.Exists, nil
}

// GetProof fetches the merkle proof for the root from the bridge.
func (b *ZeroGStorageBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	root, err := extractRoot(uri)
	if err != nil {
		return nil, err
	}

	raw, err := b.call(ctx, http.MethodGet, "/storage/proof/"+root, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Root     string         `json:"root"`
		Proof    map[string]any `json:"proof"`
		Verifier string         `json:"verifier_url"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "malformed bridge response").WithCause(err)
	}

	return &interfaces.StorageProof{
		Method:      interfaces.MethodMerkle,
		ContentHash: root,
		Metadata:    parsed.Proof,
		Timestamp:   time.Now().Unix(),
		VerifierURL: parsed.Verifier,
	}, nil
}

// Name returns a unique identifier for this storage backend.
func (b *ZeroGStorageBackend) Name() string { return "zerog-storage" }

// LocationURI returns the URI that identifies this storage backend.
func (b *ZeroGStorageBackend) LocationURI() string { return b.locationURI }

func (b *ZeroGStorageBackend) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "payload is not serializable").WithCause(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.bridgeURL+path, body)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found").
			WithDetails(map[string]any{"path": path})
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(),
			fmt.Sprintf("unexpected bridge status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status_code": resp.StatusCode, "body": string(raw)})
	}
	return raw, nil
}
