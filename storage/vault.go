package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// VaultBackend stores content in HashiCorp Vault under
// content-addressed KV v2 paths. It authenticates with a TLS client
// certificate, so sensitive artifacts (model inputs, proofs under
// embargo) stay behind Vault's access control while the SHA-256
// address still commits to the content.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault storage backend with TLS client
// certificate authentication.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: Vault KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "artifacts")
//   - clientCert: TLS certificate for authentication
func NewVaultBackend(address, mountPath, dataPath string, clientCert tls.Certificate, log *slog.Logger) (*VaultBackend, error) {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
	}

	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "vault", "failed to create Vault client").WithCause(err)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(address, "https://"), mountPath, dataPath),
	}, nil
}

// Put stores the content under its SHA-256 hash. Metadata is stored
// alongside the content in the same KV entry.
func (b *VaultBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	contentHash := cryptoutils.ContentSHA256(content)
	path := b.kvPath(contentHash)

	secretData := map[string]any{
		"data": map[string]any{
			"content":  string(content),
			"metadata": metadata,
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return nil, classifyVaultError(err, b.Name())
	}

	b.log.Debug("Stored content in Vault",
		slog.String("path", path),
		slog.Int("size", len(content)),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageResult{
		URI: fmt.Sprintf("vault://%s/%s/%s", b.mountPath, b.dataPath, contentHash),
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodSHA256,
			ContentHash: contentHash,
			Timestamp:   time.Now().Unix(),
			Metadata:    map[string]any{"mount": b.mountPath, "path": b.dataPath},
		},
	}, nil
}

// Get retrieves content by URI. Accepts vault:// URIs and bare content
// hashes.
func (b *VaultBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}
	path := b.kvPath(contentHash)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, classifyVaultError(err, b.Name())
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found: "+contentHash)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "content key not found in Vault data")
	}

	return []byte(content), nil
}

// Exists reads the entry's metadata. Vault failures propagate as
// classified errors.
func (b *VaultBackend) Exists(ctx context.Context, uri string) (bool, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return false, err
	}

	secret, err := b.client.Logical().ReadWithContext(ctx, b.kvPath(contentHash))
	if err != nil {
		return false, classifyVaultError(err, b.Name())
	}
	return secret != nil && secret.Data != nil, nil
}

// GetProof derives the proof from the content-addressed path; no
// network call.
func (b *VaultBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}

	return &interfaces.StorageProof{
		Method:      interfaces.MethodSHA256,
		ContentHash: contentHash,
		Timestamp:   time.Now().Unix(),
		Metadata:    map[string]any{"mount": b.mountPath},
	}, nil
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// kvPath builds the KV v2 data path for a content hash.
func (b *VaultBackend) kvPath(contentHash string) string {
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, contentHash)
}

func classifyVaultError(err error, adapter string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "403"):
		return interfaces.NewError(interfaces.KindAuthentication, adapter, "permission denied").WithCause(err)
	case strings.Contains(msg, "429"):
		return interfaces.NewError(interfaces.KindRateLimit, adapter, "service throttled request").WithCause(err)
	default:
		return interfaces.Classify(err, adapter)
	}
}
