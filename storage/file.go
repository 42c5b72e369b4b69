package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// FileBackend stores content on the local file system under
// content-addressed names. It exists for local development and tests;
// the proof is the SHA-256 address, the same method the s3 and vault
// backends use.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file storage backend rooted at baseDir,
// creating it if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "file", "failed to create base directory").WithCause(err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Put writes the content under its SHA-256 hash. Metadata lands in a
// sidecar JSON file next to the content.
func (b *FileBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	contentHash := cryptoutils.ContentSHA256(content)
	filePath := filepath.Join(b.baseDir, contentHash)

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	if len(metadata) > 0 {
		metaJSON, _ := json.Marshal(metadata)
		if err := os.WriteFile(filePath+".meta", metaJSON, 0644); err != nil {
			return nil, interfaces.Classify(err, b.Name())
		}
	}

	b.log.Debug("Stored content in file",
		slog.String("path", filePath),
		slog.Int("size", len(content)))

	return &interfaces.StorageResult{
		URI: "file://" + filePath,
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodSHA256,
			ContentHash: contentHash,
			Timestamp:   time.Now().Unix(),
		},
	}, nil
}

// Get retrieves content by URI. Accepts file:// URIs and bare content
// hashes.
func (b *FileBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}
	filePath := filepath.Join(b.baseDir, contentHash)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found: "+contentHash)
		}
		return nil, interfaces.Classify(err, b.Name())
	}
	return data, nil
}

// Exists stats the content file.
func (b *FileBackend) Exists(ctx context.Context, uri string) (bool, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return false, err
	}

	_, err = os.Stat(filepath.Join(b.baseDir, contentHash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, interfaces.Classify(err, b.Name())
	}
	return true, nil
}

// GetProof derives the proof from the content-addressed name; no file
// access.
func (b *FileBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}

	return &interfaces.StorageProof{
		Method:      interfaces.MethodSHA256,
		ContentHash: contentHash,
		Timestamp:   time.Now().Unix(),
	}, nil
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
