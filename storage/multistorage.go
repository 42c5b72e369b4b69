package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// MultiStorageBackend fans Put out to every configured backend and
// answers reads from the first backend that has the content. The
// canonical URI comes from the first backend that stored successfully;
// the other backends' URIs become alternatives.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a redundant multi-backend.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Put stores content to all backends. It succeeds if at least one
// backend stored the content.
func (m *MultiStorageBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()
	var first *interfaces.StorageResult
	var errs []error

	for _, backend := range m.backends {
		result, err := backend.Put(ctx, content, metadata)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		if first == nil {
			first = result
			m.log.Info("Successfully stored content",
				slog.String("backend_name", backend.Name()),
				slog.String("uri", result.URI),
				slog.Duration("duration", time.Since(start)))
		} else {
			first.AlternativeURIs = append(first.AlternativeURIs, result.URI)
			first.AlternativeURIs = append(first.AlternativeURIs, result.AlternativeURIs...)
		}
	}

	if first == nil {
		m.log.Error("All backends failed to store content",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return nil, interfaces.NewError(interfaces.KindConnection, m.Name(),
			fmt.Sprintf("all backends failed to store content: %v", errs))
	}
	return first, nil
}

// Get returns the content from the first backend that has it.
func (m *MultiStorageBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		data, err := backend.Get(ctx, uri)
		if err == nil {
			m.log.Debug("Successfully fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("uri", uri),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	// If every backend reported not-found, so do we; otherwise surface
	// the aggregate as a connection failure.
	allNotFound := len(errs) > 0
	for _, err := range errs {
		if !interfaces.IsKind(err, interfaces.KindNotFound) && !interfaces.IsKind(err, interfaces.KindValidation) {
			allNotFound = false
			break
		}
	}
	if allNotFound {
		return nil, interfaces.NewError(interfaces.KindNotFound, m.Name(), "content not found: "+uri)
	}
	return nil, interfaces.NewError(interfaces.KindConnection, m.Name(),
		fmt.Sprintf("all backends failed to fetch %s: %v", uri, errs))
}

// Exists reports true if any backend has the content. Individual
// backend failures are logged and skipped.
func (m *MultiStorageBackend) Exists(ctx context.Context, uri string) (bool, error) {
	for _, backend := range m.backends {
		exists, err := backend.Exists(ctx, uri)
		if err != nil {
			m.log.Debug("Exists check failed on backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// GetProof returns the proof from the first backend that can produce
// one.
func (m *MultiStorageBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	var errs []error
	for _, backend := range m.backends {
		proof, err := backend.GetProof(ctx, uri)
		if err == nil {
			return proof, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}
	return nil, interfaces.NewError(interfaces.KindConnection, m.Name(),
		fmt.Sprintf("all backends failed to produce a proof for %s: %v", uri, errs))
}

// Name returns the name of this backend.
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns a combined URI naming all member backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
