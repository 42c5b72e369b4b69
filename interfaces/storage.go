package interfaces

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
)

// StorageBackend is the four-operation contract any verifiable storage
// provider must implement. As with ComputeBackend, timeouts come from
// context deadlines and are always classified KindTimeout.
type StorageBackend interface {
	// Put stores content, builds a StorageProof from the provider's
	// response, and returns the canonical URI plus any alternative
	// access URIs. Fails with KindTimeout, KindConnection or
	// KindValidation as appropriate.
	Put(ctx context.Context, content []byte, metadata map[string]string) (*StorageResult, error)

	// Get retrieves content by URI. Accepts any URI form previously
	// returned by Put on the same backend, including scheme-prefixed,
	// gateway and bare-identifier forms. Fails with KindNotFound if
	// absent.
	Get(ctx context.Context, uri string) ([]byte, error)

	// Exists checks for content. Absence is a normal false result,
	// never a KindNotFound error. Whether connection-level failures
	// degrade to false or propagate as KindConnection is a documented
	// per-adapter choice.
	Exists(ctx context.Context, uri string) (bool, error)

	// GetProof returns the storage proof without downloading the
	// content. For content-addressed backends the proof derives from
	// the URI itself at zero cost.
	GetProof(ctx context.Context, uri string) (*StorageProof, error)

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend instance.
	LocationURI() string
}

// BackendLocation is a parsed backend location URI of the form
// [scheme]://[auth@]host[:port][/path][?params]. It selects and
// configures a concrete adapter; it is not a content URI.
type BackendLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	User   *url.Userinfo
}

// ParseBackendLocation parses and validates a backend location URI.
func ParseBackendLocation(uri string) (BackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return BackendLocation{}, fmt.Errorf("invalid location URI %q: %w", uri, err)
	}
	if parsed.Scheme == "" {
		return BackendLocation{}, fmt.Errorf("location URI %q has no scheme", uri)
	}

	return BackendLocation{
		Raw:    uri,
		Scheme: strings.ToLower(parsed.Scheme),
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI.
func (loc BackendLocation) String() string {
	return loc.Raw
}

// Param returns a query parameter value.
func (loc BackendLocation) Param(name string) string {
	return loc.Query.Get(name)
}

// ParamBool returns a boolean query parameter value.
func (loc BackendLocation) ParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// ComputeBackendFactory creates compute backends from location URIs.
type ComputeBackendFactory interface {
	ComputeBackendFor(loc BackendLocation) (ComputeBackend, error)
}

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory interface {
	StorageBackendFor(loc BackendLocation) (StorageBackend, error)

	// WithTLSAuth configures TLS client authentication for backends
	// that support it (Vault).
	WithTLSAuth(func() (tls.Certificate, error)) StorageBackendFactory
}
