package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/verifiable-backends/interfaces"
	"github.com/ruteri/verifiable-backends/serviceresolver"
)

// Factory creates storage backends from location URIs and assembles
// multi-backend configurations for redundant storage.
type Factory struct {
	log      *slog.Logger
	resolver *serviceresolver.Resolver
	tlsAuth  func() (tls.Certificate, error)
}

// NewFactory creates a storage backend factory. The resolver is
// optional; without it, locations requesting SRV resolution fail with
// a configuration error.
func NewFactory(logger *slog.Logger, resolver *serviceresolver.Resolver) *Factory {
	return &Factory{log: logger, resolver: resolver}
}

// WithTLSAuth returns a factory that passes the certificate provider
// to backends supporting TLS client authentication (Vault).
func (f *Factory) WithTLSAuth(provider func() (tls.Certificate, error)) interfaces.StorageBackendFactory {
	return &Factory{log: f.log, resolver: f.resolver, tlsAuth: provider}
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - file://   - Local filesystem storage
//   - ipfs://   - IPFS node storage
//   - pinata:// - Pinata IPFS pinning service
//   - zerog://  - 0G decentralized storage via sidecar bridge
//   - s3://     - Amazon S3 or compatible object storage
//   - vault://  - HashiCorp Vault with TLS client authentication
func (f *Factory) StorageBackendFor(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	switch loc.Scheme {
	case "file":
		return f.createFileBackend(loc)
	case "ipfs":
		return f.createIPFSBackend(loc)
	case "pinata":
		return f.createPinataBackend(loc)
	case "zerog", "0g":
		return f.createZeroGBackend(loc)
	case "s3":
		return f.createS3Backend(loc)
	case "vault":
		return f.createVaultBackend(loc)
	default:
		return nil, fmt.Errorf("unsupported storage backend scheme: %s", loc.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of
// location URIs. Invalid locations are logged and skipped; at least
// one backend must be created.
func (f *Factory) CreateMultiBackend(locationURIs []string) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		loc, err := interfaces.ParseBackendLocation(uri)
		if err != nil {
			f.log.Warn("Invalid storage backend location",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backend, err := f.StorageBackendFor(loc)
		if err != nil {
			f.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}
	return NewMultiStorageBackend(backends, f.log), nil
}

// createFileBackend creates a file system storage backend.
// URI format: file:///var/lib/backends/artifacts/
func (f *Factory) createFileBackend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating file backend", slog.String("uri", loc.Raw))

	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", loc.Raw)
	}
	return NewFileBackend(path, f.log)
}

// createIPFSBackend creates an IPFS node storage backend.
// URI format: ipfs://host:port/?gateway=https://gateway.example.com/ipfs/
func (f *Factory) createIPFSBackend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating IPFS backend", slog.String("uri", loc.Raw))

	host, port, err := f.endpointHostPort(loc, "5001")
	if err != nil {
		return nil, err
	}
	return NewIPFSBackend(host, port, loc.Param("gateway"), f.log)
}

// createPinataBackend creates a Pinata pinning service backend.
// URI format: pinata://?jwt-env=PINATA_JWT&gateway=https://gateway.pinata.cloud/ipfs/
func (f *Factory) createPinataBackend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating Pinata backend", slog.String("uri", loc.Raw))

	jwt, err := f.credentialFor(loc, "jwt-env")
	if err != nil {
		return nil, err
	}

	apiURL := ""
	if loc.Host != "" && loc.Host != "api.pinata.cloud" {
		apiURL = "https://" + loc.Host
		if loc.ParamBool("insecure") {
			apiURL = "http://" + loc.Host
		}
	}
	return NewPinataBackend(apiURL, loc.Param("gateway"), jwt, f.log)
}

// createZeroGBackend creates a 0G storage bridge backend.
// URI format: zerog://host:port
func (f *Factory) createZeroGBackend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating 0G storage backend", slog.String("uri", loc.Raw))

	bridgeURL := ""
	if loc.Host != "" {
		host, err := f.endpointHost(loc)
		if err != nil {
			return nil, err
		}
		bridgeURL = "http://" + host
	}
	return NewZeroGStorageBackend(bridgeURL, f.log), nil
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
func (f *Factory) createS3Backend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating S3 backend", slog.String("uri", loc.Raw))

	bucketName := loc.Host
	prefix := strings.TrimPrefix(loc.Path, "/")

	region := loc.Param("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := loc.Param("endpoint")

	var accessKey, secretKey string
	if loc.User != nil {
		accessKey = loc.User.Username()
		secretKey, _ = loc.User.Password()
		f.log.Debug("Using embedded credentials for write access")
	}

	return NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createVaultBackend creates a Vault storage backend. Requires a TLS
// certificate provider configured through WithTLSAuth.
// URI format: vault://vault.example.com:8200/secret/artifacts
func (f *Factory) createVaultBackend(loc interfaces.BackendLocation) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating Vault backend", slog.String("uri", loc.Raw))

	if f.tlsAuth == nil {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "vault", "TLS certificate provider not configured")
	}
	cert, err := f.tlsAuth()
	if err != nil {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "vault", "failed to obtain TLS certificate").WithCause(err)
	}

	host, err := f.endpointHost(loc)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(strings.Trim(loc.Path, "/"), "/", 2)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid Vault URI, expected vault://host:port/mount/path")
	}

	scheme := "https"
	if loc.ParamBool("insecure") {
		scheme = "http"
	}
	return NewVaultBackend(scheme+"://"+host, parts[0], parts[1], cert, f.log)
}

// credentialFor extracts a credential from the location, preferring
// the environment variable named by envParam over embedded userinfo.
func (f *Factory) credentialFor(loc interfaces.BackendLocation, envParam string) (string, error) {
	if envName := loc.Param(envParam); envName != "" {
		value := os.Getenv(envName)
		if value == "" {
			return "", interfaces.NewError(interfaces.KindConfiguration, loc.Scheme,
				fmt.Sprintf("environment variable %s is not set", envName))
		}
		return value, nil
	}
	if loc.User != nil {
		return loc.User.Username(), nil
	}
	return "", nil
}

// endpointHost returns the host:port to dial, resolving SRV records
// when the location asks for it.
func (f *Factory) endpointHost(loc interfaces.BackendLocation) (string, error) {
	if !loc.ParamBool("srv") {
		return loc.Host, nil
	}
	if f.resolver == nil {
		return "", interfaces.NewError(interfaces.KindConfiguration, loc.Scheme, "SRV resolution requested but no resolver configured")
	}
	endpoint, err := f.resolver.ResolveFirst(loc.Host)
	if err != nil {
		return "", interfaces.NewError(interfaces.KindConnection, loc.Scheme, "SRV resolution failed").WithCause(err)
	}
	return endpoint.Addr(), nil
}

// endpointHostPort splits the resolved endpoint, applying the default
// port when the location names none.
func (f *Factory) endpointHostPort(loc interfaces.BackendLocation, defaultPort string) (string, string, error) {
	host, err := f.endpointHost(loc)
	if err != nil {
		return "", "", err
	}
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx], host[idx+1:], nil
	}
	return host, defaultPort, nil
}
