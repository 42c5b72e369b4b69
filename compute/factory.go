package compute

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
	"github.com/ruteri/verifiable-backends/serviceresolver"
)

// Factory creates compute backends from location URIs.
type Factory struct {
	log      *slog.Logger
	resolver *serviceresolver.Resolver
}

// NewFactory creates a compute backend factory. The resolver is
// optional; without it, locations requesting SRV resolution fail with
// a configuration error.
func NewFactory(logger *slog.Logger, resolver *serviceresolver.Resolver) *Factory {
	return &Factory{log: logger, resolver: resolver}
}

// ComputeBackendFor creates a compute backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - eigenai:// - EigenAI TEE inference API
//   - zerog://   - 0G decentralized inference via sidecar bridge
//
// Credentials come from the api-key-env query parameter (naming an
// environment variable) or, less securely, from the URI userinfo.
// With srv=true the host is treated as a service domain and resolved
// through DNS SRV records.
func (f *Factory) ComputeBackendFor(loc interfaces.BackendLocation) (interfaces.ComputeBackend, error) {
	switch loc.Scheme {
	case "eigenai":
		return f.createEigenAIBackend(loc)
	case "zerog":
		return f.createZeroGBackend(loc)
	default:
		return nil, fmt.Errorf("unsupported compute backend scheme: %s", loc.Scheme)
	}
}

// createEigenAIBackend creates an EigenAI backend.
// URI format: eigenai://host[:port]?api-key-env=EIGENAI_API_KEY&model=gpt-oss-120b-f16&timeout=120s
// An empty host selects the public EigenAI endpoint.
func (f *Factory) createEigenAIBackend(loc interfaces.BackendLocation) (interfaces.ComputeBackend, error) {
	f.log.Debug("Creating EigenAI backend", slog.String("uri", loc.Raw))

	apiKey, err := f.credentialFor(loc)
	if err != nil {
		return nil, err
	}

	apiURL := ""
	if loc.Host != "" {
		host, err := f.endpointHost(loc)
		if err != nil {
			return nil, err
		}
		scheme := "https"
		if loc.ParamBool("insecure") {
			scheme = "http"
		}
		apiURL = scheme + "://" + host
	}

	return NewEigenAIBackend(EigenAIConfig{
		APIURL:  apiURL,
		APIKey:  apiKey,
		Model:   loc.Param("model"),
		Timeout: parseTimeout(loc.Param("timeout")),
		JobTTL:  parseTimeout(loc.Param("job-ttl")),
	}, f.log)
}

// createZeroGBackend creates a 0G bridge backend.
// URI format: zerog://host:port?timeout=60s
// An empty host selects the local sidecar.
func (f *Factory) createZeroGBackend(loc interfaces.BackendLocation) (interfaces.ComputeBackend, error) {
	f.log.Debug("Creating 0G compute backend", slog.String("uri", loc.Raw))

	bridgeURL := ""
	if loc.Host != "" {
		host, err := f.endpointHost(loc)
		if err != nil {
			return nil, err
		}
		bridgeURL = "http://" + host
	}

	return NewZeroGComputeBackend(ZeroGComputeConfig{
		BridgeURL: bridgeURL,
		Timeout:   parseTimeout(loc.Param("timeout")),
	}, f.log), nil
}

// credentialFor extracts the API key from the location, preferring the
// environment variable named by api-key-env over embedded userinfo.
func (f *Factory) credentialFor(loc interfaces.BackendLocation) (string, error) {
	if envName := loc.Param("api-key-env"); envName != "" {
		key := os.Getenv(envName)
		if key == "" {
			return "", interfaces.NewError(interfaces.KindConfiguration, loc.Scheme,
				fmt.Sprintf("environment variable %s is not set", envName))
		}
		return key, nil
	}
	if loc.User != nil {
		f.log.Debug("Using embedded credentials", slog.String("scheme", loc.Scheme))
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
	f.log.Debug("Resolved service endpoint",
		slog.String("domain", loc.Host),
		slog.String("endpoint", endpoint.Addr()))
	return endpoint.Addr(), nil
}

func parseTimeout(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
