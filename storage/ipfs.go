package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/verifiable-backends/interfaces"
)

// IPFSBackend stores content on an IPFS node through its HTTP API.
// The CID returned by the node is both the address and the proof:
// anyone can re-hash the content and compare.
//
// Exists propagates node-level failures as connection errors rather
// than degrading to false, because a direct node connection is
// expected to be reliable.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	gatewayURL  string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS storage backend connected to the node
// at host:port. The gateway URL, when set, is included in results as
// an alternative access URI.
func NewIPFSBackend(host, port, gatewayURL string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	if gatewayURL == "" {
		gatewayURL = "https://gateway.pinata.cloud/ipfs/"
	}
	if !strings.HasSuffix(gatewayURL, "/") {
		gatewayURL += "/"
	}

	return &IPFSBackend{
		shell:       shell.NewShell(apiURL),
		host:        host,
		port:        port,
		gatewayURL:  gatewayURL,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/", apiURL),
	}, nil
}

// Put adds the content to the node and pins it. Metadata is not
// persisted; IPFS addresses content only.
func (b *IPFSBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "IPFS node unavailable")
	}

	cid, err := b.shell.Add(bytes.NewReader(content), shell.Pin(true))
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(content)),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageResult{
		URI: "ipfs://" + cid,
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodIPFSCID,
			ContentHash: cid,
			Timestamp:   time.Now().Unix(),
			Metadata:    map[string]any{"node": b.host + ":" + b.port},
		},
		AlternativeURIs: []string{b.gatewayURL + cid},
	}, nil
}

// Get retrieves content by CID. Accepts ipfs:// URIs, gateway URLs
// and bare CIDs.
func (b *IPFSBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	start := time.Now()

	cid, err := extractCID(uri)
	if err != nil {
		return nil, err
	}

	if !b.shell.IsUp() {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "IPFS node unavailable")
	}

	reader, err := b.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "not found") {
			return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found: "+cid)
		}
		return nil, interfaces.Classify(err, b.Name())
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Exists checks whether the node can stat the CID. Node failures
// propagate as connection errors.
func (b *IPFSBackend) Exists(ctx context.Context, uri string) (bool, error) {
	cid, err := extractCID(uri)
	if err != nil {
		return false, err
	}

	if !b.shell.IsUp() {
		return false, interfaces.NewError(interfaces.KindConnection, b.Name(), "IPFS node unavailable")
	}

	if _, err := b.shell.ObjectStat(cid); err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no link named") {
			return false, nil
		}
		return false, interfaces.Classify(err, b.Name())
	}
	return true, nil
}

// GetProof derives the proof from the CID alone; no network call.
func (b *IPFSBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	cid, err := extractCID(uri)
	if err != nil {
		return nil, err
	}

	return &interfaces.StorageProof{
		Method:      interfaces.MethodIPFSCID,
		ContentHash: cid,
		Timestamp:   time.Now().Unix(),
	}, nil
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
