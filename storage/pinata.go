package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/verifiable-backends/interfaces"
)

const (
	pinataDefaultAPIURL  = "https://api.pinata.cloud"
	pinataDefaultGateway = "https://gateway.pinata.cloud/ipfs/"
)

// PinataBackend pins content to IPFS through the Pinata pinning
// service. Content addressing works exactly as with a direct node; the
// difference is operational, Pinata keeps the content pinned without
// running infrastructure.
//
// Exists degrades to false on pin-list lookup failures instead of
// propagating them: the pin list is an index maintained by a third
// party and a lookup failure does not mean the content is gone from
// the network.
type PinataBackend struct {
	client      *http.Client
	apiURL      string
	gatewayURL  string
	jwt         string
	log         *slog.Logger
	locationURI string
}

// NewPinataBackend creates a Pinata storage backend authenticated with
// a JWT.
func NewPinataBackend(apiURL, gatewayURL, jwt string, log *slog.Logger) (*PinataBackend, error) {
	if jwt == "" {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "pinata", "JWT is required")
	}
	if apiURL == "" {
		apiURL = pinataDefaultAPIURL
	}
	if gatewayURL == "" {
		gatewayURL = pinataDefaultGateway
	}
	if !strings.HasSuffix(gatewayURL, "/") {
		gatewayURL += "/"
	}

	return &PinataBackend{
		client:      &http.Client{Timeout: 60 * time.Second},
		apiURL:      apiURL,
		gatewayURL:  gatewayURL,
		jwt:         jwt,
		log:         log,
		locationURI: "pinata://" + strings.TrimPrefix(strings.TrimPrefix(apiURL, "https://"), "http://"),
	}, nil
}

// Put pins the content and returns its CID. Metadata keys become
// Pinata keyvalues on the pin.
func (b *PinataBackend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "content")
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	if _, err := part.Write(content); err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	pinataMeta := map[string]any{"name": "content"}
	if name, ok := metadata["name"]; ok {
		pinataMeta["name"] = name
	}
	if len(metadata) > 0 {
		keyvalues := make(map[string]string, len(metadata))
		for k, v := range metadata {
			if k != "name" {
				keyvalues[k] = v
			}
		}
		if len(keyvalues) > 0 {
			pinataMeta["keyvalues"] = keyvalues
		}
	}
	metaJSON, _ := json.Marshal(pinataMeta)
	if err := writer.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	if err := writer.Close(); err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	req.Header.Set("Authorization", "Bearer "+b.jwt)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	raw, err := b.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		IpfsHash  string `json:"IpfsHash"`
		PinSize   int64  `json:"PinSize"`
		Timestamp string `json:"Timestamp"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "malformed pin response").WithCause(err)
	}
	if parsed.IpfsHash == "" {
		return nil, interfaces.NewError(interfaces.KindConnection, b.Name(), "pin response missing CID")
	}

	b.log.Debug("Pinned content via Pinata",
		slog.String("cid", parsed.IpfsHash),
		slog.Int64("pinSize", parsed.PinSize),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageResult{
		URI: "ipfs://" + parsed.IpfsHash,
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodIPFSCID,
			ContentHash: parsed.IpfsHash,
			Timestamp:   time.Now().Unix(),
			Metadata:    map[string]any{"pin_size": parsed.PinSize, "service": "pinata"},
		},
		Raw:             json.RawMessage(raw),
		AlternativeURIs: []string{b.gatewayURL + parsed.IpfsHash},
	}, nil
}

// Get fetches the content through the gateway.
func (b *PinataBackend) Get(ctx context.Context, uri string) ([]byte, error) {
	cid, err := extractCID(uri)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.gatewayURL+cid, nil)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found: "+cid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, b.statusError(resp)
	}

	return io.ReadAll(resp.Body)
}

// Exists checks the pin list. Lookup failures degrade to false.
func (b *PinataBackend) Exists(ctx context.Context, uri string) (bool, error) {
	cid, err := extractCID(uri)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.apiURL+"/data/pinList?status=pinned&hashContains="+cid, nil)
	if err != nil {
		return false, nil
	}
	req.Header.Set("Authorization", "Bearer "+b.jwt)

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("Pin list lookup failed", "err", err, slog.String("cid", cid))
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("Pin list lookup failed", slog.Int("status", resp.StatusCode), slog.String("cid", cid))
		return false, nil
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, nil
	}
	return parsed.Count > 0, nil
}

// GetProof derives the proof from the CID alone; no network call.
func (b *PinataBackend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
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
func (b *PinataBackend) Name() string { return "pinata" }

// LocationURI returns the URI that identifies this storage backend.
func (b *PinataBackend) LocationURI() string { return b.locationURI }

func (b *PinataBackend) do(req *http.Request) ([]byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, b.statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (b *PinataBackend) statusError(resp *http.Response) *interfaces.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	details := map[string]any{"status_code": resp.StatusCode, "body": string(body)}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return interfaces.NewError(interfaces.KindAuthentication, b.Name(), "credentials rejected").WithDetails(details)
	case http.StatusTooManyRequests:
		return interfaces.NewError(interfaces.KindRateLimit, b.Name(), "service throttled request").WithDetails(details)
	case http.StatusBadRequest:
		return interfaces.NewError(interfaces.KindValidation, b.Name(), "service rejected request").WithDetails(details)
	default:
		return interfaces.NewError(interfaces.KindConnection, b.Name(),
			fmt.Sprintf("unexpected service status %d", resp.StatusCode)).WithDetails(details)
	}
}
