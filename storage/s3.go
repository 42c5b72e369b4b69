package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
)

// S3Backend stores content in Amazon S3 or a compatible service under
// content-addressed keys. The object key is the SHA-256 hash of the
// content, so the URI itself commits to what it names and the proof
// derives from it at zero cost.
type S3Backend struct {
	client         *s3.S3
	writeClient    *s3.S3
	bucketName     string
	prefix         string
	log            *slog.Logger
	locationURI    string
	hasWriteAccess bool
}

// NewS3Backend creates an S3 storage backend. With accessKey and
// secretKey the backend has write access; without them it is read-only
// against publicly accessible objects.
func NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Backend, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	baseCfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		baseCfg.Endpoint = aws.String(endpoint)
		baseCfg.S3ForcePathStyle = aws.Bool(true)
	}

	baseSess, err := session.NewSession(&baseCfg)
	if err != nil {
		return nil, interfaces.NewError(interfaces.KindConfiguration, "s3", "failed to create AWS session").WithCause(err)
	}
	readClient := s3.New(baseSess)

	hasWriteAccess := accessKey != "" && secretKey != ""
	writeClient := readClient
	if hasWriteAccess {
		writeCfg := baseCfg.Copy()
		writeCfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")

		writeSess, err := session.NewSession(writeCfg)
		if err != nil {
			return nil, interfaces.NewError(interfaces.KindConfiguration, "s3", "failed to create AWS write session").WithCause(err)
		}
		writeClient = s3.New(writeSess)
	} else {
		log.Warn("No S3 credentials provided, write operations may fail unless bucket is public writable")
	}

	return &S3Backend{
		client:         readClient,
		writeClient:    writeClient,
		bucketName:     bucketName,
		prefix:         strings.TrimSuffix(prefix, "/"),
		log:            log,
		locationURI:    uri,
		hasWriteAccess: hasWriteAccess,
	}, nil
}

// Put uploads the content under its SHA-256 hash. Metadata becomes S3
// object metadata.
func (b *S3Backend) Put(ctx context.Context, content []byte, metadata map[string]string) (*interfaces.StorageResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, interfaces.NewError(interfaces.KindValidation, b.Name(), "content is empty")
	}

	contentHash := cryptoutils.ContentSHA256(content)
	key := b.objectKey(contentHash)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	}
	if len(metadata) > 0 {
		input.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			input.Metadata[k] = aws.String(v)
		}
	}

	if _, err := b.writeClient.PutObjectWithContext(ctx, input); err != nil {
		if !b.hasWriteAccess {
			return nil, interfaces.NewError(interfaces.KindAuthentication, b.Name(),
				"upload failed, no write credentials provided").WithCause(err)
		}
		return nil, classifyS3Error(err, b.Name())
	}

	b.log.Debug("Stored content in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("size", len(content)),
		slog.Duration("duration", time.Since(start)))

	return &interfaces.StorageResult{
		URI: fmt.Sprintf("s3://%s/%s", b.bucketName, key),
		Proof: interfaces.StorageProof{
			Method:      interfaces.MethodSHA256,
			ContentHash: contentHash,
			Timestamp:   time.Now().Unix(),
			Metadata:    map[string]any{"bucket": b.bucketName, "key": key},
		},
	}, nil
}

// Get retrieves content by URI. Accepts s3://bucket/key URIs and bare
// content hashes.
func (b *S3Backend) Get(ctx context.Context, uri string) ([]byte, error) {
	start := time.Now()

	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}
	key := b.objectKey(contentHash)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, interfaces.NewError(interfaces.KindNotFound, b.Name(), "content not found: "+contentHash)
		}
		return nil, classifyS3Error(err, b.Name())
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, interfaces.Classify(err, b.Name())
	}

	b.log.Debug("Fetched content from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Exists heads the object. Service failures propagate as connection
// errors.
func (b *S3Backend) Exists(ctx context.Context, uri string) (bool, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return false, err
	}

	_, err = b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.objectKey(contentHash)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, classifyS3Error(err, b.Name())
	}
	return true, nil
}

// GetProof derives the proof from the content-addressed key; no
// network call.
func (b *S3Backend) GetProof(ctx context.Context, uri string) (*interfaces.StorageProof, error) {
	contentHash, err := extractContentHash(uri, b.Name())
	if err != nil {
		return nil, err
	}

	return &interfaces.StorageProof{
		Method:      interfaces.MethodSHA256,
		ContentHash: contentHash,
		Timestamp:   time.Now().Unix(),
		Metadata:    map[string]any{"bucket": b.bucketName},
	}, nil
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) objectKey(contentHash string) string {
	if b.prefix == "" {
		return contentHash
	}
	return path.Join(b.prefix, contentHash)
}

func isS3NotFound(err error) bool {
	return strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "404")
}

func classifyS3Error(err error, adapter string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "InvalidAccessKeyId") || strings.Contains(msg, "SignatureDoesNotMatch"):
		return interfaces.NewError(interfaces.KindAuthentication, adapter, "access denied").WithCause(err)
	case strings.Contains(msg, "SlowDown") || strings.Contains(msg, "TooManyRequests"):
		return interfaces.NewError(interfaces.KindRateLimit, adapter, "service throttled request").WithCause(err)
	default:
		return interfaces.Classify(err, adapter)
	}
}
