// Package miniostore implements the artifact store over a MinIO or
// S3-compatible object storage endpoint.
package miniostore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/goliatone/go-exports/core"
)

// Config carries the object storage connection settings.
type Config struct {
	Endpoint  string `json:"endpoint" koanf:"endpoint"`
	AccessKey string `json:"access_key" koanf:"access_key"`
	SecretKey string `json:"secret_key" koanf:"secret_key"`
	Bucket    string `json:"bucket" koanf:"bucket"`
	UseSSL    bool   `json:"use_ssl" koanf:"use_ssl"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("miniostore: endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("miniostore: bucket is required")
	}
	return nil
}

// Store uploads export artifacts and issues presigned download URLs.
type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("miniostore: connect: %w", err)
	}
	return NewWithClient(client, cfg.Bucket)
}

func NewWithClient(client *minio.Client, bucket string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("miniostore: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("miniostore: bucket is required")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("miniostore: store is not configured")
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("miniostore: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("miniostore: make bucket: %w", err)
	}
	return nil
}

// Upload stores the local file under objectKey and returns the permanent
// object URL.
func (s *Store) Upload(ctx context.Context, localPath string, objectKey string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("miniostore: store is not configured")
	}
	objectKey = normalizeObjectKey(objectKey)
	if objectKey == "" {
		return "", fmt.Errorf("miniostore: object key is required")
	}
	contentType := "application/octet-stream"
	if strings.HasSuffix(objectKey, ".zip") {
		contentType = "application/zip"
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("miniostore: put object %s: %w", objectKey, err)
	}
	return s.permanentURL(objectKey), nil
}

func (s *Store) SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("miniostore: store is not configured")
	}
	objectKey = normalizeObjectKey(objectKey)
	if objectKey == "" {
		return "", fmt.Errorf("miniostore: object key is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("miniostore: presign %s: %w", objectKey, err)
	}
	return signed.String(), nil
}

func (s *Store) Delete(ctx context.Context, objectKey string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("miniostore: store is not configured")
	}
	objectKey = normalizeObjectKey(objectKey)
	exists, err := s.Exists(ctx, objectKey)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("miniostore: remove object %s: %w", objectKey, err)
	}
	return true, nil
}

func (s *Store) Exists(ctx context.Context, objectKey string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("miniostore: store is not configured")
	}
	objectKey = normalizeObjectKey(objectKey)
	_, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var response minio.ErrorResponse
	if errors.As(err, &response) && response.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("miniostore: stat object %s: %w", objectKey, err)
}

// RelativeObjectPath strips the endpoint and bucket prefix from a permanent
// URL, recovering the object key that signed URLs are issued against.
func (s *Store) RelativeObjectPath(uploadURL string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("miniostore: store is not configured")
	}
	parsed, err := url.Parse(strings.TrimSpace(uploadURL))
	if err != nil {
		return "", fmt.Errorf("miniostore: parse upload url: %w", err)
	}
	path := strings.TrimPrefix(parsed.Path, "/")
	path = strings.TrimPrefix(path, s.bucket+"/")
	if path == "" {
		return "", fmt.Errorf("miniostore: upload url %q has no object path", uploadURL)
	}
	return path, nil
}

func (s *Store) permanentURL(objectKey string) string {
	endpoint := s.client.EndpointURL()
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(endpoint.String(), "/"), s.bucket, objectKey)
}

func normalizeObjectKey(objectKey string) string {
	return strings.TrimPrefix(strings.TrimSpace(objectKey), "/")
}

var _ core.ArtifactStore = (*Store)(nil)
