package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/a3tai/mcp-grant-filler/internal/pdf/security"
)

// PresignExpiry is how long export download links stay valid
const PresignExpiry = time.Hour

// ObjectStore holds source and export documents by slash-separated key
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ExportKey is the object key of a grant's filled PDF
func ExportKey(grantID string) string {
	return "exports/" + grantID + "-filled.pdf"
}

// LocalObjectStore keeps objects as files below a root directory
type LocalObjectStore struct {
	paths *security.PathValidator
}

// NewLocalObjectStore creates a store rooted at dir, creating it if needed
func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}
	paths, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, err
	}
	return &LocalObjectStore{paths: paths}, nil
}

func (s *LocalObjectStore) resolve(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	return s.paths.Resolve(key)
}

// Put implements ObjectStore
func (s *LocalObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

// Get implements ObjectStore
func (s *LocalObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// URL implements ObjectStore with a file:// URL; local links do not expire
func (s *LocalObjectStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// S3Config configures an S3 compatible object store
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3ObjectStore keeps objects in an S3 bucket
type S3ObjectStore struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3ObjectStore creates a minio client for cfg. The bucket is created on
// first use if missing.
func NewS3ObjectStore(cfg S3Config) (*S3ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3ObjectStore{client: client, bucket: bucket, region: region}, nil
}

func (s *S3ObjectStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put implements ObjectStore
func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	key = objectKey(key)
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Get implements ObjectStore
func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	key = objectKey(key)
	if key == "" {
		return nil, fmt.Errorf("object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return data, nil
}

// URL implements ObjectStore with a presigned GET link
func (s *S3ObjectStore) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key = objectKey(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if expiry <= 0 {
		expiry = PresignExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func objectKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
