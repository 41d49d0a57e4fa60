package objects

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"iara/internal/config"
)

// Store is the attachment store seen by the rest of the service.
type Store interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (Object, error)
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MinioStore keeps attachments in one S3-compatible bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
	baseURL   string
}

func NewMinioStore(cfg config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
		Region: cfg.StorageRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	scheme := "http"
	if cfg.StorageUseSSL {
		scheme = "https"
	}
	return &MinioStore{
		client:    client,
		bucket:    cfg.StorageBucket,
		region:    cfg.StorageRegion,
		publicURL: cfg.StoragePublicURL,
		baseURL:   scheme + "://" + cfg.StorageEndpoint + "/" + cfg.StorageBucket,
	}, nil
}

// EnsureBucket creates the attachment bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (Object, error) {
	key := NewKey(filename, time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("put object: %w", err)
	}
	return Object{
		Key:         key,
		URL:         ObjectURL(s.publicURL, s.baseURL, key),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// NewKey builds "{unixMillis}_{random}.{ext}" from the original filename.
func NewKey(filename string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%d_%s.%s", now.UnixMilli(), random, ext)
}

// ObjectURL prefers the configured public base URL and falls back to endpoint/bucket.
func ObjectURL(publicURL, baseURL, key string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		base = strings.TrimRight(baseURL, "/")
	}
	return base + "/" + url.PathEscape(key)
}
