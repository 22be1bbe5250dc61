package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/medlemine/ashport/pkg/logger"
)

// MaxImageBytes caps a single uploaded license photo.
const MaxImageBytes = 10 << 20 // 10 MiB

// ErrImageTooLarge is returned for uploads exceeding MaxImageBytes.
var ErrImageTooLarge = errors.New("image exceeds maximum allowed size")

// UploadResult describes a stored image.
type UploadResult struct {
	URL      string
	PublicID string
}

// ImageStore is the narrow contract the application has with the image host:
// upload by opaque id returning a URL, destroy by the same id.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, folder, publicID string) (*UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// Config holds connection options for the MinIO-backed image host.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// MinioImageStore stores images in a public-read MinIO bucket.
type MinioImageStore struct {
	client *minio.Client
	cfg    Config
}

// NewMinioImageStore connects to MinIO, ensures the bucket exists, and marks
// it public-read so returned URLs resolve without signing.
func NewMinioImageStore(ctx context.Context, cfg Config) (*MinioImageStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("image store: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("image store: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("image store: connect: %w", err)
	}

	store := &MinioImageStore{client: client, cfg: cfg}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MinioImageStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("image store: check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("image store: create bucket: %w", err)
		}
	}

	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Action":    []string{"s3:GetObject"},
				"Effect":    "Allow",
				"Principal": map[string]any{"AWS": []string{"*"}},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", s.cfg.Bucket)},
			},
		},
	}

	encoded, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("image store: marshal bucket policy: %w", err)
	}

	if err := s.client.SetBucketPolicy(ctx, s.cfg.Bucket, string(encoded)); err != nil {
		// Some deployments forbid policy changes; uploads still work, URLs may need signing.
		logger.WithModule("storage").Warn("failed to set public bucket policy: " + err.Error())
	}

	return nil
}

// Upload stores the image bytes under folder/publicID and returns its URL.
func (s *MinioImageStore) Upload(ctx context.Context, data []byte, folder, publicID string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, errors.New("image store: empty payload")
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	key := objectKey(folder, publicID)
	contentType := http.DetectContentType(data)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return nil, fmt.Errorf("image store: put object %s: %w", key, err)
	}

	return &UploadResult{URL: s.objectURL(key), PublicID: key}, nil
}

// Destroy removes a previously uploaded image by its public id.
func (s *MinioImageStore) Destroy(ctx context.Context, publicID string) error {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return errors.New("image store: public id is required")
	}

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("image store: remove object %s: %w", publicID, err)
	}
	return nil
}

func (s *MinioImageStore) objectURL(key string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if s.cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, s.cfg.Endpoint)
	}
	return fmt.Sprintf("%s/%s/%s", base, s.cfg.Bucket, key)
}

func objectKey(folder, publicID string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	publicID = strings.Trim(strings.TrimSpace(publicID), "/")
	if folder == "" {
		return publicID
	}
	return path.Join(folder, publicID)
}
