package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
)

// MinIOConfig holds object storage connection settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOBlobStore implements port.BlobStore on an S3 compatible bucket
type MinIOBlobStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinIOBlobStore connects to the endpoint and creates the bucket when missing
func NewMinIOBlobStore(ctx context.Context, cfg MinIOConfig, logger *zap.Logger) (*MinIOBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Created receipt bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinIOBlobStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Save uploads content under the object key
func (s *MinIOBlobStore) Save(ctx context.Context, path string, content []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("Failed to upload receipt",
			zap.String("bucket", s.bucket),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Open streams the object
func (s *MinIOBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, *port.BlobInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, fmt.Errorf("%w: receipt %s", apperr.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	return object, &port.BlobInfo{
		Path:        path,
		Size:        stat.Size,
		ContentType: stat.ContentType,
	}, nil
}

// Exists reports whether the object key is present
func (s *MinIOBlobStore) Exists(ctx context.Context, path string) bool {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	return err == nil
}

// Delete removes the object. Removing a missing key succeeds.
func (s *MinIOBlobStore) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("Failed to delete receipt",
			zap.String("bucket", s.bucket),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.BlobStore = (*MinIOBlobStore)(nil)
