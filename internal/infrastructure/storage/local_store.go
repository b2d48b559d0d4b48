package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
)

// LocalBlobStore implements port.BlobStore on the local filesystem
type LocalBlobStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalBlobStore creates a store rooted at baseDir
func NewLocalBlobStore(baseDir string, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to the relative path, creating parent directories
func (s *LocalBlobStore) Save(ctx context.Context, path string, content []byte, contentType string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Receipt saved",
		zap.String("path", path),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))
	return nil
}

// Open returns a reader for the blob. The content type is sniffed from the stored bytes.
func (s *LocalBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, *port.BlobInfo, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, nil, err
	}

	stat, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: receipt %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	mtype, err := mimetype.DetectFile(fullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect content type: %w", err)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		s.logger.Error("Failed to open file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, &port.BlobInfo{
		Path:        path,
		Size:        stat.Size(),
		ContentType: mtype.String(),
	}, nil
}

// Exists checks if a blob exists at the relative path
func (s *LocalBlobStore) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Delete removes the blob. Deleting a missing blob succeeds.
func (s *LocalBlobStore) Delete(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve maps a slash separated key onto baseDir and rejects keys that escape it
func (s *LocalBlobStore) resolve(path string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(path))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes base directory: %s", apperr.ErrValidation, path)
	}
	return absPath, nil
}

// Verify interface compliance
var _ port.BlobStore = (*LocalBlobStore)(nil)
