package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
)

// ErrNotFound is returned by GetObject when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo represents metadata for a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage is the key-value surface artifacts are written through.
// Keys are slash separated and never start with a slash.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "memory":
		return NewMemoryStorage(), nil
	case "minio", "s3":
		return NewMinioClient(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.UseSSL,
		})
	case "sevalla":
		return NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// DownloadObject copies one object to destPath, creating parent directories.
func DownloadObject(ctx context.Context, s ObjectStorage, key, destPath string) error {
	data, err := s.GetObject(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(key)), "/")
	if k == "" {
		return "", fmt.Errorf("empty object key")
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return k, nil
}
