package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chartmuseum/storage"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla through chartmuseum's
// Amazon backend.
type SevallaClient struct {
	backend storage.Backend
}

func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	endpoint := withScheme(cfg.Endpoint, cfg.UseSSL)
	region := regionOrDefault(cfg.Region)

	// the chartmuseum backend only reads credentials from the environment
	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		cfg.Prefix,
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return &SevallaClient{backend: backend}, nil
}

func newSevallaFromBackend(b storage.Backend) *SevallaClient {
	return &SevallaClient{backend: b}
}

func (c *SevallaClient) PutObject(ctx context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := c.backend.PutObject(k, data); err != nil {
		return fmt.Errorf("sevalla put %s failed: %w", k, err)
	}
	return nil
}

func (c *SevallaClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	object, err := c.backend.GetObject(k)
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
		}
		return nil, fmt.Errorf("sevalla get %s failed: %w", k, err)
	}
	return object.Content, nil
}

// ListObjects lists all objects for a given prefix.
func (c *SevallaClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("sevalla list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		key := object.Path
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			key = strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(key, "/")
		}
		results = append(results, ObjectInfo{
			Key:  key,
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

func (c *SevallaClient) DeleteObject(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := c.backend.DeleteObject(k); err != nil && !isMissingObject(err) {
		return fmt.Errorf("sevalla delete %s failed: %w", k, err)
	}
	return nil
}

var _ ObjectStorage = (*SevallaClient)(nil)

func isMissingObject(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "no such file")
}

func withScheme(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(endpoint, "//"))
}

func regionOrDefault(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return "us-east-1"
	}
	return region
}

func awsBool(v bool) *bool {
	return &v
}
