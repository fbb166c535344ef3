package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioConfig connects to any S3 API endpoint: MinIO, AWS S3 or Sevalla.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type MinioClient struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioClient connects and creates the bucket when it does not exist.
func NewMinioClient(ctx context.Context, cfg MinioConfig) (*MinioClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: regionOrDefault(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: regionOrDefault(cfg.Region)}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", cfg.Bucket, err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("created storage bucket")
	}

	return &MinioClient{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (c *MinioClient) objectName(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if c.prefix == "" {
		return k, nil
	}
	return path.Join(c.prefix, k), nil
}

func (c *MinioClient) PutObject(ctx context.Context, key string, data []byte) error {
	name, err := c.objectName(key)
	if err != nil {
		return err
	}
	_, err = c.client.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return fmt.Errorf("minio put %s failed: %w", name, err)
	}
	return nil
}

func (c *MinioClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	name, err := c.objectName(key)
	if err != nil {
		return nil, err
	}
	obj, err := c.client.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.mapError(name, err)
	}
	return data, nil
}

func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full := prefix
	if c.prefix != "" {
		full = c.prefix + "/" + prefix
	}
	results := make([]ObjectInfo, 0)
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("minio list failed: %w", object.Err)
		}
		key := object.Key
		if c.prefix != "" {
			key = strings.TrimPrefix(key, c.prefix+"/")
		}
		results = append(results, ObjectInfo{Key: key, Size: object.Size})
	}
	return results, nil
}

func (c *MinioClient) DeleteObject(ctx context.Context, key string) error {
	name, err := c.objectName(key)
	if err != nil {
		return err
	}
	if err := c.client.RemoveObject(ctx, c.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s failed: %w", name, err)
	}
	return nil
}

func (c *MinioClient) mapError(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return fmt.Errorf("minio get %s failed: %w", name, err)
}

var _ ObjectStorage = (*MinioClient)(nil)

// splitEndpoint strips a URL scheme, which minio.New does not accept, and
// lets the scheme override the SSL flag.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	}
	return strings.TrimSuffix(endpoint, "/"), useSSL
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
