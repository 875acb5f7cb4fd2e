// Package objectstore stores task document blobs in an S3 compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"dashchat/internal/constants"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by Noop.
var ErrNotConfigured = errors.New("object storage is not configured")

// Uploader stores binary content under a key and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (location string, err error)
	Remove(ctx context.Context, key string) error
}

// Client wraps a MinIO/S3 client.
type Client struct {
	bucket         string
	publicBaseURL  string
	client         *minio.Client
	logger         *logrus.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// New configures an uploader from the storage section of the config.
func New(cfg models.StorageConfig, logger *logrus.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, apperrors.NewConfigError("storage.endpoint", "endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, apperrors.NewConfigError("storage.bucket", "bucket is required")
	}

	minioClient, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("create client", err)
	}

	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		base = endpoint
	}

	return &Client{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        minioClient,
		logger:        logger,
	}, nil
}

// Upload stores the content and returns the object URL. size may be -1 when unknown.
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if reader == nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "object key is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = constants.DefaultMimeType
	}

	info, err := c.client.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.NewStorageError("put object", err)
	}

	location := c.objectURL(key)
	c.logger.WithFields(logrus.Fields{
		"bucket":     c.bucket,
		"object_key": key,
		"size_bytes": info.Size,
	}).Info("Object upload completed")
	return location, nil
}

// Remove deletes the object stored under key.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, strings.Trim(key, "/"), minio.RemoveObjectOptions{}); err != nil {
		return apperrors.NewStorageError("remove object", err)
	}
	return nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketInitOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketInitErr = apperrors.NewStorageError("check bucket", err)
			return
		}
		if exists {
			return
		}
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			c.bucketInitErr = apperrors.NewStorageError("create bucket", err)
			return
		}
		c.logger.WithField("bucket", c.bucket).Info("Created document bucket")
	})
	return c.bucketInitErr
}

func (c *Client) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, strings.TrimLeft(key, "/"))
}

// hostOf accepts either "host:port" or a URL and returns the host part minio expects.
func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

// Noop fails every upload. It is used when storage is not configured so
// document routes answer with a clear error.
type Noop struct{}

func (Noop) Upload(_ context.Context, _ string, _ io.Reader, _ int64, _ string) (string, error) {
	return "", apperrors.NewStorageError("upload", ErrNotConfigured)
}

func (Noop) Remove(_ context.Context, _ string) error {
	return nil
}

var _ Uploader = (*Client)(nil)
var _ Uploader = Noop{}
