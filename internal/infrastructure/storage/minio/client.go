// Package minio archives scan reports to S3-compatible object storage. One
// bucket holds one report object per scan, replaced wholesale whenever the
// report is regenerated; presigned URLs hand reports to callers without
// proxying bytes through the API server.
package minio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

var (
	// ErrClientClosed is returned by operations after Close.
	ErrClientClosed = errors.New(errors.ErrCodeServiceUnavailable, "object storage client closed")
	// ErrObjectNotFound marks a missing object key.
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds object-storage connection parameters.
type Config struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Region        string        `mapstructure:"region"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

func (c *Config) applyDefaults() {
	if c.Bucket == "" {
		c.Bucket = "landquant-reports"
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.PresignExpiry <= 0 {
		c.PresignExpiry = time.Hour
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// Client wraps the minio SDK with a single-bucket view, a closed guard and
// byte-level Put/Fetch helpers.
type Client struct {
	api    *minio.Client
	cfg    Config
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects to the endpoint, verifies reachability and ensures the
// report bucket exists.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "object storage endpoint must not be empty")
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to build object storage client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to object storage")
	}

	c := &Client{api: api, cfg: cfg, logger: logger}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("connected to object storage",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check report bucket")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to create bucket %s", c.cfg.Bucket)
	}
	c.logger.Info("created report bucket", logging.String("bucket", c.cfg.Bucket))
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Bucket reports the configured report bucket name.
func (c *Client) Bucket() string { return c.cfg.Bucket }

// Put stores data under key, replacing any previous object.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	_, err := c.api.PutObject(ctx, c.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to store object %s", key)
	}
	c.logger.Debug("object stored",
		logging.String("key", key),
		logging.Int("bytes", len(data)))
	return nil
}

// Fetch reads the whole object under key.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	obj, err := c.api.GetObject(ctx, c.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to open object %s", key)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to stat object %s", key)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to read object %s", key)
	}
	return data, nil
}

// List returns the object keys under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}

	var keys []string
	for obj := range c.api.ListObjects(ctx, c.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeServiceUnavailable, "failed to list objects")
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PresignGet returns a time-limited download URL for key. A non-positive
// expiry falls back to the configured default.
func (c *Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if c.isClosed() {
		return "", ErrClientClosed
	}
	if expiry <= 0 {
		expiry = c.cfg.PresignExpiry
	}
	u, err := c.api.PresignedGetObject(ctx, c.cfg.Bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to presign object %s", key)
	}
	return u.String(), nil
}

// HealthCheck verifies the endpoint responds and the report bucket exists.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	exists, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "object storage unreachable")
	}
	if !exists {
		return errors.Newf(errors.ErrCodeServiceUnavailable, "report bucket %s missing", c.cfg.Bucket)
	}
	return nil
}

// Close marks the client closed. The minio SDK holds no persistent
// connections, so there is nothing else to release.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
