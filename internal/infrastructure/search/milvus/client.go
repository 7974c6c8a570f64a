// Package milvus backs the land-quantum similarity index with a Milvus
// vector store. Feature records are embedded into fixed-dimension float
// vectors by feature hashing their term vocabulary; inner-product search
// over the unit-normalized vectors then ranks quanta by cosine similarity.
//
// The package satisfies the same contract as the in-memory index, so the
// worker and API server can swap backends through configuration alone.
package milvus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// ErrClientClosed is returned by operations invoked after Close.
var ErrClientClosed = errors.New(errors.ErrCodeIndexUnavailable, "milvus client is closed")

// ClientFactory builds the underlying Milvus SDK client. Tests swap it to
// avoid dialing a real server.
type ClientFactory func(ctx context.Context, cfg client.Config) (client.Client, error)

var newMilvusClient ClientFactory = client.NewClient

// Config holds Milvus connection parameters.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "milvus address is required")
	}
	return nil
}

// Client wraps a Milvus SDK connection with lifecycle management.
type Client struct {
	api    client.Client
	cfg    Config
	logger logging.Logger

	closed atomic.Bool
}

// NewClient dials the configured Milvus server and verifies it answers a
// health probe before returning.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	api, err := newMilvusClient(ctx, client.Config{Address: cfg.Addr})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeIndexUnavailable, "connect to milvus at %s", cfg.Addr)
	}

	c := &Client{api: api, cfg: cfg, logger: logger}
	if err := c.HealthCheck(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}

	logger.Info("connected to vector store", logging.String("addr", cfg.Addr))
	return c, nil
}

// HealthCheck probes the server. It reports an error when the client is
// closed or the server does not answer.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if _, err := c.api.CheckHealth(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus health check failed")
	}
	return nil
}

// opContext applies the configured request timeout unless the caller
// already set a deadline.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

// Close releases the underlying connection. Subsequent calls are no-ops.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.api.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "close milvus connection")
	}
	c.logger.Info("vector store connection closed")
	return nil
}
