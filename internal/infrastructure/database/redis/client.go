// Package redis wraps the go-redis client with the connection management,
// feature-record caching, and provider rate gating used by the land-analysis
// platform. The wrapper guards every command against use after Close so that
// shutdown ordering bugs surface as a typed error instead of a panic deep in
// the connection pool.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

var (
	// ErrClientClosed is returned by every command issued after Close.
	ErrClientClosed = errors.New(errors.ErrCodeCacheError, "redis client is closed")
	// ErrConnectionFailed wraps the initial ping failure in NewClient.
	ErrConnectionFailed = errors.New(errors.ErrCodeCacheError, "failed to connect to redis")
)

// Config holds the connection settings for a standalone Redis server.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Client is a closed-guarded wrapper over a standalone *redis.Client exposing
// the command subset the platform uses.
type Client struct {
	rdb    *redis.Client
	config Config
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient connects to the configured server and verifies the connection
// with a ping before returning.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	cfg.applyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to connect to redis at "+cfg.Addr)
	}

	log.Info("connected to redis",
		logging.String("addr", cfg.Addr),
		logging.Int("db", cfg.DB),
		logging.Int("pool_size", cfg.PoolSize),
	)

	return &Client{
		rdb:    rdb,
		config: cfg,
		logger: log,
	}, nil
}

// Close releases the connection pool. Commands issued afterwards fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("redis client closed", logging.String("addr", c.config.Addr))
	return c.rdb.Close()
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Underlying exposes the raw go-redis client for integration tests and
// pipeline use. Callers must not Close it.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// PoolStats reports connection pool counters for metrics collection.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

// ─── Command wrappers ────────────────────────────────────────────────────────

func errorStringCmd(err error) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	cmd.SetErr(err)
	return cmd
}

func errorStatusCmd(err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	cmd.SetErr(err)
	return cmd
}

func errorIntCmd(err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	cmd.SetErr(err)
	return cmd
}

func errorBoolCmd(err error) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	cmd.SetErr(err)
	return cmd
}

func errorDurationCmd(err error) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(context.Background(), 0)
	cmd.SetErr(err)
	return cmd
}

// Get retrieves the value stored at key.
func (c *Client) Get(ctx context.Context, key string) *redis.StringCmd {
	if c.isClosed() {
		return errorStringCmd(ErrClientClosed)
	}
	return c.rdb.Get(ctx, key)
}

// Set stores value at key with the given expiration. Zero means no expiry.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if c.isClosed() {
		return errorStatusCmd(ErrClientClosed)
	}
	return c.rdb.Set(ctx, key, value, expiration)
}

// SetNX stores value at key only when the key does not already exist.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if c.isClosed() {
		return errorBoolCmd(ErrClientClosed)
	}
	return c.rdb.SetNX(ctx, key, value, expiration)
}

// Del removes the given keys.
func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if c.isClosed() {
		return errorIntCmd(ErrClientClosed)
	}
	return c.rdb.Del(ctx, keys...)
}

// Exists reports how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if c.isClosed() {
		return errorIntCmd(ErrClientClosed)
	}
	return c.rdb.Exists(ctx, keys...)
}

// TTL reports the remaining time to live of key.
func (c *Client) TTL(ctx context.Context, key string) *redis.DurationCmd {
	if c.isClosed() {
		return errorDurationCmd(ErrClientClosed)
	}
	return c.rdb.TTL(ctx, key)
}

// PTTL reports the remaining time to live of key with millisecond resolution.
func (c *Client) PTTL(ctx context.Context, key string) *redis.DurationCmd {
	if c.isClosed() {
		return errorDurationCmd(ErrClientClosed)
	}
	return c.rdb.PTTL(ctx, key)
}

// Ping checks connection liveness.
func (c *Client) Ping(ctx context.Context) *redis.StatusCmd {
	if c.isClosed() {
		return errorStatusCmd(ErrClientClosed)
	}
	return c.rdb.Ping(ctx)
}
