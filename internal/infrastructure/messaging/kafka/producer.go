// Package kafka publishes analysis pipeline events for downstream consumers:
// one event per completed quantum analysis, one per detected mismatch, and
// scan lifecycle notifications. Publishing is at-least-once; consumers
// deduplicate on the envelope event id.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// ErrProducerClosed is returned by publish calls after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeServiceUnavailable, "kafka producer closed")

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds producer parameters. RequiredAcks follows kafka semantics:
// -1 all in-sync replicas, 0 none, 1 leader only.
type Config struct {
	Brokers         []string      `mapstructure:"brokers"`
	ClientID        string        `mapstructure:"client_id"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequiredAcks    int           `mapstructure:"required_acks"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`
}

func (c *Config) applyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "landquant"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "kafka brokers must not be empty")
	}
	switch c.RequiredAcks {
	case -1, 0, 1:
		return nil
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"kafka required_acks must be -1, 0 or 1, got %d", c.RequiredAcks)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer
// ─────────────────────────────────────────────────────────────────────────────

// MessageWriter abstracts kafka.Writer so tests can capture messages.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerStats is a point-in-time snapshot of producer counters.
type ProducerStats struct {
	Published int64
	Failed    int64
	BytesOut  int64
}

// Producer wraps a kafka.Writer with size validation, counters and an
// idempotent Close. Messages are hash-balanced on their key, so events for
// one quantum always land on one partition in publish order.
type Producer struct {
	writer MessageWriter
	cfg    Config
	logger logging.Logger
	closed atomic.Bool

	published atomic.Int64
	failed    atomic.Int64
	bytesOut  atomic.Int64
}

// NewProducer constructs a Producer connected to the configured brokers.
func NewProducer(cfg Config, logger logging.Logger) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Transport: &kafka.Transport{
			DialTimeout: 10 * time.Second,
			ClientID:    cfg.ClientID,
		},
	}

	logger.Info("kafka producer ready",
		logging.Any("brokers", cfg.Brokers),
		logging.Int("required_acks", cfg.RequiredAcks))
	return &Producer{writer: writer, cfg: cfg, logger: logger}, nil
}

// Publish writes one message. The key selects the partition; events that must
// stay ordered relative to each other share a key.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic must not be empty")
	}
	if len(value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value must not be empty")
	}
	if len(value) > p.cfg.MaxMessageBytes {
		return errors.Newf(errors.ErrCodeValidation,
			"message of %d bytes exceeds limit %d", len(value), p.cfg.MaxMessageBytes)
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "kafka publish failed")
	}

	p.published.Add(1)
	p.bytesOut.Add(int64(len(value)))
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.Int("bytes", len(value)))
	return nil
}

// PublishEvent marshals an envelope and publishes it keyed by key, carrying
// the event type and schema version as kafka headers.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, env *EventEnvelope) error {
	if env == nil {
		return errors.New(errors.ErrCodeValidation, "event envelope must not be nil")
	}
	value, err := env.Encode()
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), value,
		kafka.Header{Key: "event_type", Value: []byte(env.EventType)},
		kafka.Header{Key: "schema_version", Value: []byte(env.SchemaVersion)},
	)
}

// Stats returns a snapshot of producer counters.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		BytesOut:  p.bytesOut.Load(),
	}
}

// Close flushes and closes the underlying writer. Safe to call twice.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("published", p.published.Load()))
	return err
}
