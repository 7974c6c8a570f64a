package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// ErrCacheMiss is returned by FeatureCache.Get when no record is cached under
// the given id.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "feature cache miss")

const defaultFeatureTTL = 15 * time.Minute

// FeatureCache stores fetched feature records so that repeated scans over the
// same region do not re-query the providers. Entries are keyed by a
// caller-chosen id — the cached provider decorator uses the coordinate string,
// which is stable per quantum center. Records serialize to a full-fidelity
// shape carrying provider-specific keys and provenance, which the canonical
// wire DTO does not.
type FeatureCache struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
	group  singleflight.Group
}

// CacheOption customizes a FeatureCache.
type CacheOption func(*FeatureCache)

// WithKeyPrefix overrides the key namespace, default "landquant:".
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *FeatureCache) { c.prefix = prefix }
}

// WithCacheTTL overrides the entry lifetime, default 15 minutes.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *FeatureCache) { c.ttl = ttl }
}

// NewFeatureCache builds a cache over an established client.
func NewFeatureCache(client *Client, log logging.Logger, opts ...CacheOption) *FeatureCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &FeatureCache{
		client: client,
		logger: log,
		prefix: "landquant:",
		ttl:    defaultFeatureTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FeatureCache) key(id string) string {
	return c.prefix + "features:" + id
}

// jitterTTL spreads expirations +/-10% so a whole scan's cache entries do not
// expire in the same instant.
func (c *FeatureCache) jitterTTL() time.Duration {
	jitter := float64(c.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return c.ttl + time.Duration(jitter)
}

// Get returns the cached record for id, or ErrCacheMiss.
func (c *FeatureCache) Get(ctx context.Context, id string) (*feature.Record, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read feature cache")
	}

	var cr cachedRecord
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode cached feature record")
	}
	return cr.toRecord(), nil
}

// Put stores rec under id with the configured (jittered) TTL.
func (c *FeatureCache) Put(ctx context.Context, id string, rec *feature.Record) error {
	if rec == nil {
		return errors.New(errors.CodeInvalidParam, "feature record must not be nil")
	}
	data, err := json.Marshal(encodeRecord(rec))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode feature record")
	}
	if err := c.client.Set(ctx, c.key(id), data, c.jitterTTL()).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write feature cache")
	}
	return nil
}

// Invalidate drops the cached records for the given ids.
func (c *FeatureCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to invalidate feature cache")
	}
	return nil
}

// GetOrFetch returns the cached record, loading and caching it on a miss.
// Concurrent misses for the same id share a single loader call.
func (c *FeatureCache) GetOrFetch(ctx context.Context, id string, loader func(ctx context.Context) (*feature.Record, error)) (*feature.Record, error) {
	rec, err := c.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if err != ErrCacheMiss {
		return nil, err
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if loaded == nil {
			return nil, nil
		}
		if putErr := c.Put(ctx, id, loaded); putErr != nil {
			c.logger.Warn("failed to cache feature record",
				logging.String("cache_id", id),
				logging.Err(putErr),
			)
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*feature.Record), nil
}

// ─── Serialization ───────────────────────────────────────────────────────────

type cachedProvenance struct {
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

type cachedRecord struct {
	Flags      map[string]bool             `json:"flags,omitempty"`
	Numbers    map[string]float64          `json:"numbers,omitempty"`
	Strings    map[string]string           `json:"strings,omitempty"`
	Provenance map[string]cachedProvenance `json:"provenance,omitempty"`
}

func encodeRecord(rec *feature.Record) cachedRecord {
	cr := cachedRecord{
		Flags:   rec.Flags(),
		Numbers: rec.Numbers(),
		Strings: rec.Strings(),
	}
	for _, k := range rec.Keys() {
		p, ok := rec.ProvenanceFor(k)
		if !ok {
			continue
		}
		if cr.Provenance == nil {
			cr.Provenance = make(map[string]cachedProvenance)
		}
		cr.Provenance[k] = cachedProvenance{
			Source:     p.Source,
			Confidence: p.Confidence,
			ObservedAt: p.ObservedAt,
		}
	}
	return cr
}

func (cr cachedRecord) toRecord() *feature.Record {
	rec := feature.NewRecord()
	for k, v := range cr.Flags {
		rec.SetFlag(k, v)
	}
	for k, v := range cr.Numbers {
		// JSON cannot carry NaN or Inf, so SetNumber cannot fail here.
		_ = rec.SetNumber(k, v)
	}
	for k, v := range cr.Strings {
		rec.SetString(k, v)
	}
	for k, p := range cr.Provenance {
		rec.SetProvenance(k, feature.Provenance{
			Source:     p.Source,
			Confidence: p.Confidence,
			ObservedAt: p.ObservedAt,
		})
	}
	return rec
}
