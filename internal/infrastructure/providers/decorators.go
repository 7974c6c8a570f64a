package providers

import (
	"context"
	stdliberrors "errors"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// WithTimeout bounds every fetch with limit. A deadline overrun surfaces as a
// retryable provider timeout rather than a bare context error, so the job
// retry budget applies. A non-positive limit returns the provider unchanged.
func WithTimeout(p provider.FeatureProvider, limit time.Duration) provider.FeatureProvider {
	if limit <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, limit: limit}
}

type timeoutProvider struct {
	inner provider.FeatureProvider
	limit time.Duration
}

func (t *timeoutProvider) Name() string { return t.inner.Name() }

func (t *timeoutProvider) FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()

	rec, err := t.inner.FetchFeatures(ctx, coord)
	if err != nil {
		if stdliberrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.ProviderTimeout(t.inner.Name(), err)
		}
		return nil, err
	}
	return rec, nil
}

// Throttled makes every fetch wait on gate first. The wait is cancellable
// through ctx; a nil gate returns the provider unchanged.
func Throttled(p provider.FeatureProvider, gate Gate) provider.FeatureProvider {
	if gate == nil {
		return p
	}
	return &throttledProvider{inner: p, gate: gate}
}

type throttledProvider struct {
	inner provider.FeatureProvider
	gate  Gate
}

func (t *throttledProvider) Name() string { return t.inner.Name() }

func (t *throttledProvider) FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.FetchFeatures(ctx, coord)
}

// Cached serves fetches from the shared feature cache, keyed by the
// coordinate string. Scan jobs carry quantum centers, so repeated scans over
// a region hit the same keys. A nil cache returns the provider unchanged.
func Cached(p provider.FeatureProvider, cache *redis.FeatureCache) provider.FeatureProvider {
	if cache == nil {
		return p
	}
	return &cachedProvider{inner: p, cache: cache}
}

type cachedProvider struct {
	inner provider.FeatureProvider
	cache *redis.FeatureCache
}

func (c *cachedProvider) Name() string { return c.inner.Name() }

func (c *cachedProvider) FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error) {
	return c.cache.GetOrFetch(ctx, coord.String(), func(ctx context.Context) (*feature.Record, error) {
		return c.inner.FetchFeatures(ctx, coord)
	})
}
