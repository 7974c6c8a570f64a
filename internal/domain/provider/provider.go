// Package provider defines the contracts for external data sources: feature
// providers that return raw attributes per coordinate, and the learned-model
// estimator whose inference the mismatch engine compares against rule-based
// scores.  Concrete providers (OSM, USGS, census, county GIS) live outside
// the core; infrastructure/providers supplies the rate-limited, cached,
// composite plumbing around anything satisfying these interfaces.
package provider

import (
	"context"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// FeatureProvider returns raw feature attributes for one coordinate. Fetches
// must be idempotent and safely retryable; rate limiting is the caller's
// responsibility, not the provider's. Failures should carry the PROV_* error
// codes from pkg/errors so the worker can classify them as retryable.
type FeatureProvider interface {
	// Name identifies the source for provenance tags and rate-limit gates.
	Name() string

	// FetchFeatures returns the features observed at coord.
	FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error)
}

// Estimator is the learned-model inference contract. ok=false means the
// model is unavailable for this record (not trained for the region) — a
// valid response, not an error. err is reserved for transport failures.
type Estimator interface {
	Predict(ctx context.Context, rec *feature.Record) (estimate float64, ok bool, err error)
}

// FetchFunc adapts a fetch function to FeatureProvider.
func FetchFunc(name string, fn func(ctx context.Context, coord geo.Coordinate) (*feature.Record, error)) FeatureProvider {
	return &funcProvider{name: name, fn: fn}
}

type funcProvider struct {
	name string
	fn   func(ctx context.Context, coord geo.Coordinate) (*feature.Record, error)
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error) {
	return p.fn(ctx, coord)
}

// EstimatorFunc adapts a predict function to Estimator.
type EstimatorFunc func(ctx context.Context, rec *feature.Record) (float64, bool, error)

func (f EstimatorFunc) Predict(ctx context.Context, rec *feature.Record) (float64, bool, error) {
	return f(ctx, rec)
}
