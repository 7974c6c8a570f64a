package providers

import (
	"context"
	"sync"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// StaticProvider serves fixture records keyed by coordinate string, with an
// optional fallback for unknown coordinates. The CLI uses it to run the full
// pipeline offline, and tests use it in place of live sources. Returned
// records are clones, so callers may mutate them freely.
type StaticProvider struct {
	name     string
	mu       sync.RWMutex
	records  map[string]*feature.Record
	fallback *feature.Record
}

var _ provider.FeatureProvider = (*StaticProvider)(nil)

// NewStatic builds a fixture provider. Both records and fallback may be nil;
// unknown coordinates then yield an empty record.
func NewStatic(name string, records map[string]*feature.Record, fallback *feature.Record) *StaticProvider {
	byCoord := make(map[string]*feature.Record, len(records))
	for k, v := range records {
		byCoord[k] = v
	}
	return &StaticProvider{name: name, records: byCoord, fallback: fallback}
}

// Name implements provider.FeatureProvider.
func (s *StaticProvider) Name() string { return s.name }

// Put registers or replaces the fixture record for coord.
func (s *StaticProvider) Put(coord geo.Coordinate, rec *feature.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[coord.String()] = rec
}

// FetchFeatures implements provider.FeatureProvider.
func (s *StaticProvider) FetchFeatures(_ context.Context, coord geo.Coordinate) (*feature.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[coord.String()]; ok {
		return rec.Clone(), nil
	}
	if s.fallback != nil {
		return s.fallback.Clone(), nil
	}
	return feature.NewRecord(), nil
}

// FixedEstimator always answers with the given estimate. ok=false models a
// learned layer that has no coverage anywhere.
func FixedEstimator(estimate float64, ok bool) provider.Estimator {
	return provider.EstimatorFunc(func(context.Context, *feature.Record) (float64, bool, error) {
		return estimate, ok, nil
	})
}
