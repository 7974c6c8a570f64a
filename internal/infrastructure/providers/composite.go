package providers

import (
	"context"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// Composite queries every source in order and merges their records
// field-wise, earlier sources winning conflicting keys. Each merged value
// carries provenance naming the source that supplied it. Any source failure
// fails the whole fetch: a partial record would silently score lower than the
// land deserves, whereas a failed fetch is retried and, if exhausted, lands
// on the scan report.
func Composite(name string, sources ...provider.FeatureProvider) provider.FeatureProvider {
	return &compositeProvider{name: name, sources: sources}
}

type compositeProvider struct {
	name    string
	sources []provider.FeatureProvider
}

func (c *compositeProvider) Name() string { return c.name }

func (c *compositeProvider) FetchFeatures(ctx context.Context, coord geo.Coordinate) (*feature.Record, error) {
	merged := feature.NewRecord()
	for _, src := range c.sources {
		rec, err := src.FetchFeatures(ctx, coord)
		if err != nil {
			if errors.GetCode(err) == errors.CodeUnknown {
				return nil, errors.Provider(src.Name(), err)
			}
			return nil, err
		}
		if rec == nil {
			continue
		}
		stampProvenance(rec, src.Name())
		merged.Merge(rec)
	}
	return merged, nil
}

// stampProvenance fills in provenance for keys the source left unattributed.
// Attributions from nested composites are preserved.
func stampProvenance(rec *feature.Record, source string) {
	now := time.Now().UTC()
	for _, k := range rec.Keys() {
		if _, ok := rec.ProvenanceFor(k); ok {
			continue
		}
		rec.SetProvenance(k, feature.Provenance{
			Source:     source,
			Confidence: 1,
			ObservedAt: now,
		})
	}
}
