package providers

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// Fixture is the on-disk feature corpus: records keyed by "lat,lon", plus an
// optional fallback for coordinates outside the corpus. The worker binary
// serves fixtures when no live source is configured, and the CLI uses them
// for offline scans and similarity search.
type Fixture struct {
	Records  map[string]analysis.FeatureRecord `json:"records"`
	Fallback *analysis.FeatureRecord           `json:"fallback,omitempty"`
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for key := range f.Records {
		if _, err := parseFixtureKey(key); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
	}
	return &f, nil
}

// Len reports the number of fixture records.
func (f *Fixture) Len() int { return len(f.Records) }

// Each calls fn for every record with its parsed coordinate, in ascending
// key order for deterministic iteration.
func (f *Fixture) Each(fn func(coord geo.Coordinate, rec *feature.Record) error) error {
	keys := make([]string, 0, len(f.Records))
	for key := range f.Records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		coord, err := parseFixtureKey(key)
		if err != nil {
			return err
		}
		dto := f.Records[key]
		if err := fn(coord, feature.RecordFromDTO(dto)); err != nil {
			return err
		}
	}
	return nil
}

// Provider builds a static provider from the fixture. Scan jobs fetch by
// quantum center, so when g is non-nil every record coordinate snaps to the
// center of its enclosing quantum; records landing in the same quantum keep
// the last one in key order.
func (f *Fixture) Provider(name string, g *grid.Grid) (*StaticProvider, error) {
	records := make(map[string]*feature.Record, len(f.Records))
	err := f.Each(func(coord geo.Coordinate, rec *feature.Record) error {
		if g != nil {
			q, err := g.GetOrCreate(coord)
			if err != nil {
				return fmt.Errorf("resolve fixture coordinate %s: %w", coord, err)
			}
			coord = q.Center()
		}
		records[coord.String()] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	var fallback *feature.Record
	if f.Fallback != nil {
		fallback = feature.RecordFromDTO(*f.Fallback)
	}
	return NewStatic(name, records, fallback), nil
}

func parseFixtureKey(key string) (geo.Coordinate, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("record key %q must be lat,lon", key)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("record key %q: invalid latitude: %w", key, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("record key %q: invalid longitude: %w", key, err)
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, fmt.Errorf("record key %q: %w", key, err)
	}
	return c, nil
}
