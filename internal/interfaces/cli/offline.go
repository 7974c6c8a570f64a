package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/internal/config"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// Offline mode builds the same domain engines the API server runs, from the
// same configuration sections, so results match a server-side run exactly.

func buildGrid(cfg *config.Config) (*grid.Grid, error) {
	return grid.NewGrid(cfg.Grid.ResolutionMeters)
}

func buildRegistry(cfg *config.Config) (*scoring.Registry, error) {
	registry := scoring.NewRegistry()
	for name, pc := range cfg.Scoring.Profiles {
		p := &scoring.Profile{
			Name:          name,
			Description:   pc.Description,
			Weights:       pc.Weights,
			Requirements:  pc.Requirements,
			Disqualifiers: pc.Disqualifiers,
			Domains:       pc.Domains,
		}
		for _, sc := range pc.Synergies {
			p.Synergies = append(p.Synergies, scoring.Synergy{Features: sc.Features, Bonus: sc.Bonus})
		}
		for _, sc := range pc.AntiSynergies {
			p.AntiSynergies = append(p.AntiSynergies, scoring.Synergy{Features: sc.Features, Bonus: sc.Bonus})
		}
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register profile %s: %w", name, err)
		}
	}
	return registry, nil
}

func buildScorer(cfg *config.Config) *scoring.Scorer {
	return scoring.NewScorer(scoring.Params{
		Base:     cfg.Scoring.Base,
		Gain:     cfg.Scoring.Gain,
		LossGain: cfg.Scoring.LossGain,
		MinScore: cfg.Scoring.MinScore,
		MaxScore: cfg.Scoring.MaxScore,
	})
}

func buildDetector(cfg *config.Config) *mismatch.Detector {
	return mismatch.NewDetector(mismatch.Params{
		SlopeBuildableMaxPercent: cfg.Mismatch.SlopeBuildableMaxPercent,
		SlopeSeveritySpan:        cfg.Mismatch.SlopeSeveritySpan,
		FlatMaxPercent:           cfg.Mismatch.FlatMaxPercent,
		UtilityNearFt:            cfg.Mismatch.UtilityNearFt,
		UtilityTolerance:         cfg.Mismatch.UtilityTolerance,
		UtilityToleranceMode:     mismatch.ToleranceMode(cfg.Mismatch.UtilityToleranceMode),
		FloodLowElevationFt:      cfg.Mismatch.FloodLowElevationFt,
		FloodSafeElevationFt:     cfg.Mismatch.FloodSafeElevationFt,
		FloodScoreMin:            cfg.Mismatch.FloodScoreMin,
	}, mismatch.DefaultRules()...)
}

// loadFeatures reads one feature record from a JSON file, or from stdin when
// path is "-".
func loadFeatures(cmd *cobra.Command, path string) (analysis.FeatureRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return analysis.FeatureRecord{}, fmt.Errorf("read features from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return analysis.FeatureRecord{}, fmt.Errorf("read features file: %w", err)
		}
	}

	var rec analysis.FeatureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return analysis.FeatureRecord{}, fmt.Errorf("parse features JSON: %w", err)
	}
	return rec, nil
}

// parseCoordinate parses "lat,lon" into a coordinate.
func parseCoordinate(s string) (geo.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("coordinate %q must be lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return c, nil
}

// toDomainRecord converts a wire feature record for the domain engines.
func toDomainRecord(dto analysis.FeatureRecord) *feature.Record {
	return feature.RecordFromDTO(dto)
}
