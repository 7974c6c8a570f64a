package main

import (
	"fmt"

	"github.com/turtacn/LandQuant-Intelligence/internal/config"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
)

// engines bundles the pure domain components every process builds from the
// same config sections, so a CLI run, the apiserver, and the worker can
// never disagree on a score.
type engines struct {
	grid     *grid.Grid
	profiles *scoring.Registry
	scorer   *scoring.Scorer
	detector *mismatch.Detector
}

func buildEngines(cfg *config.Config) (*engines, error) {
	g, err := grid.NewGrid(cfg.Grid.ResolutionMeters)
	if err != nil {
		return nil, err
	}

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

	return &engines{
		grid:     g,
		profiles: registry,
		scorer: scoring.NewScorer(scoring.Params{
			Base:     cfg.Scoring.Base,
			Gain:     cfg.Scoring.Gain,
			LossGain: cfg.Scoring.LossGain,
			MinScore: cfg.Scoring.MinScore,
			MaxScore: cfg.Scoring.MaxScore,
		}),
		detector: mismatch.NewDetector(mismatch.Params{
			SlopeBuildableMaxPercent: cfg.Mismatch.SlopeBuildableMaxPercent,
			SlopeSeveritySpan:        cfg.Mismatch.SlopeSeveritySpan,
			FlatMaxPercent:           cfg.Mismatch.FlatMaxPercent,
			UtilityNearFt:            cfg.Mismatch.UtilityNearFt,
			UtilityTolerance:         cfg.Mismatch.UtilityTolerance,
			UtilityToleranceMode:     mismatch.ToleranceMode(cfg.Mismatch.UtilityToleranceMode),
			FloodLowElevationFt:      cfg.Mismatch.FloodLowElevationFt,
			FloodSafeElevationFt:     cfg.Mismatch.FloodSafeElevationFt,
			FloodScoreMin:            cfg.Mismatch.FloodScoreMin,
		}, mismatch.DefaultRules()...),
	}, nil
}
