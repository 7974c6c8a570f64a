package mismatch

import (
	"fmt"
	"math"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tuning parameters
// ─────────────────────────────────────────────────────────────────────────────

// ToleranceMode selects how the utility tolerance band is interpreted.
type ToleranceMode string

const (
	ToleranceAbsolute ToleranceMode = "absolute"
	ToleranceRelative ToleranceMode = "relative"
)

// Default rule parameters. Slopes are percent grade, elevations and
// distances are feet, the flood score shares the 0-10 hazard scale.
const (
	DefaultSlopeBuildableMaxPercent = 15.0
	DefaultSlopeSeveritySpan        = 20.0
	DefaultFlatMaxPercent           = 15.0
	DefaultUtilityNearFt            = 500.0
	DefaultUtilityTolerance         = 2.5
	DefaultFloodLowElevationFt      = 30.0
	DefaultFloodSafeElevationFt     = 100.0
	DefaultFloodScoreMin            = 4.0
)

// Params tunes the built-in rules. Zero-valued fields are replaced by the
// defaults in NewDetector.
type Params struct {
	SlopeBuildableMaxPercent float64
	SlopeSeveritySpan        float64
	FlatMaxPercent           float64
	UtilityNearFt            float64
	UtilityTolerance         float64
	UtilityToleranceMode     ToleranceMode
	FloodLowElevationFt      float64
	FloodSafeElevationFt     float64
	FloodScoreMin            float64
}

func (p Params) withDefaults() Params {
	if p.SlopeBuildableMaxPercent == 0 {
		p.SlopeBuildableMaxPercent = DefaultSlopeBuildableMaxPercent
	}
	if p.SlopeSeveritySpan == 0 {
		p.SlopeSeveritySpan = DefaultSlopeSeveritySpan
	}
	if p.FlatMaxPercent == 0 {
		p.FlatMaxPercent = DefaultFlatMaxPercent
	}
	if p.UtilityNearFt == 0 {
		p.UtilityNearFt = DefaultUtilityNearFt
	}
	if p.UtilityTolerance == 0 {
		p.UtilityTolerance = DefaultUtilityTolerance
	}
	if p.UtilityToleranceMode == "" {
		p.UtilityToleranceMode = ToleranceAbsolute
	}
	if p.FloodLowElevationFt == 0 {
		p.FloodLowElevationFt = DefaultFloodLowElevationFt
	}
	if p.FloodSafeElevationFt == 0 {
		p.FloodSafeElevationFt = DefaultFloodSafeElevationFt
	}
	if p.FloodScoreMin == 0 {
		p.FloodScoreMin = DefaultFloodScoreMin
	}
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Rule registry
// ─────────────────────────────────────────────────────────────────────────────

// DetectFunc inspects one observation and reports whether the rule fired.
// A fired result carries severity, both evidence sides, and the explanation;
// the detector stamps quantum id, category, and timestamp.
type DetectFunc func(obs Observation, p Params) (Mismatch, bool)

// Rule pairs a category with its pure detection function.
type Rule struct {
	Category Category
	Detect   DetectFunc
}

// DefaultRules returns the built-in rule set in its canonical order.
func DefaultRules() []Rule {
	return []Rule{
		{Category: CategorySlope, Detect: detectSlope},
		{Category: CategoryZoningOpportunity, Detect: detectZoningOpportunity},
		{Category: CategoryUtility, Detect: detectUtility},
		{Category: CategoryFloodTerrain, Detect: detectFloodTerrain},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Built-in rules
// ─────────────────────────────────────────────────────────────────────────────

// detectSlope fires when zoning marks the cell buildable but measured slope
// exceeds the buildability threshold. Severity grows linearly with the
// overshoot across the configured span.
func detectSlope(obs Observation, p Params) (Mismatch, bool) {
	buildable, ok := obs.Features.Flag(feature.KeyZoningBuildable)
	if !ok || !buildable {
		return Mismatch{}, false
	}
	slope, ok := obs.Features.Number(feature.KeySlopePercent)
	if !ok || slope <= p.SlopeBuildableMaxPercent {
		return Mismatch{}, false
	}

	severity := capSeverity((slope - p.SlopeBuildableMaxPercent) / p.SlopeSeveritySpan)
	return Mismatch{
		Severity: severity,
		Left:     Evidence{Source: "zoning", Value: "buildable"},
		Right:    Evidence{Source: "terrain", Value: fmt.Sprintf("%.1f%% slope", slope)},
		Explanation: fmt.Sprintf(
			"zoned buildable but terrain slope %.1f%% exceeds the %.1f%% buildability threshold",
			slope, p.SlopeBuildableMaxPercent),
	}, true
}

// detectZoningOpportunity fires when flat terrain has utility infrastructure
// within reach but zoning is restrictive (agricultural, or explicitly not
// buildable). Severity grows with the number of favorable physical
// attributes present despite the restriction.
func detectZoningOpportunity(obs Observation, p Params) (Mismatch, bool) {
	slope, ok := obs.Features.Number(feature.KeySlopePercent)
	if !ok || slope >= p.FlatMaxPercent {
		return Mismatch{}, false
	}

	waterDist, hasWater := obs.Features.Number(feature.KeyWaterDistanceFt)
	powerDist, hasPower := obs.Features.Number(feature.KeyPowerDistanceFt)
	waterNear := hasWater && waterDist < p.UtilityNearFt
	powerNear := hasPower && powerDist < p.UtilityNearFt
	if !waterNear && !powerNear {
		return Mismatch{}, false
	}

	agricultural, hasAg := obs.Features.Flag(feature.KeyAgriculturalZone)
	buildable, hasBuild := obs.Features.Flag(feature.KeyZoningBuildable)
	if !hasAg && !hasBuild {
		return Mismatch{}, false
	}
	restrictive := (hasAg && agricultural) || (hasBuild && !buildable)
	if !restrictive {
		return Mismatch{}, false
	}

	favorable := 1 // flat terrain, established above
	if waterNear {
		favorable++
	}
	if powerNear {
		favorable++
	}
	if obs.Features.Truthy(feature.KeyRoadAccess) {
		favorable++
	}

	zoning := "not buildable"
	if hasAg && agricultural {
		zoning = "agricultural"
	}

	severity := capSeverity(0.5 + 0.1*float64(favorable))
	return Mismatch{
		Severity: severity,
		Left:     Evidence{Source: "zoning", Value: zoning},
		Right:    Evidence{Source: "terrain", Value: fmt.Sprintf("%d favorable attributes", favorable)},
		Explanation: fmt.Sprintf(
			"restrictive zoning (%s) on flat, serviced land with %d favorable physical attributes",
			zoning, favorable),
	}, true
}

// detectUtility fires when the learned estimate and the rule-based score
// disagree beyond the tolerance band. Severity is the disagreement
// normalized against twice the tolerance, so it starts at 0.5 where the band
// is first exceeded and saturates at double the band.
func detectUtility(obs Observation, p Params) (Mismatch, bool) {
	if obs.RuleScore == nil || obs.Learned == nil {
		return Mismatch{}, false
	}
	rule, learned := *obs.RuleScore, *obs.Learned

	gap := math.Abs(learned - rule)
	if p.UtilityToleranceMode == ToleranceRelative {
		base := math.Max(math.Abs(rule), math.Abs(learned))
		if base == 0 {
			return Mismatch{}, false
		}
		gap /= base
	}
	if gap <= p.UtilityTolerance {
		return Mismatch{}, false
	}

	severity := capSeverity(gap / (2 * p.UtilityTolerance))
	return Mismatch{
		Severity: severity,
		Left:     Evidence{Source: "rule_engine", Value: fmt.Sprintf("%.2f", rule)},
		Right:    Evidence{Source: "learned_model", Value: fmt.Sprintf("%.2f", learned)},
		Explanation: fmt.Sprintf(
			"rule score %.2f and learned estimate %.2f diverge beyond the %.2f tolerance band",
			rule, learned, p.UtilityTolerance),
	}, true
}

// detectFloodTerrain fires in either direction of the elevation/flood-zone
// disagreement: low-lying land with no flood classification, or flood-flagged
// land at or above the safe elevation.
func detectFloodTerrain(obs Observation, p Params) (Mismatch, bool) {
	elev, ok := obs.Features.Number(feature.KeyElevationFt)
	if !ok {
		return Mismatch{}, false
	}

	floodFlag, hasFlag := obs.Features.Flag(feature.KeyFloodRisk)
	floodScore, hasScore := obs.Features.Number(feature.KeyFloodScore)
	flooded := (hasFlag && floodFlag) || (hasScore && floodScore >= p.FloodScoreMin)

	if elev < p.FloodLowElevationFt && !flooded {
		severity := capSeverity(0.6 + 0.4*(p.FloodLowElevationFt-elev)/p.FloodLowElevationFt)
		return Mismatch{
			Severity: severity,
			Left:     Evidence{Source: "terrain", Value: fmt.Sprintf("%.1f ft elevation", elev)},
			Right:    Evidence{Source: "flood_zone", Value: "no flood classification"},
			Explanation: fmt.Sprintf(
				"elevation %.1f ft is below the %.1f ft low-elevation threshold but the cell carries no flood classification",
				elev, p.FloodLowElevationFt),
		}, true
	}

	if flooded && elev >= p.FloodSafeElevationFt {
		source := "flood-flagged"
		if !(hasFlag && floodFlag) {
			source = fmt.Sprintf("flood score %.1f", floodScore)
		}
		severity := capSeverity(0.3 + 0.3*(elev-p.FloodSafeElevationFt)/p.FloodSafeElevationFt)
		return Mismatch{
			Severity: severity,
			Left:     Evidence{Source: "flood_zone", Value: source},
			Right:    Evidence{Source: "terrain", Value: fmt.Sprintf("%.1f ft elevation", elev)},
			Explanation: fmt.Sprintf(
				"flood classification on land at %.1f ft, at or above the %.1f ft safe elevation",
				elev, p.FloodSafeElevationFt),
		}, true
	}

	return Mismatch{}, false
}

func capSeverity(s float64) float64 {
	if s > 1 {
		return 1
	}
	return s
}
