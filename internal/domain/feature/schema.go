// Package feature implements the land-feature bounded context for the
// LandQuant-Intelligence platform: the canonical feature schema, the Record
// value object that carries observed features for one land quantum, and the
// provenance bookkeeping that records which provider supplied each value.
// Scoring, mismatch detection, and similarity indexing all consume features
// exclusively through this package.
package feature

import "sort"

// ─────────────────────────────────────────────────────────────────────────────
// Canonical feature keys
// ─────────────────────────────────────────────────────────────────────────────

// Boolean flag keys.  Each reports the presence of an attribute within or
// adjacent to a land quantum.
const (
	KeyCoastal           = "coastal"
	KeyPower             = "power"
	KeyWaterService      = "water_service"
	KeyRoadAccess        = "road_access"
	KeyHighway           = "highway"
	KeyRail              = "rail"
	KeyPort              = "port"
	KeyManufacturingBase = "manufacturing_base"
	KeyUrbanArea         = "urban_area"
	KeyIndustrialZone    = "industrial_zone"
	KeyCommercialZone    = "commercial_zone"
	KeyResidentialZone   = "residential_zone"
	KeyAgriculturalZone  = "agricultural_zone"
	KeyZoningBuildable   = "zoning_buildable"
	KeyFloodRisk         = "flood_risk"
	KeyProtectedHabitat  = "protected_habitat"
	KeyLowElevation      = "low_elevation"
	KeyHighElevation     = "high_elevation"
)

// Numeric keys.  Distances are in feet, slope in percent grade, elevation in
// feet above sea level.
const (
	KeySlopePercent      = "slope_percent"
	KeyElevationFt       = "elevation_ft"
	KeyFloodScore        = "flood_score"
	KeyWaterDistanceFt   = "water_distance_ft"
	KeyPowerDistanceFt   = "power_distance_ft"
	KeyPopulationDensity = "population_density"
)

// String keys.
const (
	KeyZoningClass = "zoning_class"
)

// ─────────────────────────────────────────────────────────────────────────────
// Field schema
// ─────────────────────────────────────────────────────────────────────────────

// Kind classifies the value type of a schema field.
type Kind int

const (
	KindFlag Kind = iota
	KindNumber
	KindString
)

// FieldSpec describes one canonical feature field: its value kind, the default
// normalization domain used by weighted scoring (numeric fields only), and the
// clamping bounds applied when a value is set.
type FieldSpec struct {
	Key    string
	Kind   Kind
	Domain float64 // normalization cap; scoring treats value/Domain capped at 1
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// DefaultDomain is the normalization domain applied to numeric feature values
// whose schema entry carries none and whose profile declares no override.
const DefaultDomain = 100.0

var schema = map[string]FieldSpec{
	KeyCoastal:           {Key: KeyCoastal, Kind: KindFlag},
	KeyPower:             {Key: KeyPower, Kind: KindFlag},
	KeyWaterService:      {Key: KeyWaterService, Kind: KindFlag},
	KeyRoadAccess:        {Key: KeyRoadAccess, Kind: KindFlag},
	KeyHighway:           {Key: KeyHighway, Kind: KindFlag},
	KeyRail:              {Key: KeyRail, Kind: KindFlag},
	KeyPort:              {Key: KeyPort, Kind: KindFlag},
	KeyManufacturingBase: {Key: KeyManufacturingBase, Kind: KindFlag},
	KeyUrbanArea:         {Key: KeyUrbanArea, Kind: KindFlag},
	KeyIndustrialZone:    {Key: KeyIndustrialZone, Kind: KindFlag},
	KeyCommercialZone:    {Key: KeyCommercialZone, Kind: KindFlag},
	KeyResidentialZone:   {Key: KeyResidentialZone, Kind: KindFlag},
	KeyAgriculturalZone:  {Key: KeyAgriculturalZone, Kind: KindFlag},
	KeyZoningBuildable:   {Key: KeyZoningBuildable, Kind: KindFlag},
	KeyFloodRisk:         {Key: KeyFloodRisk, Kind: KindFlag},
	KeyProtectedHabitat:  {Key: KeyProtectedHabitat, Kind: KindFlag},
	KeyLowElevation:      {Key: KeyLowElevation, Kind: KindFlag},
	KeyHighElevation:     {Key: KeyHighElevation, Kind: KindFlag},

	KeySlopePercent: {Key: KeySlopePercent, Kind: KindNumber,
		Domain: 100, Min: 0, HasMin: true},
	KeyElevationFt: {Key: KeyElevationFt, Kind: KindNumber,
		Domain: 1000},
	KeyFloodScore: {Key: KeyFloodScore, Kind: KindNumber,
		Domain: 10, Min: 0, HasMin: true, Max: 10, HasMax: true},
	KeyWaterDistanceFt: {Key: KeyWaterDistanceFt, Kind: KindNumber,
		Domain: 5280, Min: 0, HasMin: true},
	KeyPowerDistanceFt: {Key: KeyPowerDistanceFt, Kind: KindNumber,
		Domain: 5280, Min: 0, HasMin: true},
	KeyPopulationDensity: {Key: KeyPopulationDensity, Kind: KindNumber,
		Domain: 10000, Min: 0, HasMin: true},

	KeyZoningClass: {Key: KeyZoningClass, Kind: KindString},
}

// SpecFor returns the FieldSpec for key.  The second return value is false for
// keys outside the canonical schema; such keys are still stored on a Record so
// that custom profiles can score provider-specific attributes, but they carry
// no clamping bounds and use DefaultDomain for normalization.
func SpecFor(key string) (FieldSpec, bool) {
	s, ok := schema[key]
	return s, ok
}

// DomainFor returns the normalization domain for key: the schema default when
// present, DefaultDomain otherwise.
func DomainFor(key string) float64 {
	if s, ok := schema[key]; ok && s.Domain > 0 {
		return s.Domain
	}
	return DefaultDomain
}

// CanonicalKeys returns every schema key in ascending order.
func CanonicalKeys() []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clamp applies the schema bounds for key to v.  Unknown keys pass through.
func clamp(key string, v float64) float64 {
	s, ok := schema[key]
	if !ok {
		return v
	}
	if s.HasMin && v < s.Min {
		return s.Min
	}
	if s.HasMax && v > s.Max {
		return s.Max
	}
	return v
}
