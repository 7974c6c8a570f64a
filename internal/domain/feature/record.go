package feature

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// Provenance records which provider supplied a feature value, how confident
// that provider was, and when the value was observed.  Staleness decisions in
// the caching layer are made against ObservedAt.
type Provenance struct {
	Source     string
	Confidence float64
	ObservedAt time.Time
}

// Record is the value object carrying every observed feature for one land
// quantum.  Values are stored by canonical key (see schema.go); keys outside
// the canonical schema are accepted so that provider-specific attributes can
// participate in custom scoring profiles.
//
// Record is not safe for concurrent mutation; pipeline code builds a Record,
// then treats it as read-only.
type Record struct {
	flags      map[string]bool
	numbers    map[string]float64
	strings    map[string]string
	provenance map[string]Provenance
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{
		flags:      make(map[string]bool),
		numbers:    make(map[string]float64),
		strings:    make(map[string]string),
		provenance: make(map[string]Provenance),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutators
// ─────────────────────────────────────────────────────────────────────────────

// SetFlag stores a boolean feature value.
func (r *Record) SetFlag(key string, v bool) {
	r.flags[key] = v
}

// SetNumber stores a numeric feature value after applying the schema clamping
// bounds for key.  NaN and infinite values are rejected.
func (r *Record) SetNumber(key string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.InvalidParam(
			fmt.Sprintf("feature %q: numeric value must be finite", key))
	}
	r.numbers[key] = clamp(key, v)
	return nil
}

// SetString stores a string feature value.
func (r *Record) SetString(key, v string) {
	r.strings[key] = v
}

// SetProvenance records the origin of the value stored under key.
func (r *Record) SetProvenance(key string, p Provenance) {
	r.provenance[key] = p
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessors
// ─────────────────────────────────────────────────────────────────────────────

// Flag returns the boolean value for key and whether it is present.
func (r *Record) Flag(key string) (bool, bool) {
	v, ok := r.flags[key]
	return v, ok
}

// Number returns the numeric value for key and whether it is present.
func (r *Record) Number(key string) (float64, bool) {
	v, ok := r.numbers[key]
	return v, ok
}

// Str returns the string value for key and whether it is present.
func (r *Record) Str(key string) (string, bool) {
	v, ok := r.strings[key]
	return v, ok
}

// ProvenanceFor returns the recorded provenance for key, if any.
func (r *Record) ProvenanceFor(key string) (Provenance, bool) {
	p, ok := r.provenance[key]
	return p, ok
}

// Has reports whether any value is stored under key.
func (r *Record) Has(key string) bool {
	if _, ok := r.flags[key]; ok {
		return true
	}
	if _, ok := r.numbers[key]; ok {
		return true
	}
	_, ok := r.strings[key]
	return ok
}

// Truthy reports whether the value stored under key is "present and positive":
// a true flag, a non-zero number, or a non-empty string.  Absent keys are
// false.  Requirement, disqualifier, and synergy evaluation all use this
// predicate.
func (r *Record) Truthy(key string) bool {
	if v, ok := r.flags[key]; ok {
		return v
	}
	if v, ok := r.numbers[key]; ok {
		return v != 0
	}
	if v, ok := r.strings[key]; ok {
		return v != ""
	}
	return false
}

// Normalized returns the numeric value for key scaled into [0, 1] by domain
// (value/domain capped at 1).  Non-positive domains fall back to the schema
// domain for the key.  The second return value is false when the key holds no
// numeric value.
func (r *Record) Normalized(key string, domain float64) (float64, bool) {
	v, ok := r.numbers[key]
	if !ok {
		return 0, false
	}
	if domain <= 0 {
		domain = DomainFor(key)
	}
	n := v / domain
	if n > 1 {
		n = 1
	}
	if n < 0 {
		n = 0
	}
	return n, true
}

// Flags returns a copy of every boolean feature.
func (r *Record) Flags() map[string]bool {
	out := make(map[string]bool, len(r.flags))
	for k, v := range r.flags {
		out[k] = v
	}
	return out
}

// Numbers returns a copy of every numeric feature.
func (r *Record) Numbers() map[string]float64 {
	out := make(map[string]float64, len(r.numbers))
	for k, v := range r.numbers {
		out[k] = v
	}
	return out
}

// Strings returns a copy of every string feature.
func (r *Record) Strings() map[string]string {
	out := make(map[string]string, len(r.strings))
	for k, v := range r.strings {
		out[k] = v
	}
	return out
}

// Keys returns every populated key in ascending order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.flags)+len(r.numbers)+len(r.strings))
	for k := range r.flags {
		keys = append(keys, k)
	}
	for k := range r.numbers {
		keys = append(keys, k)
	}
	for k := range r.strings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of populated keys.
func (r *Record) Len() int {
	return len(r.flags) + len(r.numbers) + len(r.strings)
}

// Clone returns a deep copy of the Record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for k, v := range r.flags {
		out.flags[k] = v
	}
	for k, v := range r.numbers {
		out.numbers[k] = v
	}
	for k, v := range r.strings {
		out.strings[k] = v
	}
	for k, v := range r.provenance {
		out.provenance[k] = v
	}
	return out
}

// Merge copies values from other into r for keys that r does not already hold.
// Existing values always win, so a composite provider that merges sources in
// precedence order yields first-writer-wins semantics.  Provenance entries
// travel with their values.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	for k, v := range other.flags {
		if !r.Has(k) {
			r.flags[k] = v
			if p, ok := other.provenance[k]; ok {
				r.provenance[k] = p
			}
		}
	}
	for k, v := range other.numbers {
		if !r.Has(k) {
			r.numbers[k] = v
			if p, ok := other.provenance[k]; ok {
				r.provenance[k] = p
			}
		}
	}
	for k, v := range other.strings {
		if !r.Has(k) {
			r.strings[k] = v
			if p, ok := other.provenance[k]; ok {
				r.provenance[k] = p
			}
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DTO conversion
// ─────────────────────────────────────────────────────────────────────────────

// ToDTO converts the Record to the wire representation used by the HTTP API
// and the analysis-record sink.  Only canonical fields appear in the DTO;
// non-canonical keys are internal to the scoring engine.
func (r *Record) ToDTO() analysis.FeatureRecord {
	dto := analysis.FeatureRecord{}

	setFlag := func(dst **bool, key string) {
		if v, ok := r.flags[key]; ok {
			val := v
			*dst = &val
		}
	}
	setNum := func(dst **float64, key string) {
		if v, ok := r.numbers[key]; ok {
			val := v
			*dst = &val
		}
	}

	setFlag(&dto.Coastal, KeyCoastal)
	setFlag(&dto.Power, KeyPower)
	setFlag(&dto.WaterService, KeyWaterService)
	setFlag(&dto.RoadAccess, KeyRoadAccess)
	setFlag(&dto.Highway, KeyHighway)
	setFlag(&dto.Rail, KeyRail)
	setFlag(&dto.Port, KeyPort)
	setFlag(&dto.ManufacturingBase, KeyManufacturingBase)
	setFlag(&dto.UrbanArea, KeyUrbanArea)
	setFlag(&dto.IndustrialZone, KeyIndustrialZone)
	setFlag(&dto.CommercialZone, KeyCommercialZone)
	setFlag(&dto.ResidentialZone, KeyResidentialZone)
	setFlag(&dto.AgriculturalZone, KeyAgriculturalZone)
	setFlag(&dto.ZoningBuildable, KeyZoningBuildable)
	setFlag(&dto.FloodRisk, KeyFloodRisk)
	setFlag(&dto.ProtectedHabitat, KeyProtectedHabitat)
	setFlag(&dto.LowElevation, KeyLowElevation)
	setFlag(&dto.HighElevation, KeyHighElevation)

	setNum(&dto.SlopePercent, KeySlopePercent)
	setNum(&dto.ElevationFt, KeyElevationFt)
	setNum(&dto.FloodScore, KeyFloodScore)
	setNum(&dto.WaterDistanceFt, KeyWaterDistanceFt)
	setNum(&dto.PowerDistanceFt, KeyPowerDistanceFt)
	setNum(&dto.PopulationDensity, KeyPopulationDensity)

	if v, ok := r.strings[KeyZoningClass]; ok {
		val := v
		dto.ZoningClass = &val
	}

	if len(r.provenance) > 0 {
		dto.Provenance = make(map[string]analysis.Provenance, len(r.provenance))
		for k, p := range r.provenance {
			dto.Provenance[k] = analysis.Provenance{
				Source:     p.Source,
				Confidence: p.Confidence,
				ObservedAt: p.ObservedAt,
			}
		}
	}

	return dto
}

// RecordFromDTO reconstructs a Record from its wire representation.  Numeric
// values pass through the same clamping applied by SetNumber; values that fail
// the finite check are dropped rather than failing the whole conversion.
func RecordFromDTO(dto analysis.FeatureRecord) *Record {
	r := NewRecord()

	getFlag := func(src *bool, key string) {
		if src != nil {
			r.flags[key] = *src
		}
	}
	getNum := func(src *float64, key string) {
		if src != nil && !math.IsNaN(*src) && !math.IsInf(*src, 0) {
			r.numbers[key] = clamp(key, *src)
		}
	}

	getFlag(dto.Coastal, KeyCoastal)
	getFlag(dto.Power, KeyPower)
	getFlag(dto.WaterService, KeyWaterService)
	getFlag(dto.RoadAccess, KeyRoadAccess)
	getFlag(dto.Highway, KeyHighway)
	getFlag(dto.Rail, KeyRail)
	getFlag(dto.Port, KeyPort)
	getFlag(dto.ManufacturingBase, KeyManufacturingBase)
	getFlag(dto.UrbanArea, KeyUrbanArea)
	getFlag(dto.IndustrialZone, KeyIndustrialZone)
	getFlag(dto.CommercialZone, KeyCommercialZone)
	getFlag(dto.ResidentialZone, KeyResidentialZone)
	getFlag(dto.AgriculturalZone, KeyAgriculturalZone)
	getFlag(dto.ZoningBuildable, KeyZoningBuildable)
	getFlag(dto.FloodRisk, KeyFloodRisk)
	getFlag(dto.ProtectedHabitat, KeyProtectedHabitat)
	getFlag(dto.LowElevation, KeyLowElevation)
	getFlag(dto.HighElevation, KeyHighElevation)

	getNum(dto.SlopePercent, KeySlopePercent)
	getNum(dto.ElevationFt, KeyElevationFt)
	getNum(dto.FloodScore, KeyFloodScore)
	getNum(dto.WaterDistanceFt, KeyWaterDistanceFt)
	getNum(dto.PowerDistanceFt, KeyPowerDistanceFt)
	getNum(dto.PopulationDensity, KeyPopulationDensity)

	if dto.ZoningClass != nil {
		r.strings[KeyZoningClass] = *dto.ZoningClass
	}

	for k, p := range dto.Provenance {
		r.provenance[k] = Provenance{
			Source:     p.Source,
			Confidence: p.Confidence,
			ObservedAt: p.ObservedAt,
		}
	}

	return r
}
