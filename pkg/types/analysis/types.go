// Package analysis defines the wire DTOs for the analysis pipeline: feature
// records, utilization results, mismatches, scans, and similarity queries.
// These shapes are shared by the HTTP handlers, the Go SDK, and the
// persistence sink.
//
// The AnalysisRecord layout is a compatibility contract: downstream training
// pipelines consume the sink topic, so field order and JSON key names must
// stay stable across versions. Add fields at the end; never rename or reorder.
package analysis

import (
	"time"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// Provenance tags one feature value with where it came from and how much to
// trust it.
type Provenance struct {
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// FeatureRecord is the fixed-schema feature mapping for one quantum. Every
// field is optional: absence is a valid, scoreable state. Provider data is
// heterogeneous and partially missing by nature, so nothing here is required.
//
// Boolean flags normalize to 1/0 during scoring; numeric fields clamp to
// their declared domain (see internal/domain/feature) and scale to [0,1].
type FeatureRecord struct {
	// Access and infrastructure flags.
	Coastal           *bool `json:"coastal,omitempty"`
	Power             *bool `json:"power,omitempty"`
	WaterService      *bool `json:"water_service,omitempty"`
	RoadAccess        *bool `json:"road_access,omitempty"`
	Highway           *bool `json:"highway,omitempty"`
	Rail              *bool `json:"rail,omitempty"`
	Port              *bool `json:"port,omitempty"`
	ManufacturingBase *bool `json:"manufacturing_base,omitempty"`
	UrbanArea         *bool `json:"urban_area,omitempty"`

	// Zoning flags.
	IndustrialZone   *bool `json:"industrial_zone,omitempty"`
	CommercialZone   *bool `json:"commercial_zone,omitempty"`
	ResidentialZone  *bool `json:"residential_zone,omitempty"`
	AgriculturalZone *bool `json:"agricultural_zone,omitempty"`
	ZoningBuildable  *bool `json:"zoning_buildable,omitempty"`

	// Hazard and terrain flags.
	FloodRisk        *bool `json:"flood_risk,omitempty"`
	ProtectedHabitat *bool `json:"protected_habitat,omitempty"`
	LowElevation     *bool `json:"low_elevation,omitempty"`
	HighElevation    *bool `json:"high_elevation,omitempty"`

	// Numeric terrain and proximity measurements.
	SlopePercent      *float64 `json:"slope_percent,omitempty"`
	ElevationFt       *float64 `json:"elevation_ft,omitempty"`
	FloodScore        *float64 `json:"flood_score,omitempty"`
	WaterDistanceFt   *float64 `json:"water_distance_ft,omitempty"`
	PowerDistanceFt   *float64 `json:"power_distance_ft,omitempty"`
	PopulationDensity *float64 `json:"population_density,omitempty"`

	// Categorical zoning class (industrial, commercial, residential,
	// agricultural, mixed, unzoned).
	ZoningClass *string `json:"zoning_class,omitempty"`

	// Provenance tags individual fields by feature key.
	Provenance map[string]Provenance `json:"provenance,omitempty"`
}

// TermKind classifies one entry of a score breakdown.
type TermKind string

const (
	TermBase         TermKind = "base"
	TermSynergy      TermKind = "synergy"
	TermAntiSynergy  TermKind = "anti_synergy"
	TermRequirement  TermKind = "requirement"
	TermDisqualifier TermKind = "disqualifier"
)

// BreakdownTerm is one contributing term of a utilization score: base terms
// first, then synergy terms, each group sorted by descending contribution
// magnitude.
type BreakdownTerm struct {
	Name         string   `json:"name"`
	Kind         TermKind `json:"kind"`
	Contribution float64  `json:"contribution"`
}

// UtilizationResult is the scoring output for one (quantum, profile) pair.
type UtilizationResult struct {
	QuantumID    string          `json:"quantum_id"`
	Profile      string          `json:"profile"`
	Score        float64         `json:"score"`
	RawTotal     float64         `json:"raw_total"`
	Disqualified bool            `json:"disqualified"`
	Breakdown    []BreakdownTerm `json:"breakdown"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// MismatchCategory enumerates the independent detection rules.
type MismatchCategory string

const (
	MismatchSlope             MismatchCategory = "slope"
	MismatchZoningOpportunity MismatchCategory = "zoning_opportunity"
	MismatchUtility           MismatchCategory = "utility"
	MismatchFloodTerrain      MismatchCategory = "flood_terrain"
)

// Evidence is one side of a detected disagreement.
type Evidence struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// Mismatch is a detected discrepancy between two independent evidence
// channels for the same quantum. Severity is normalized to [0,1] and is
// monotonic in the magnitude of the disagreement.
type Mismatch struct {
	QuantumID   string           `json:"quantum_id"`
	Category    MismatchCategory `json:"category"`
	Severity    float64          `json:"severity"`
	Left        Evidence         `json:"left"`
	Right       Evidence         `json:"right"`
	Explanation string           `json:"explanation"`
	DetectedAt  time.Time        `json:"detected_at"`
}

// AnalysisRecord is the persistence-sink record emitted once per completed
// analysis. Stable append-only format; see the package comment.
type AnalysisRecord struct {
	QuantumID  string            `json:"quantum_id"`
	Coordinate geo.Coordinate    `json:"location"`
	Features   FeatureRecord     `json:"features"`
	Result     UtilizationResult `json:"result"`
	Learned    *float64          `json:"learned_estimate,omitempty"`
	Mismatches []Mismatch        `json:"mismatches,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// ScanRequest starts a bulk scan over a region.
type ScanRequest struct {
	Region           geo.Region `json:"region"`
	ResolutionMeters int        `json:"resolution_meters,omitempty"`
	Profile          string     `json:"profile"`
	Priority         int        `json:"priority,omitempty"`
}

// ScanStatusCounts reports how many of a scan's jobs sit in each status.
type ScanStatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Scan describes a submitted bulk scan.
type Scan struct {
	ID               string           `json:"id"`
	Profile          string           `json:"profile"`
	ResolutionMeters int              `json:"resolution_meters"`
	QuantumCount     int              `json:"quantum_count"`
	Counts           ScanStatusCounts `json:"counts"`
	CreatedAt        time.Time        `json:"created_at"`
}

// FailedCoordinate is one permanently failed job: the coordinate it targeted
// and the last error observed before the retry budget ran out.
type FailedCoordinate struct {
	QuantumID  string         `json:"quantum_id,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Reason     string         `json:"reason"`
	Attempts   int            `json:"attempts"`
}

// ScanReport is the user-visible status of a bulk scan: counts plus the list
// of permanently failed coordinates with their last error reason.
type ScanReport struct {
	ScanID      string             `json:"scan_id"`
	Profile     string             `json:"profile"`
	Counts      ScanStatusCounts   `json:"counts"`
	Failed      []FailedCoordinate `json:"failed,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// ScoreRequest scores a submitted feature record against a profile without
// enqueueing anything.
type ScoreRequest struct {
	Features FeatureRecord `json:"features"`
	Profile  string        `json:"profile"`
}

// DetectRequest runs mismatch detection over a submitted observation.
type DetectRequest struct {
	QuantumID   string        `json:"quantum_id,omitempty"`
	Features    FeatureRecord `json:"features"`
	Profile     string        `json:"profile"`
	Learned     *float64      `json:"learned_estimate,omitempty"`
	MinSeverity float64       `json:"min_severity,omitempty"`
}

// SimilarityQuery finds the k indexed quanta most similar to a feature record.
type SimilarityQuery struct {
	Features FeatureRecord `json:"features"`
	K        int           `json:"k"`
}

// SimilarityMatch is one query hit, ordered by descending similarity with
// ties broken by quantum id ascending.
type SimilarityMatch struct {
	QuantumID  string  `json:"quantum_id"`
	Similarity float64 `json:"similarity"`
}

// ProfileSummary describes one registered use-case profile.
type ProfileSummary struct {
	Name         string  `json:"name"`
	Title        string  `json:"title,omitempty"`
	Description  string  `json:"description,omitempty"`
	WeightCount  int     `json:"weight_count"`
	SynergyCount int     `json:"synergy_count"`
	ScoreMin     float64 `json:"score_min"`
	ScoreMax     float64 `json:"score_max"`
}

// NeighborList is the response shape for quantum neighbor enumeration.
type NeighborList struct {
	QuantumID    string   `json:"quantum_id"`
	RadiusMeters float64  `json:"radius_meters"`
	Neighbors    []string `json:"neighbors"`
}
