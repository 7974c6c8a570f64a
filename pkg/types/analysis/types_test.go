package analysis_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

// TestAnalysisRecord_StableKeys pins the sink record's JSON key names.
// Downstream training pipelines parse these keys; renaming any of them is a
// breaking change.
func TestAnalysisRecord_StableKeys(t *testing.T) {
	t.Parallel()

	rec := analysis.AnalysisRecord{
		QuantumID:  "r50_812_-331",
		Coordinate: geo.Coordinate{Lat: 36.7, Lon: -119.8},
		Features: analysis.FeatureRecord{
			Coastal:      boolPtr(true),
			SlopePercent: floatPtr(12.5),
		},
		Result: analysis.UtilizationResult{
			QuantumID: "r50_812_-331",
			Profile:   "desalination_plant",
			Score:     8.2,
			RawTotal:  14.0,
			Breakdown: []analysis.BreakdownTerm{
				{Name: "coastal", Kind: analysis.TermBase, Contribution: 4.0},
			},
			ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Mismatches: []analysis.Mismatch{
			{
				QuantumID: "r50_812_-331",
				Category:  analysis.MismatchSlope,
				Severity:  0.85,
				Left:      analysis.Evidence{Source: "zoning", Value: "buildable"},
				Right:     analysis.Evidence{Source: "lidar", Value: "slope=42.0%"},
			},
		},
		RecordedAt: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{"quantum_id", "location", "features", "result", "mismatches", "recorded_at"} {
		assert.Contains(t, decoded, key)
	}

	var features map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded["features"], &features))
	assert.Contains(t, features, "coastal")
	assert.Contains(t, features, "slope_percent")
	assert.NotContains(t, features, "power", "absent optional fields must be omitted")

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded["result"], &result))
	for _, key := range []string{"quantum_id", "profile", "score", "raw_total", "disqualified", "breakdown", "computed_at"} {
		assert.Contains(t, result, key)
	}
}

func TestFeatureRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	orig := analysis.FeatureRecord{
		Coastal:         boolPtr(true),
		Power:           boolPtr(true),
		IndustrialZone:  boolPtr(false),
		SlopePercent:    floatPtr(45),
		ElevationFt:     floatPtr(22),
		ZoningClass:     strPtr("industrial"),
		ZoningBuildable: boolPtr(true),
		Provenance: map[string]analysis.Provenance{
			"slope_percent": {Source: "lidar", Confidence: 0.95},
		},
	}

	raw, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded analysis.FeatureRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, orig, decoded)
}

func strPtr(s string) *string { return &s }

func TestScanRequest_JSONShape(t *testing.T) {
	t.Parallel()

	center := geo.Coordinate{Lat: 36.5, Lon: -119.8}
	req := analysis.ScanRequest{
		Region:           geo.Region{Center: &center, RadiusMeters: 5000},
		ResolutionMeters: 50,
		Profile:          "warehouse_distribution",
		Priority:         10,
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"radius_meters":5000`)
	assert.Contains(t, string(raw), `"profile":"warehouse_distribution"`)
}
