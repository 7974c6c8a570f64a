// Package mismatch implements the cross-source disagreement engine for the
// LandQuant-Intelligence platform.  Each land quantum is observed through
// several independent evidence channels (zoning data, measured terrain, flood
// classification, the rule-based utilization score, and the learned-model
// estimate); this package detects structural conflicts between those channels
// and classifies them into severity-ranked mismatch results.
//
// Detection rules are pure functions registered per category: no rule reads
// another rule's output, so categories can be added or removed without
// touching a dispatcher. A rule that is missing one of its inputs is skipped
// for that quantum rather than failing the scan.
package mismatch

import (
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// Category identifies one detection rule. Values mirror the wire contract in
// pkg/types/analysis.
type Category string

const (
	CategorySlope             Category = Category(analysis.MismatchSlope)
	CategoryZoningOpportunity Category = Category(analysis.MismatchZoningOpportunity)
	CategoryUtility           Category = Category(analysis.MismatchUtility)
	CategoryFloodTerrain      Category = Category(analysis.MismatchFloodTerrain)
)

// Evidence names one side of a disagreement: the channel it came from and a
// human-readable rendering of its value.
type Evidence struct {
	Source string
	Value  string
}

// Mismatch is one detected discrepancy. Severity is normalized to [0,1] and
// monotonic in the magnitude of the disagreement. Results are read-only once
// emitted by the detector.
type Mismatch struct {
	QuantumID   string
	Category    Category
	Severity    float64
	Left        Evidence
	Right       Evidence
	Explanation string
	DetectedAt  time.Time
}

// ToDTO converts the mismatch to its wire representation.
func (m Mismatch) ToDTO() analysis.Mismatch {
	return analysis.Mismatch{
		QuantumID:   m.QuantumID,
		Category:    analysis.MismatchCategory(m.Category),
		Severity:    m.Severity,
		Left:        analysis.Evidence(m.Left),
		Right:       analysis.Evidence(m.Right),
		Explanation: m.Explanation,
		DetectedAt:  m.DetectedAt,
	}
}

// Observation bundles everything the rules may inspect for one quantum.
// RuleScore and Learned are optional; rules that need an absent input skip
// the quantum.
type Observation struct {
	QuantumID string
	Features  *feature.Record
	RuleScore *float64
	Learned   *float64
}
