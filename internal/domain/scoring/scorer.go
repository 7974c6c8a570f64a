package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// Default scorer parameters.  Base sits at the middle of the 0-10 scale;
// Gain shapes the logarithmic compression of positive raw totals; LossGain
// dampens negative raw totals linearly.
const (
	DefaultBase               = 5.0
	DefaultGain               = 2.5
	DefaultLossGain           = 0.8
	DefaultMinScore           = 0.0
	DefaultMaxScore           = 10.0
	DefaultRequirementPenalty = 3.0
)

// Params tunes the scorer.  Zero-valued fields are replaced by the defaults
// in NewScorer.
type Params struct {
	Base               float64
	Gain               float64
	LossGain           float64
	MinScore           float64
	MaxScore           float64
	RequirementPenalty float64
}

func (p Params) withDefaults() Params {
	if p.Base == 0 {
		p.Base = DefaultBase
	}
	if p.Gain == 0 {
		p.Gain = DefaultGain
	}
	if p.LossGain == 0 {
		p.LossGain = DefaultLossGain
	}
	if p.MaxScore == 0 {
		p.MaxScore = DefaultMaxScore
	}
	if p.RequirementPenalty == 0 {
		p.RequirementPenalty = DefaultRequirementPenalty
	}
	return p
}

// TermKind classifies one breakdown entry.  Values mirror the wire contract
// in pkg/types/analysis.
type TermKind string

const (
	TermBase         TermKind = TermKind(analysis.TermBase)
	TermSynergy      TermKind = TermKind(analysis.TermSynergy)
	TermAntiSynergy  TermKind = TermKind(analysis.TermAntiSynergy)
	TermRequirement  TermKind = TermKind(analysis.TermRequirement)
	TermDisqualifier TermKind = TermKind(analysis.TermDisqualifier)
)

// Term is one contribution of a score breakdown.
type Term struct {
	Name         string
	Kind         TermKind
	Contribution float64
}

// Result is the outcome of scoring one feature record against one profile.
// RawTotal is the sum of all term contributions before the diminishing
// transform; Score is the final bounded value.
type Result struct {
	Profile      string
	Score        float64
	RawTotal     float64
	Disqualified bool
	Breakdown    []Term
	ComputedAt   time.Time
}

// ToDTO converts the result to its wire representation for quantumID.
func (r *Result) ToDTO(quantumID string) analysis.UtilizationResult {
	terms := make([]analysis.BreakdownTerm, len(r.Breakdown))
	for i, t := range r.Breakdown {
		terms[i] = analysis.BreakdownTerm{
			Name:         t.Name,
			Kind:         analysis.TermKind(t.Kind),
			Contribution: t.Contribution,
		}
	}
	return analysis.UtilizationResult{
		QuantumID:    quantumID,
		Profile:      r.Profile,
		Score:        r.Score,
		RawTotal:     r.RawTotal,
		Disqualified: r.Disqualified,
		Breakdown:    terms,
		ComputedAt:   r.ComputedAt,
	}
}

// Scorer computes utilization scores.  It is stateless apart from its
// parameters and safe for concurrent use.
type Scorer struct {
	params Params
}

// NewScorer constructs a Scorer, filling unset parameters with defaults.
func NewScorer(params Params) *Scorer {
	return &Scorer{params: params.withDefaults()}
}

// Params returns the effective scorer parameters.
func (s *Scorer) Params() Params {
	return s.params
}

// Score evaluates rec against profile:
//
//  1. Any truthy disqualifier short-circuits to the minimum score.
//  2. Each missing requirement subtracts the requirement penalty.
//  3. Each weighted feature contributes weight (boolean flags) or
//     weight × min(1, value/domain) (numeric values).
//  4. Each synergy or anti-synergy whose features are all truthy adds its
//     bonus; rules are independent and all eligible rules fire.
//  5. The raw total (sum of every contribution) passes through the
//     diminishing-returns transform and is clamped to [MinScore, MaxScore].
//
// Absent features contribute zero; absence is a valid, scoreable state, so
// a nil or empty record scores the base value.
func (s *Scorer) Score(rec *feature.Record, profile *Profile) (*Result, error) {
	if profile == nil {
		return nil, errors.New(errors.ErrCodeProfileUnknown, "scoring profile must not be nil")
	}
	if rec == nil {
		rec = feature.NewRecord()
	}

	now := time.Now().UTC()

	for _, disq := range profile.Disqualifiers {
		if rec.Truthy(disq) {
			return &Result{
				Profile:      profile.Name,
				Score:        s.params.MinScore,
				RawTotal:     0,
				Disqualified: true,
				Breakdown: []Term{
					{Name: disq, Kind: TermDisqualifier, Contribution: 0},
				},
				ComputedAt: now,
			}, nil
		}
	}

	var baseTerms, synergyTerms, antiTerms, requirementTerms []Term
	raw := 0.0

	for _, req := range profile.Requirements {
		if !rec.Truthy(req) {
			c := -s.params.RequirementPenalty
			requirementTerms = append(requirementTerms, Term{
				Name: req, Kind: TermRequirement, Contribution: c,
			})
			raw += c
		}
	}

	for key, weight := range profile.Weights {
		c := s.weightContribution(rec, profile, key, weight)
		if c == 0 {
			continue
		}
		baseTerms = append(baseTerms, Term{Name: key, Kind: TermBase, Contribution: c})
		raw += c
	}

	for _, syn := range profile.Synergies {
		if !allTruthy(rec, syn.Features) {
			continue
		}
		synergyTerms = append(synergyTerms, Term{
			Name: syn.Name(), Kind: TermSynergy, Contribution: syn.Bonus,
		})
		raw += syn.Bonus
	}

	for _, anti := range profile.AntiSynergies {
		if !allTruthy(rec, anti.Features) {
			continue
		}
		antiTerms = append(antiTerms, Term{
			Name: anti.Name(), Kind: TermAntiSynergy, Contribution: anti.Bonus,
		})
		raw += anti.Bonus
	}

	score := s.diminish(raw)
	if score < s.params.MinScore {
		score = s.params.MinScore
	}
	if score > s.params.MaxScore {
		score = s.params.MaxScore
	}

	sortTerms(baseTerms)
	sortTerms(synergyTerms)
	sortTerms(antiTerms)
	sortTerms(requirementTerms)

	breakdown := make([]Term, 0, len(baseTerms)+len(synergyTerms)+len(antiTerms)+len(requirementTerms))
	breakdown = append(breakdown, baseTerms...)
	breakdown = append(breakdown, synergyTerms...)
	breakdown = append(breakdown, antiTerms...)
	breakdown = append(breakdown, requirementTerms...)

	return &Result{
		Profile:    profile.Name,
		Score:      score,
		RawTotal:   raw,
		Breakdown:  breakdown,
		ComputedAt: now,
	}, nil
}

// weightContribution computes the contribution of one weighted feature:
// boolean flags contribute the full weight when true; numeric values scale
// the weight by value/domain clamped to [0, 1]; string values carry no
// weight (they still participate in truthiness for synergies and
// requirements).
func (s *Scorer) weightContribution(rec *feature.Record, profile *Profile, key string, weight float64) float64 {
	if v, ok := rec.Flag(key); ok {
		if v {
			return weight
		}
		return 0
	}
	if v, ok := rec.Number(key); ok {
		n := v / profile.domainFor(key)
		if n > 1 {
			n = 1
		}
		if n < 0 {
			n = 0
		}
		return weight * n
	}
	return 0
}

// diminish compresses the raw total so stacking positive evidence yields
// strictly smaller marginal gains, while negative totals shrink linearly.
func (s *Scorer) diminish(raw float64) float64 {
	if raw > 0 {
		return s.params.Base + math.Log1p(raw)*s.params.Gain
	}
	return s.params.Base + raw*s.params.LossGain
}

func allTruthy(rec *feature.Record, keys []string) bool {
	for _, k := range keys {
		if !rec.Truthy(k) {
			return false
		}
	}
	return true
}

// sortTerms orders by descending contribution magnitude, ties by name.
func sortTerms(terms []Term) {
	sort.Slice(terms, func(i, j int) bool {
		mi, mj := math.Abs(terms[i].Contribution), math.Abs(terms[j].Contribution)
		if mi != mj {
			return mi > mj
		}
		return terms[i].Name < terms[j].Name
	})
}
