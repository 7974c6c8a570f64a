package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// AnalysisHandler serves ad-hoc scoring and mismatch detection: the caller
// supplies the feature record, nothing is fetched, queued, or persisted.
type AnalysisHandler struct {
	profiles *scoring.Registry
	scorer   *scoring.Scorer
	detector *mismatch.Detector
}

// NewAnalysisHandler wires the pure domain components into HTTP.
func NewAnalysisHandler(profiles *scoring.Registry, scorer *scoring.Scorer, detector *mismatch.Detector) *AnalysisHandler {
	return &AnalysisHandler{profiles: profiles, scorer: scorer, detector: detector}
}

// Score answers POST /api/v1/analysis/score: the submitted feature record
// scored against the named profile, with the full term breakdown.
func (h *AnalysisHandler) Score(c *gin.Context) {
	var req analysis.ScoreRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.profiles.Get(req.Profile)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.scorer.Score(feature.RecordFromDTO(req.Features), profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.ToDTO(""))
}

// DetectResponse is the body of POST /api/v1/analysis/mismatches.
type DetectResponse struct {
	RuleScore  float64             `json:"rule_score"`
	Mismatches []analysis.Mismatch `json:"mismatches"`
}

// DetectMismatches answers POST /api/v1/analysis/mismatches. The record is
// scored first so the utility rule has a rule-based score to compare the
// learned estimate against; findings below min_severity are dropped.
func (h *AnalysisHandler) DetectMismatches(c *gin.Context) {
	var req analysis.DetectRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.profiles.Get(req.Profile)
	if err != nil {
		respondError(c, err)
		return
	}

	rec := feature.RecordFromDTO(req.Features)
	res, err := h.scorer.Score(rec, profile)
	if err != nil {
		respondError(c, err)
		return
	}

	obs := mismatch.Observation{
		QuantumID: req.QuantumID,
		Features:  rec,
		RuleScore: &res.Score,
		Learned:   req.Learned,
	}
	findings := h.detector.ScanRegion([]mismatch.Observation{obs}, req.MinSeverity)

	out := make([]analysis.Mismatch, len(findings))
	for i, f := range findings {
		out[i] = f.ToDTO()
	}
	c.JSON(http.StatusOK, DetectResponse{RuleScore: res.Score, Mismatches: out})
}
