package client

import (
	"context"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// AnalysisClient runs ad-hoc scoring and mismatch detection on submitted
// feature records, without touching the grid or the queue.
type AnalysisClient struct {
	client *Client
}

// MismatchReport is the detection response: the rule-based score the
// detector compared against, and the mismatches that cleared the severity
// floor, ordered severity descending.
type MismatchReport struct {
	RuleScore  float64             `json:"rule_score"`
	Mismatches []analysis.Mismatch `json:"mismatches"`
}

// Score rates a feature record against a named profile.
func (a *AnalysisClient) Score(ctx context.Context, req analysis.ScoreRequest) (*analysis.UtilizationResult, error) {
	var result analysis.UtilizationResult
	if err := a.client.post(ctx, "/api/v1/analysis/score", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DetectMismatches runs the rule set over a submitted observation. The
// server scores the record first so the utility rule has a rule-based score
// to compare against the learned estimate, when one is supplied.
func (a *AnalysisClient) DetectMismatches(ctx context.Context, req analysis.DetectRequest) (*MismatchReport, error) {
	var report MismatchReport
	if err := a.client.post(ctx, "/api/v1/analysis/mismatches", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Profiles lists the registered use-case profiles, sorted by name.
func (a *AnalysisClient) Profiles(ctx context.Context) ([]analysis.ProfileSummary, error) {
	var envelope struct {
		Profiles []analysis.ProfileSummary `json:"profiles"`
	}
	if err := a.client.get(ctx, "/api/v1/profiles", &envelope); err != nil {
		return nil, err
	}
	return envelope.Profiles, nil
}
