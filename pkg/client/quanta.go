package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// QuantaClient reads analyzed grid cells and queries the similarity index.
type QuantaClient struct {
	client *Client
}

// Get fetches the most recent analysis record for a quantum, across all
// profiles.
func (q *QuantaClient) Get(ctx context.Context, quantumID string) (*analysis.AnalysisRecord, error) {
	return q.fetch(ctx, quantumID, "")
}

// GetForProfile fetches the quantum's latest record under one profile.
func (q *QuantaClient) GetForProfile(ctx context.Context, quantumID, profile string) (*analysis.AnalysisRecord, error) {
	return q.fetch(ctx, quantumID, profile)
}

func (q *QuantaClient) fetch(ctx context.Context, quantumID, profile string) (*analysis.AnalysisRecord, error) {
	path := "/api/v1/quanta/" + url.PathEscape(quantumID)
	if profile != "" {
		path += "?profile=" + url.QueryEscape(profile)
	}
	var record analysis.AnalysisRecord
	if err := q.client.get(ctx, path, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Neighbors enumerates the quanta within radiusMeters of the given cell. A
// non-positive radius uses the server default of one grid cell.
func (q *QuantaClient) Neighbors(ctx context.Context, quantumID string, radiusMeters float64) (*analysis.NeighborList, error) {
	path := "/api/v1/quanta/" + url.PathEscape(quantumID) + "/neighbors"
	if radiusMeters > 0 {
		path += "?radius_meters=" + strconv.FormatFloat(radiusMeters, 'f', -1, 64)
	}
	var list analysis.NeighborList
	if err := q.client.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Similar returns the k indexed quanta most similar to the submitted feature
// record, descending by similarity.
func (q *QuantaClient) Similar(ctx context.Context, query analysis.SimilarityQuery) ([]analysis.SimilarityMatch, error) {
	var envelope struct {
		Matches []analysis.SimilarityMatch `json:"matches"`
	}
	if err := q.client.post(ctx, "/api/v1/similarity/query", query, &envelope); err != nil {
		return nil, err
	}
	return envelope.Matches, nil
}
