package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

func TestQuantaClient_Get(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/quanta/r250_10_10", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(analysis.AnalysisRecord{
			QuantumID: "r250_10_10",
			Result:    analysis.UtilizationResult{Profile: "general", Score: 7.25},
		})
	}))

	record, err := c.Quanta().Get(context.Background(), "r250_10_10")
	require.NoError(t, err)
	assert.Equal(t, "r250_10_10", record.QuantumID)
	assert.InDelta(t, 7.25, record.Result.Score, 1e-9)
}

func TestQuantaClient_GetForProfile(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quanta/r250_10_10", r.URL.Path)
		assert.Equal(t, "solar_farm", r.URL.Query().Get("profile"))
		_ = json.NewEncoder(w).Encode(analysis.AnalysisRecord{
			QuantumID: "r250_10_10",
			Result:    analysis.UtilizationResult{Profile: "solar_farm"},
		})
	}))

	record, err := c.Quanta().GetForProfile(context.Background(), "r250_10_10", "solar_farm")
	require.NoError(t, err)
	assert.Equal(t, "solar_farm", record.Result.Profile)
}

func TestQuantaClient_Neighbors(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quanta/r250_10_10/neighbors", r.URL.Path)
		assert.Equal(t, "600", r.URL.Query().Get("radius_meters"))
		_ = json.NewEncoder(w).Encode(analysis.NeighborList{
			QuantumID:    "r250_10_10",
			RadiusMeters: 600,
			Neighbors:    []string{"r250_9_9", "r250_9_10"},
		})
	}))

	neighbors, err := c.Quanta().Neighbors(context.Background(), "r250_10_10", 600)
	require.NoError(t, err)
	assert.Equal(t, "r250_10_10", neighbors.QuantumID)
	assert.Len(t, neighbors.Neighbors, 2)
}

func TestQuantaClient_NeighborsDefaultRadius(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery, "a non-positive radius leaves the server default in charge")
		_ = json.NewEncoder(w).Encode(analysis.NeighborList{QuantumID: "r250_10_10"})
	}))

	_, err := c.Quanta().Neighbors(context.Background(), "r250_10_10", 0)
	require.NoError(t, err)
}

func TestQuantaClient_Similar(t *testing.T) {
	var gotReq analysis.SimilarityQuery
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/similarity/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []analysis.SimilarityMatch{
				{QuantumID: "r250_10_10", Similarity: 0.91},
				{QuantumID: "r250_11_10", Similarity: 0.44},
			},
		})
	}))

	industrial := true
	matches, err := c.Quanta().Similar(context.Background(), analysis.SimilarityQuery{
		Features: analysis.FeatureRecord{IndustrialZone: &industrial},
		K:        2,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "r250_10_10", matches[0].QuantumID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.Equal(t, 2, gotReq.K)
}
