package e2e_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

func TestQuantumLookup(t *testing.T) {
	ctx := context.Background()

	startDrainedScan(t, scoring.ProfileGeneral)

	quanta, err := env.grid.EnumerateRegion(testRegion())
	require.NoError(t, err)
	require.NotEmpty(t, quanta)
	target := quanta[0]

	rec, err := env.sdk.Quanta().Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, rec.QuantumID)
	assert.InDelta(t, target.Center().Lat, rec.Coordinate.Lat, 1e-9)
	assert.InDelta(t, target.Center().Lon, rec.Coordinate.Lon, 1e-9)
	require.NotNil(t, rec.Features.IndustrialZone)
	assert.True(t, *rec.Features.IndustrialZone)
	assert.Greater(t, rec.Result.Score, 0.0)

	byProfile, err := env.sdk.Quanta().GetForProfile(ctx, target.ID, scoring.ProfileGeneral)
	require.NoError(t, err)
	assert.Equal(t, rec.Result.Score, byProfile.Result.Score)
}

func TestQuantumLookup_UnknownID(t *testing.T) {
	_, err := env.sdk.Quanta().Get(context.Background(), "not-a-quantum-id")
	require.Error(t, err)
}

func TestQuantumNeighbors(t *testing.T) {
	quanta, err := env.grid.EnumerateRegion(testRegion())
	require.NoError(t, err)
	require.NotEmpty(t, quanta)
	target := quanta[0]

	list, err := env.sdk.Quanta().Neighbors(context.Background(), target.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, target.ID, list.QuantumID)
	assert.NotEmpty(t, list.Neighbors)
	assert.NotContains(t, list.Neighbors, target.ID)
}

func TestSimilarityQuery(t *testing.T) {
	ctx := context.Background()

	startDrainedScan(t, scoring.ProfileGeneral)

	matches, err := env.sdk.Quanta().Similar(ctx, atypes.SimilarityQuery{
		Features: servicedLandFeatures(),
		K:        5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), 5)

	// Every indexed quantum carries the fixture record, so the top match is
	// exact and the ordering is non-increasing.
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
}
