//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

func makeRecord(quantumID, profile string, score float64, disqualified bool, recordedAt time.Time) *analysis.AnalysisRecord {
	coastal := true
	return &analysis.AnalysisRecord{
		QuantumID:  quantumID,
		Coordinate: geo.Coordinate{Lat: 33.7, Lon: -118.2},
		Features:   analysis.FeatureRecord{Coastal: &coastal},
		Result: analysis.UtilizationResult{
			QuantumID:    quantumID,
			Profile:      profile,
			Score:        score,
			RawTotal:     score,
			Disqualified: disqualified,
			ComputedAt:   recordedAt,
		},
		RecordedAt: recordedAt,
	}
}

func TestResultRepository_SaveReplaces(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewResultRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	first := makeRecord("r100_5_7", "solar_farm", 55, false, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, repo.Save(ctx, first))

	second := makeRecord("r100_5_7", "solar_farm", 72, false, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, "r100_5_7", "solar_farm")
	require.NoError(t, err)
	assert.InDelta(t, 72, got.Result.Score, 1e-9)
	require.NotNil(t, got.Features.Coastal)
	assert.True(t, *got.Features.Coastal)

	// Replacement, not accumulation: one row per (quantum, profile).
	var n int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM analysis_results WHERE quantum_id = $1`, "r100_5_7").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestResultRepository_GetMissing(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewResultRepository(pool, logging.NewNopLogger())

	_, err := repo.Get(context.Background(), "r100_0_0", "solar_farm")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQuantumNotFound, errors.GetCode(err))

	_, err = repo.Latest(context.Background(), "r100_0_0")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQuantumNotFound, errors.GetCode(err))
}

func TestResultRepository_LatestAcrossProfiles(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewResultRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	earlier := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, makeRecord("r100_2_3", "solar_farm", 60, false, earlier)))
	require.NoError(t, repo.Save(ctx, makeRecord("r100_2_3", "warehouse", 44, false, earlier.Add(time.Minute))))

	latest, err := repo.Latest(ctx, "r100_2_3")
	require.NoError(t, err)
	assert.Equal(t, "warehouse", latest.Result.Profile)
}

func TestResultRepository_TopByScore(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewResultRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, makeRecord("r100_1_1", "solar_farm", 80, false, now)))
	require.NoError(t, repo.Save(ctx, makeRecord("r100_1_2", "solar_farm", 60, true, now)))
	require.NoError(t, repo.Save(ctx, makeRecord("r100_1_3", "solar_farm", 70, false, now)))
	require.NoError(t, repo.Save(ctx, makeRecord("r100_1_4", "warehouse", 99, false, now)))

	top, err := repo.TopByScore(ctx, "solar_farm", 10)
	require.NoError(t, err)
	require.Len(t, top, 2, "disqualified and foreign-profile records are excluded")
	assert.Equal(t, "r100_1_1", top[0].QuantumID)
	assert.Equal(t, "r100_1_3", top[1].QuantumID)
}

func TestResultRepository_SaveValidation(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewResultRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	err := repo.Save(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))

	missingProfile := makeRecord("r100_9_9", "", 10, false, time.Now().UTC())
	err = repo.Save(ctx, missingProfile)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))
}
