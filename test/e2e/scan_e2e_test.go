package e2e_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
)

func TestScanLifecycle(t *testing.T) {
	ctx := context.Background()

	s := startDrainedScan(t, scoring.ProfileGeneral)
	assert.Equal(t, envResolutionMeters, s.ResolutionMeters)
	assert.Equal(t, s.QuantumCount, s.Counts.Done)
	assert.Zero(t, s.Counts.Failed)

	report, err := env.sdk.Scans().Report(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, report.ScanID)
	assert.Equal(t, scoring.ProfileGeneral, report.Profile)
	assert.Equal(t, s.QuantumCount, report.Counts.Done)
	assert.Empty(t, report.Failed)

	scans, err := env.sdk.Scans().List(ctx, 50)
	require.NoError(t, err)
	found := false
	for _, item := range scans {
		if item.ID == s.ID {
			found = true
			break
		}
	}
	assert.True(t, found, "scan %s missing from listing", s.ID)
}

func TestScanReportArchival(t *testing.T) {
	ctx := context.Background()

	s := startDrainedScan(t, scoring.ProfileWarehouse)

	res, err := env.sdk.Scans().Archive(ctx, s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, res.ObjectKey)

	stored, ok := env.archive.get(res.ObjectKey)
	require.True(t, ok, "archived report not stored under %s", res.ObjectKey)
	assert.Equal(t, s.ID, stored.ScanID)
	assert.Equal(t, s.QuantumCount, stored.Counts.Done)
}

func TestScanRejectsUnknownProfile(t *testing.T) {
	_, err := env.sdk.Scans().Start(context.Background(), scanRequest("no_such_profile"))
	require.Error(t, err)
}

func TestScanRejectsResolutionMismatch(t *testing.T) {
	req := scanRequest(scoring.ProfileGeneral)
	req.ResolutionMeters = envResolutionMeters * 2

	_, err := env.sdk.Scans().Start(context.Background(), req)
	require.Error(t, err)
}
