package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/worker"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/providers"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// Re-scanning a region after the ground truth changes must supersede every
// stored record wholesale: same quantum ids, new features, new scores.
func TestRescan_SupersedesStoredRecords(t *testing.T) {
	ctx := context.Background()

	// First pass: bare land with road access only.
	bare := feature.NewRecord()
	bare.SetFlag(feature.KeyRoadAccess, true)
	prov := providers.NewStatic("fixture", nil, bare)
	st := newStack(t, prov)

	s1, scan1 := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, scan1, worker.Config{})

	before := make(map[string]*atypes.AnalysisRecord, s1.QuantumCount)
	for _, rec := range st.sink.all() {
		stored, err := st.results.Get(ctx, rec.QuantumID, scoring.ProfileGeneral)
		require.NoError(t, err)
		before[rec.QuantumID] = stored
	}
	require.Len(t, before, s1.QuantumCount)

	// The land gets serviced: utilities and industrial zoning arrive.
	quanta, err := st.grid.EnumerateRegion(testRegion())
	require.NoError(t, err)
	for _, q := range quanta {
		prov.Put(q.Center(), industrialRecord(t))
	}

	_, scan2 := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, scan2, worker.Config{})

	// Still one record per (quantum, profile): replaced, not duplicated.
	assert.Equal(t, s1.QuantumCount, st.results.len())

	for id, old := range before {
		current, err := st.results.Get(ctx, id, scoring.ProfileGeneral)
		require.NoError(t, err)

		assert.Greater(t, current.Result.Score, old.Result.Score,
			"quantum %s should score higher once serviced", id)
		assert.False(t, current.RecordedAt.Before(old.RecordedAt))

		require.NotNil(t, current.Features.IndustrialZone)
		assert.True(t, *current.Features.IndustrialZone)

		latest, err := st.results.Latest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, current.Result.Score, latest.Result.Score)
	}
}
