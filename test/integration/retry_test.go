package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/worker"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// flakyProvider fails the first failures fetches per coordinate with a
// retryable provider error, then serves rec. failures < 0 means fail forever.
type flakyProvider struct {
	mu       sync.Mutex
	attempts map[string]int
	failures int
	rec      *feature.Record
}

func newFlakyProvider(failures int, rec *feature.Record) *flakyProvider {
	return &flakyProvider{attempts: make(map[string]int), failures: failures, rec: rec}
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) FetchFeatures(_ context.Context, coord geo.Coordinate) (*feature.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[coord.String()]++
	if p.failures < 0 || p.attempts[coord.String()] <= p.failures {
		return nil, errors.Provider(p.Name(), context.DeadlineExceeded)
	}
	return p.rec.Clone(), nil
}

func (p *flakyProvider) attemptsFor(coord geo.Coordinate) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[coord.String()]
}

func TestScanPipeline_RetriesTransientFailures(t *testing.T) {
	prov := newFlakyProvider(1, industrialRecord(t))
	st := newStack(t, prov)

	s, scanID := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, scanID, worker.Config{MaxRetries: 2})

	counts, err := st.queue.CountByStatus(context.Background(), scanID)
	require.NoError(t, err)
	assert.Equal(t, s.QuantumCount, counts[job.StatusDone])
	assert.Zero(t, counts[job.StatusFailed])

	// Each quantum failed once and succeeded on the retry.
	for _, rec := range st.sink.all() {
		assert.Equal(t, 2, prov.attemptsFor(rec.Coordinate))
	}

	report, err := st.svc.Status(context.Background(), scanID)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
}

func TestScanPipeline_RetryBudgetExhaustedFailsPermanently(t *testing.T) {
	prov := newFlakyProvider(-1, nil)
	st := newStack(t, prov)

	s, scanID := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, scanID, worker.Config{MaxRetries: 1})

	counts, err := st.queue.CountByStatus(context.Background(), scanID)
	require.NoError(t, err)
	assert.Zero(t, counts[job.StatusDone])
	assert.Equal(t, s.QuantumCount, counts[job.StatusFailed])

	// Nothing reached the sink, the store, or the index.
	assert.Empty(t, st.sink.all())
	assert.Zero(t, st.results.len())

	report, err := st.svc.Status(context.Background(), scanID)
	require.NoError(t, err)
	require.Len(t, report.Failed, s.QuantumCount)
	for _, fc := range report.Failed {
		assert.Equal(t, 2, fc.Attempts, "one initial attempt plus one retry")
		assert.Contains(t, fc.Reason, "provider flaky failed")
		assert.NotEmpty(t, fc.QuantumID)
	}
}

func TestScanPipeline_FailedScanLeavesOthersUntouched(t *testing.T) {
	prov := newFlakyProvider(-1, nil)
	st := newStack(t, prov)

	_, failedID := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, failedID, worker.Config{MaxRetries: 1})

	// A later scan against a recovered provider drains clean even though the
	// failed scan's jobs are still in the queue's history.
	prov.mu.Lock()
	prov.failures = 0
	prov.rec = industrialRecord(t)
	prov.attempts = make(map[string]int)
	prov.mu.Unlock()

	s2, okID := startScan(t, st, scoring.ProfileGeneral)
	drainScan(t, st, okID, worker.Config{MaxRetries: 1})

	okCounts, err := st.queue.CountByStatus(context.Background(), okID)
	require.NoError(t, err)
	assert.Equal(t, s2.QuantumCount, okCounts[job.StatusDone])

	failedCounts, err := st.queue.CountByStatus(context.Background(), failedID)
	require.NoError(t, err)
	assert.Equal(t, s2.QuantumCount, failedCounts[job.StatusFailed])
}
