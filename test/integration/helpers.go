// Package integration exercises the scan pipeline end to end in a single
// process: region enumeration, the job queue, the worker pool, scoring,
// mismatch detection, and the similarity index wired together over in-memory
// infrastructure. Nothing here touches the network or a real database.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	appanalysis "github.com/turtacn/LandQuant-Intelligence/internal/application/analysis"
	"github.com/turtacn/LandQuant-Intelligence/internal/application/scan"
	"github.com/turtacn/LandQuant-Intelligence/internal/application/worker"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/queue/memory"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

const testResolutionMeters = 100

// testRegion covers roughly a 3×3 patch of 100 m quanta near central
// Phoenix. Small enough to drain in milliseconds, large enough that
// priority, fan-out, and per-quantum records all matter.
func testRegion() geo.Region {
	return geo.Region{Box: &geo.BoundingBox{
		MinLat: 33.4500,
		MinLon: -112.0750,
		MaxLat: 33.4525,
		MaxLon: -112.0720,
	}}
}

// stack is the full in-process deployment: domain engines, in-memory
// infrastructure, the analysis pipeline, and the scan service on top.
type stack struct {
	grid     *grid.Grid
	profiles *scoring.Registry
	queue    *memory.Queue
	scans    *memory.ScanStore
	results  *resultStore
	index    *similarity.MemoryIndex
	sink     *collectSink
	pipeline *appanalysis.Pipeline
	svc      scan.Service
}

// newStack wires the pipeline and scan service over prov. All stores are
// fresh, so tests never observe each other's state.
func newStack(t *testing.T, prov provider.FeatureProvider) *stack {
	t.Helper()

	g, err := grid.NewGrid(testResolutionMeters)
	require.NoError(t, err)

	st := &stack{
		grid:     g,
		profiles: scoring.NewRegistry(),
		queue:    memory.NewQueue(),
		scans:    memory.NewScanStore(),
		results:  newResultStore(),
		index:    similarity.NewMemoryIndex(),
		sink:     &collectSink{},
	}

	st.pipeline, err = appanalysis.NewPipeline(appanalysis.Deps{
		Grid:     g,
		Profiles: st.profiles,
		Scorer:   scoring.NewScorer(scoring.Params{}),
		Detector: mismatch.NewDetector(mismatch.Params{}),
		Provider: prov,
		Index:    st.index,
		Results:  st.results,
		Sink:     st.sink,
	})
	require.NoError(t, err)

	st.svc, err = scan.NewService(scan.Deps{
		Grid:     g,
		Profiles: st.profiles,
		Queue:    st.queue,
		Scans:    st.scans,
	})
	require.NoError(t, err)

	return st
}

// startScan submits a scan and requires acceptance with at least one quantum.
func startScan(t *testing.T, st *stack, profile string) (*atypes.Scan, uuid.UUID) {
	t.Helper()
	s, err := st.svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: profile,
	})
	require.NoError(t, err)
	require.Greater(t, s.QuantumCount, 0)
	scanID, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	return s, scanID
}

// drainScan runs a worker pool until every job of scanID has settled, then
// stops the pool and waits for it to return.
func drainScan(t *testing.T, st *stack, scanID uuid.UUID, cfg worker.Config) {
	t.Helper()

	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 4 * time.Millisecond
	}

	pool, err := worker.NewPool(cfg, st.queue, st.pipeline, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	go func() {
		defer stop()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				counts, err := st.queue.CountByStatus(runCtx, scanID)
				if err != nil {
					return
				}
				if counts[job.StatusPending]+counts[job.StatusInProgress] == 0 {
					return
				}
			}
		}
	}()

	require.NoError(t, pool.Run(runCtx))
	require.NoError(t, ctx.Err(), "scan %s did not drain in time", scanID)
}

// ---------------------------------------------------------------------------
// In-memory result store
// ---------------------------------------------------------------------------

// resultStore implements the pipeline's ResultStore and the HTTP layer's
// ResultReader over a map, mirroring the postgres repository's replace-on-save
// semantics per (quantum, profile) pair.
type resultStore struct {
	mu     sync.RWMutex
	byPair map[string]*atypes.AnalysisRecord
	latest map[string]*atypes.AnalysisRecord
}

func newResultStore() *resultStore {
	return &resultStore{
		byPair: make(map[string]*atypes.AnalysisRecord),
		latest: make(map[string]*atypes.AnalysisRecord),
	}
}

func (s *resultStore) Save(_ context.Context, rec *atypes.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPair[rec.QuantumID+"\x00"+rec.Result.Profile] = rec
	s.latest[rec.QuantumID] = rec
	return nil
}

func (s *resultStore) Get(_ context.Context, quantumID, profile string) (*atypes.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byPair[quantumID+"\x00"+profile]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no result for quantum %s profile %s", quantumID, profile)
	}
	return rec, nil
}

func (s *resultStore) Latest(_ context.Context, quantumID string) (*atypes.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.latest[quantumID]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no result for quantum %s", quantumID)
	}
	return rec, nil
}

func (s *resultStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPair)
}

// collectSink retains every record the pipeline emits.
type collectSink struct {
	mu      sync.Mutex
	records []*atypes.AnalysisRecord
}

func (s *collectSink) Write(_ context.Context, rec *atypes.AnalysisRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *collectSink) all() []*atypes.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*atypes.AnalysisRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ---------------------------------------------------------------------------
// Fixture records
// ---------------------------------------------------------------------------

// industrialRecord describes well-serviced industrial land: positive under
// every built-in profile and free of mismatches.
func industrialRecord(t *testing.T) *feature.Record {
	t.Helper()
	rec := feature.NewRecord()
	rec.SetFlag(feature.KeyRoadAccess, true)
	rec.SetFlag(feature.KeyHighway, true)
	rec.SetFlag(feature.KeyPower, true)
	rec.SetFlag(feature.KeyWaterService, true)
	rec.SetFlag(feature.KeyIndustrialZone, true)
	rec.SetFlag(feature.KeyZoningBuildable, true)
	require.NoError(t, rec.SetNumber(feature.KeySlopePercent, 2.0))
	require.NoError(t, rec.SetNumber(feature.KeyElevationFt, 1100))
	return rec
}

// coastalRecord satisfies the desalination profile's requirements.
func coastalRecord(t *testing.T) *feature.Record {
	t.Helper()
	rec := industrialRecord(t)
	rec.SetFlag(feature.KeyCoastal, true)
	rec.SetFlag(feature.KeyLowElevation, true)
	return rec
}
