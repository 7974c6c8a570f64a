package e2e_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// testRegion covers a handful of 100 m quanta near central Phoenix.
func testRegion() geo.Region {
	return geo.Region{Box: &geo.BoundingBox{
		MinLat: 33.4500,
		MinLon: -112.0750,
		MaxLat: 33.4520,
		MaxLon: -112.0725,
	}}
}

// servicedLandRecord is the fixture every coordinate serves by default:
// well-connected industrial land with flat terrain.
func servicedLandRecord() *feature.Record {
	rec := feature.NewRecord()
	rec.SetFlag(feature.KeyRoadAccess, true)
	rec.SetFlag(feature.KeyHighway, true)
	rec.SetFlag(feature.KeyPower, true)
	rec.SetFlag(feature.KeyWaterService, true)
	rec.SetFlag(feature.KeyIndustrialZone, true)
	rec.SetFlag(feature.KeyZoningBuildable, true)
	_ = rec.SetNumber(feature.KeySlopePercent, 2.0)
	_ = rec.SetNumber(feature.KeyElevationFt, 1100)
	return rec
}

func boolp(v bool) *bool { return &v }

func floatp(v float64) *float64 { return &v }

// servicedLandFeatures is the wire-format twin of servicedLandRecord.
func servicedLandFeatures() atypes.FeatureRecord {
	return atypes.FeatureRecord{
		RoadAccess:      boolp(true),
		Highway:         boolp(true),
		Power:           boolp(true),
		WaterService:    boolp(true),
		IndustrialZone:  boolp(true),
		ZoningBuildable: boolp(true),
		SlopePercent:    floatp(2.0),
		ElevationFt:     floatp(1100),
	}
}

// scanRequest builds a scan submission over testRegion.
func scanRequest(profile string) atypes.ScanRequest {
	return atypes.ScanRequest{Region: testRegion(), Profile: profile}
}

// startDrainedScan submits a scan over testRegion and blocks until the
// worker pool has settled every job.
func startDrainedScan(t *testing.T, profile string) *atypes.Scan {
	t.Helper()

	s, err := env.sdk.Scans().Start(context.Background(), scanRequest(profile))
	require.NoError(t, err)
	require.Greater(t, s.QuantumCount, 0)

	return waitForScan(t, s.ID)
}

// waitForScan polls the scan until no job is pending or in progress.
func waitForScan(t *testing.T, scanID string) *atypes.Scan {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for {
		s, err := env.sdk.Scans().Get(context.Background(), scanID)
		require.NoError(t, err)
		if s.Counts.Pending+s.Counts.InProgress == 0 {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan %s did not drain: %+v", scanID, s.Counts)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// In-memory stand-ins for postgres results and the MinIO report archive
// ---------------------------------------------------------------------------

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

// memArchive records archived reports under deterministic object keys.
type memArchive struct {
	mu      sync.Mutex
	reports map[string]*atypes.ScanReport
}

func (a *memArchive) Archive(_ context.Context, report *atypes.ScanReport) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reports == nil {
		a.reports = make(map[string]*atypes.ScanReport)
	}
	key := fmt.Sprintf("reports/%s.json", report.ScanID)
	a.reports[key] = report
	return key, nil
}

func (a *memArchive) get(key string) (*atypes.ScanReport, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.reports[key]
	return r, ok
}
