package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/queue/memory"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

func testRegion() geo.Region {
	return geo.Region{Box: &geo.BoundingBox{
		MinLat: 33.450, MinLon: -112.080,
		MaxLat: 33.455, MaxLon: -112.075,
	}}
}

type memScanStore struct {
	mu        sync.Mutex
	createErr error
	scans     map[string]*atypes.Scan
	order     []string
}

func newMemScanStore() *memScanStore {
	return &memScanStore{scans: make(map[string]*atypes.Scan)}
}

func (s *memScanStore) Create(_ context.Context, scan *atypes.Scan) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *scan
	s.scans[scan.ID] = &cp
	s.order = append(s.order, scan.ID)
	return nil
}

func (s *memScanStore) Get(_ context.Context, id uuid.UUID) (*atypes.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[id.String()]
	if !ok {
		return nil, errors.New(errors.ErrCodeScanNotFound, "scan not found")
	}
	cp := *scan
	return &cp, nil
}

func (s *memScanStore) List(_ context.Context, limit int) ([]*atypes.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*atypes.Scan, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *s.scans[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

type captureAnnouncer struct {
	err   error
	scans []*atypes.Scan
}

func (a *captureAnnouncer) AnnounceScan(_ context.Context, scan *atypes.Scan) error {
	if a.err != nil {
		return a.err
	}
	a.scans = append(a.scans, scan)
	return nil
}

type captureArchiver struct {
	key string
	err error
	got *atypes.ScanReport
}

func (a *captureArchiver) Archive(_ context.Context, report *atypes.ScanReport) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.got = report
	return a.key, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	g, err := grid.NewGrid(250)
	require.NoError(t, err)
	return Deps{
		Grid:      g,
		Profiles:  scoring.NewRegistry(),
		Queue:     memory.NewQueue(),
		Scans:     newMemScanStore(),
		Archive:   &captureArchiver{key: "reports/test.json"},
		Announcer: &captureAnnouncer{},
	}
}

func TestNewService_RequiresCoreDeps(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"grid", func(d *Deps) { d.Grid = nil }},
		{"profiles", func(d *Deps) { d.Profiles = nil }},
		{"queue", func(d *Deps) { d.Queue = nil }},
		{"scans", func(d *Deps) { d.Scans = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps(t)
			tc.mutate(&deps)
			_, err := NewService(deps)
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestStart_EnqueuesOneJobPerQuantum(t *testing.T) {
	deps := newTestDeps(t)
	store := deps.Scans.(*memScanStore)
	announcer := deps.Announcer.(*captureAnnouncer)
	svc, err := NewService(deps)
	require.NoError(t, err)

	scan, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)

	scanID, err := uuid.Parse(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, scoring.ProfileGeneral, scan.Profile)
	assert.Equal(t, 250, scan.ResolutionMeters)
	require.Positive(t, scan.QuantumCount)

	counts, err := deps.Queue.CountByStatus(context.Background(), scanID)
	require.NoError(t, err)
	assert.Equal(t, scan.QuantumCount, counts[job.StatusPending])

	_, err = store.Get(context.Background(), scanID)
	require.NoError(t, err)

	require.Len(t, announcer.scans, 1)
	assert.Equal(t, scan.ID, announcer.scans[0].ID)
}

func TestStart_UnknownProfile(t *testing.T) {
	deps := newTestDeps(t)
	store := deps.Scans.(*memScanStore)
	svc, err := NewService(deps)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: "no_such_profile",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProfileUnknown))
	assert.Empty(t, store.order)
}

func TestStart_ResolutionMismatch(t *testing.T) {
	svc, err := NewService(newTestDeps(t))
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), atypes.ScanRequest{
		Region:           testRegion(),
		Profile:          scoring.ProfileGeneral,
		ResolutionMeters: 500,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResolutionMismatch))
}

func TestStart_MatchingResolutionAccepted(t *testing.T) {
	svc, err := NewService(newTestDeps(t))
	require.NoError(t, err)

	scan, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:           testRegion(),
		Profile:          scoring.ProfileGeneral,
		ResolutionMeters: 250,
	})
	require.NoError(t, err)
	assert.Positive(t, scan.QuantumCount)
}

func TestStart_InvalidRegion(t *testing.T) {
	svc, err := NewService(newTestDeps(t))
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), atypes.ScanRequest{
		Region:  geo.Region{},
		Profile: scoring.ProfileGeneral,
	})
	require.Error(t, err)
}

func TestStart_AnnouncerFailureDoesNotFailScan(t *testing.T) {
	deps := newTestDeps(t)
	deps.Announcer.(*captureAnnouncer).err = assert.AnError
	svc, err := NewService(deps)
	require.NoError(t, err)

	scan, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)
	assert.Positive(t, scan.QuantumCount)
}

func TestGet_MergesLiveCounts(t *testing.T) {
	deps := newTestDeps(t)
	svc, err := NewService(deps)
	require.NoError(t, err)

	started, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)

	claimed, err := deps.Queue.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	scan, err := svc.Get(context.Background(), uuid.MustParse(started.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, scan.Counts.InProgress)
	assert.Equal(t, started.QuantumCount-1, scan.Counts.Pending)
}

func TestGet_UnknownScan(t *testing.T) {
	svc, err := NewService(newTestDeps(t))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanNotFound))
}

func TestStatus_ReportsFailedCoordinates(t *testing.T) {
	deps := newTestDeps(t)
	svc, err := NewService(deps)
	require.NoError(t, err)

	started, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)

	claimed, err := deps.Queue.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, deps.Queue.MarkFailed(
		context.Background(), claimed.ID, "provider exploded", time.Time{}, true))

	report, err := svc.Status(context.Background(), uuid.MustParse(started.ID))
	require.NoError(t, err)
	assert.Equal(t, started.ID, report.ScanID)
	assert.Equal(t, 1, report.Counts.Failed)
	assert.Equal(t, started.QuantumCount-1, report.Counts.Pending)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "provider exploded", report.Failed[0].Reason)
	assert.Equal(t, 1, report.Failed[0].Attempts)
	assert.NotEmpty(t, report.Failed[0].QuantumID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestArchive_StoresReportAndReturnsKey(t *testing.T) {
	deps := newTestDeps(t)
	archiver := deps.Archive.(*captureArchiver)
	svc, err := NewService(deps)
	require.NoError(t, err)

	started, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)

	report, key, err := svc.Archive(context.Background(), uuid.MustParse(started.ID))
	require.NoError(t, err)
	assert.Equal(t, "reports/test.json", key)
	require.NotNil(t, archiver.got)
	assert.Equal(t, started.ID, archiver.got.ScanID)
	assert.Equal(t, report.ScanID, archiver.got.ScanID)
}

func TestArchive_WithoutArchiverFailsFast(t *testing.T) {
	deps := newTestDeps(t)
	deps.Archive = nil
	svc, err := NewService(deps)
	require.NoError(t, err)

	_, _, err = svc.Archive(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestList_ReturnsNewestFirst(t *testing.T) {
	deps := newTestDeps(t)
	svc, err := NewService(deps)
	require.NoError(t, err)

	first, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileGeneral,
	})
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), atypes.ScanRequest{
		Region:  testRegion(),
		Profile: scoring.ProfileWarehouse,
	})
	require.NoError(t, err)

	scans, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, second.ID, scans[0].ID)
	assert.Equal(t, first.ID, scans[1].ID)
}
