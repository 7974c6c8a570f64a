package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

var testCoord = geo.Coordinate{Lat: 33.451, Lon: -112.073}

func industrialRecord() *feature.Record {
	rec := feature.NewRecord()
	rec.SetFlag(feature.KeyPower, true)
	rec.SetFlag(feature.KeyWaterService, true)
	rec.SetFlag(feature.KeyIndustrialZone, true)
	rec.SetFlag(feature.KeyRoadAccess, true)
	return rec
}

type captureStore struct {
	mu   sync.Mutex
	err  error
	recs []*atypes.AnalysisRecord
}

func (s *captureStore) Save(_ context.Context, rec *atypes.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *captureStore) saved() []*atypes.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*atypes.AnalysisRecord(nil), s.recs...)
}

type captureSink struct {
	mu   sync.Mutex
	err  error
	recs []*atypes.AnalysisRecord
}

func (s *captureSink) Write(_ context.Context, rec *atypes.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *captureSink) written() []*atypes.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*atypes.AnalysisRecord(nil), s.recs...)
}

type failingIndex struct{}

func (failingIndex) Index(context.Context, string, *feature.Record) error {
	return assert.AnError
}

func (failingIndex) Query(context.Context, *feature.Record, int) ([]similarity.Match, error) {
	return nil, nil
}

func (failingIndex) Remove(context.Context, string) error { return nil }

func (failingIndex) Len(context.Context) (int, error) { return 0, nil }

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	g, err := grid.NewGrid(250)
	require.NoError(t, err)
	return Deps{
		Grid:     g,
		Profiles: scoring.NewRegistry(),
		Scorer:   scoring.NewScorer(scoring.Params{}),
		Detector: mismatch.NewDetector(mismatch.Params{}),
		Provider: provider.FetchFunc("static", func(context.Context, geo.Coordinate) (*feature.Record, error) {
			return industrialRecord(), nil
		}),
		Index:   similarity.NewMemoryIndex(),
		Results: &captureStore{},
		Sink:    &captureSink{},
	}
}

func newTestJob(profile string) *job.Job {
	return job.New(uuid.New(), testCoord, profile, 0)
}

func TestNewPipeline_RequiresCoreDeps(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"grid", func(d *Deps) { d.Grid = nil }},
		{"profiles", func(d *Deps) { d.Profiles = nil }},
		{"scorer", func(d *Deps) { d.Scorer = nil }},
		{"detector", func(d *Deps) { d.Detector = nil }},
		{"provider", func(d *Deps) { d.Provider = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps(t)
			tc.mutate(&deps)
			_, err := NewPipeline(deps)
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestNewPipeline_DefaultsOptionalDeps(t *testing.T) {
	deps := newTestDeps(t)
	deps.Estimator = nil
	deps.Index = nil
	deps.Results = nil
	deps.Sink = nil
	deps.Metrics = nil
	deps.Logger = nil

	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)
	assert.NotEmpty(t, out.QuantumID)
}

func TestAnalyze_HappyPath(t *testing.T) {
	deps := newTestDeps(t)
	store := deps.Results.(*captureStore)
	sink := deps.Sink.(*captureSink)
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)

	assert.NotEmpty(t, out.QuantumID)
	assert.Greater(t, out.Score, 0.0)
	assert.False(t, out.Disqualified)
	require.NotNil(t, out.Record)
	assert.Equal(t, out.QuantumID, out.Record.QuantumID)
	assert.Equal(t, scoring.ProfileGeneral, out.Record.Result.Profile)
	assert.False(t, out.Record.RecordedAt.IsZero())

	require.Len(t, store.saved(), 1)
	require.Len(t, sink.written(), 1)
	assert.Same(t, out.Record, sink.written()[0])

	q, ok := deps.Grid.Get(out.QuantumID)
	require.True(t, ok)
	require.NotNil(t, q.Features())
	assert.True(t, q.Features().Truthy(feature.KeyPower))

	n, err := deps.Index.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAnalyze_NilJob(t *testing.T) {
	p, err := NewPipeline(newTestDeps(t))
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestAnalyze_UnknownProfileSkipsFetch(t *testing.T) {
	fetches := 0
	deps := newTestDeps(t)
	deps.Provider = provider.FetchFunc("static", func(context.Context, geo.Coordinate) (*feature.Record, error) {
		fetches++
		return industrialRecord(), nil
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob("no_such_profile"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProfileUnknown))
	assert.Zero(t, fetches)
}

func TestAnalyze_WrapsRawProviderErrors(t *testing.T) {
	deps := newTestDeps(t)
	deps.Provider = provider.FetchFunc("osm", func(context.Context, geo.Coordinate) (*feature.Record, error) {
		return nil, assert.AnError
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.True(t, errors.IsCode(err, errors.ErrCodeProviderUnavailable))
}

func TestAnalyze_KeepsCodedProviderErrors(t *testing.T) {
	deps := newTestDeps(t)
	deps.Provider = provider.FetchFunc("osm", func(context.Context, geo.Coordinate) (*feature.Record, error) {
		return nil, errors.ProviderTimeout("osm", context.DeadlineExceeded)
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProviderTimeout))
	assert.False(t, errors.IsCode(err, errors.ErrCodeProviderUnavailable))
}

func TestAnalyze_EstimatorFailureIsRetryable(t *testing.T) {
	deps := newTestDeps(t)
	deps.Estimator = provider.EstimatorFunc(func(context.Context, *feature.Record) (float64, bool, error) {
		return 0, false, assert.AnError
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestAnalyze_EstimatorAbstains(t *testing.T) {
	deps := newTestDeps(t)
	deps.Estimator = provider.EstimatorFunc(func(context.Context, *feature.Record) (float64, bool, error) {
		return 0, false, nil
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)
	assert.Nil(t, out.Record.Learned)
	for _, mm := range out.Record.Mismatches {
		assert.NotEqual(t, atypes.MismatchUtility, mm.Category)
	}
}

func TestAnalyze_EstimatorDivergenceFlagsMismatch(t *testing.T) {
	baselinePipeline, err := NewPipeline(newTestDeps(t))
	require.NoError(t, err)
	baseline, err := baselinePipeline.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)
	require.False(t, baseline.Disqualified)

	learned := baseline.Score + 5
	deps := newTestDeps(t)
	deps.Estimator = provider.EstimatorFunc(func(context.Context, *feature.Record) (float64, bool, error) {
		return learned, true, nil
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)
	require.NotNil(t, out.Record.Learned)
	assert.Equal(t, learned, *out.Record.Learned)
	require.NotZero(t, out.Mismatches)

	categories := make([]atypes.MismatchCategory, 0, len(out.Record.Mismatches))
	for _, mm := range out.Record.Mismatches {
		categories = append(categories, mm.Category)
	}
	assert.Contains(t, categories, atypes.MismatchUtility)
}

func TestAnalyze_DisqualifiedQuantum(t *testing.T) {
	deps := newTestDeps(t)
	deps.Provider = provider.FetchFunc("static", func(context.Context, geo.Coordinate) (*feature.Record, error) {
		rec := feature.NewRecord()
		rec.SetFlag(feature.KeyCoastal, true)
		rec.SetFlag(feature.KeyPower, true)
		rec.SetFlag(feature.KeyProtectedHabitat, true)
		return rec, nil
	})
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileDesalination))
	require.NoError(t, err)
	assert.True(t, out.Disqualified)
	assert.Zero(t, out.Score)
	assert.True(t, out.Record.Result.Disqualified)
}

func TestAnalyze_ResultStoreFailureSkipsSink(t *testing.T) {
	deps := newTestDeps(t)
	store := deps.Results.(*captureStore)
	store.err = assert.AnError
	sink := deps.Sink.(*captureSink)
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.Error(t, err)
	assert.Empty(t, sink.written())
}

func TestAnalyze_SinkFailurePropagates(t *testing.T) {
	deps := newTestDeps(t)
	store := deps.Results.(*captureStore)
	sink := deps.Sink.(*captureSink)
	sink.err = assert.AnError
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.Error(t, err)
	assert.Len(t, store.saved(), 1)
}

func TestAnalyze_IndexFailureDoesNotFailAnalysis(t *testing.T) {
	deps := newTestDeps(t)
	deps.Index = failingIndex{}
	store := deps.Results.(*captureStore)
	p, err := NewPipeline(deps)
	require.NoError(t, err)

	out, err := p.Analyze(context.Background(), newTestJob(scoring.ProfileGeneral))
	require.NoError(t, err)
	assert.NotEmpty(t, out.QuantumID)
	assert.Len(t, store.saved(), 1)
}
