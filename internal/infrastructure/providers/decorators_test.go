package providers

import (
	"context"
	stdliberrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

type fakeProvider struct {
	name  string
	rec   *feature.Record
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchFeatures(ctx context.Context, _ geo.Coordinate) (*feature.Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.rec != nil {
		return f.rec.Clone(), nil
	}
	return feature.NewRecord(), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGate struct {
	err   error
	waits int
}

func (g *fakeGate) Wait(context.Context) error {
	g.waits++
	return g.err
}

var testCoord = geo.Coordinate{Lat: 33.715, Lon: -118.286}

func TestWithTimeout_DeadlineBecomesRetryableTimeout(t *testing.T) {
	slow := &fakeProvider{name: "fema", delay: 200 * time.Millisecond}
	p := WithTimeout(slow, 20*time.Millisecond)

	_, err := p.FetchFeatures(context.Background(), testCoord)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProviderTimeout, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, "fema", p.Name())
}

func TestWithTimeout_FastFetchPasses(t *testing.T) {
	rec := feature.NewRecord()
	rec.SetFlag(feature.KeyCoastal, true)
	p := WithTimeout(&fakeProvider{name: "fema", rec: rec}, time.Second)

	got, err := p.FetchFeatures(context.Background(), testCoord)
	require.NoError(t, err)
	coastal, _ := got.Flag(feature.KeyCoastal)
	assert.True(t, coastal)
}

func TestWithTimeout_ProviderErrorPassesThrough(t *testing.T) {
	cause := errors.Provider("fema", stdliberrors.New("connection reset"))
	p := WithTimeout(&fakeProvider{name: "fema", err: cause}, time.Second)

	_, err := p.FetchFeatures(context.Background(), testCoord)
	assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.GetCode(err))
}

func TestWithTimeout_NonPositiveLimitIsIdentity(t *testing.T) {
	inner := &fakeProvider{name: "fema"}
	assert.Same(t, inner, WithTimeout(inner, 0))
	assert.Same(t, inner, Throttled(inner, nil))
	assert.Same(t, inner, Cached(inner, nil))
}

func TestThrottled_WaitsBeforeFetching(t *testing.T) {
	inner := &fakeProvider{name: "usgs"}
	gate := &fakeGate{}
	p := Throttled(inner, gate)

	_, err := p.FetchFeatures(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, 1, gate.waits)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, "usgs", p.Name())
}

func TestThrottled_GateErrorSkipsFetch(t *testing.T) {
	inner := &fakeProvider{name: "usgs"}
	gate := &fakeGate{err: context.Canceled}
	p := Throttled(inner, gate)

	_, err := p.FetchFeatures(context.Background(), testCoord)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.callCount(), "a rejected wait must not reach the source")
}

func TestCached_SecondFetchServedFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(redis.Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	rec := feature.NewRecord()
	rec.SetFlag(feature.KeyCoastal, true)
	inner := &fakeProvider{name: "fema", rec: rec}

	p := Cached(inner, redis.NewFeatureCache(client, logging.NewNopLogger()))
	ctx := context.Background()

	first, err := p.FetchFeatures(ctx, testCoord)
	require.NoError(t, err)
	second, err := p.FetchFeatures(ctx, testCoord)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.callCount(), "second fetch must not reach the source")
	for _, got := range []*feature.Record{first, second} {
		coastal, ok := got.Flag(feature.KeyCoastal)
		assert.True(t, ok)
		assert.True(t, coastal)
	}
}

func TestComposite_MergesFieldWiseWithPrecedence(t *testing.T) {
	terrain := feature.NewRecord()
	require.NoError(t, terrain.SetNumber(feature.KeySlopePercent, 10))
	terrain.SetFlag(feature.KeyCoastal, true)

	zoning := feature.NewRecord()
	require.NoError(t, zoning.SetNumber(feature.KeySlopePercent, 99))
	zoning.SetFlag(feature.KeyPower, true)

	p := Composite("merged",
		&fakeProvider{name: "usgs-terrain", rec: terrain},
		&fakeProvider{name: "county-zoning", rec: zoning},
	)

	got, err := p.FetchFeatures(context.Background(), testCoord)
	require.NoError(t, err)

	slope, _ := got.Number(feature.KeySlopePercent)
	assert.InDelta(t, 10.0, slope, 1e-9, "earlier source wins conflicting keys")

	coastal, _ := got.Flag(feature.KeyCoastal)
	power, _ := got.Flag(feature.KeyPower)
	assert.True(t, coastal)
	assert.True(t, power)

	slopeProv, ok := got.ProvenanceFor(feature.KeySlopePercent)
	require.True(t, ok)
	assert.Equal(t, "usgs-terrain", slopeProv.Source)

	powerProv, ok := got.ProvenanceFor(feature.KeyPower)
	require.True(t, ok)
	assert.Equal(t, "county-zoning", powerProv.Source)
}

func TestComposite_SourceFailureFailsWholeFetch(t *testing.T) {
	okRec := feature.NewRecord()
	okRec.SetFlag(feature.KeyCoastal, true)

	p := Composite("merged",
		&fakeProvider{name: "usgs-terrain", rec: okRec},
		&fakeProvider{name: "county-zoning", err: stdliberrors.New("503 from upstream")},
	)

	_, err := p.FetchFeatures(context.Background(), testCoord)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestComposite_PreservesNestedProvenance(t *testing.T) {
	pre := feature.NewRecord()
	pre.SetFlag(feature.KeyRail, true)
	pre.SetProvenance(feature.KeyRail, feature.Provenance{Source: "railroad-atlas", Confidence: 0.8})

	p := Composite("merged", &fakeProvider{name: "aggregator", rec: pre})

	got, err := p.FetchFeatures(context.Background(), testCoord)
	require.NoError(t, err)

	prov, ok := got.ProvenanceFor(feature.KeyRail)
	require.True(t, ok)
	assert.Equal(t, "railroad-atlas", prov.Source, "existing attribution must not be overwritten")
}

func TestStaticProvider(t *testing.T) {
	fixture := feature.NewRecord()
	fixture.SetFlag(feature.KeyCoastal, true)

	fallback := feature.NewRecord()
	fallback.SetFlag(feature.KeyRoadAccess, true)

	p := NewStatic("fixtures", map[string]*feature.Record{testCoord.String(): fixture}, fallback)
	ctx := context.Background()

	got, err := p.FetchFeatures(ctx, testCoord)
	require.NoError(t, err)
	coastal, _ := got.Flag(feature.KeyCoastal)
	assert.True(t, coastal)

	got.SetFlag(feature.KeyCoastal, false)
	again, err := p.FetchFeatures(ctx, testCoord)
	require.NoError(t, err)
	coastal, _ = again.Flag(feature.KeyCoastal)
	assert.True(t, coastal, "fixtures are cloned, not shared")

	elsewhere := geo.Coordinate{Lat: 40.0, Lon: -100.0}
	got, err = p.FetchFeatures(ctx, elsewhere)
	require.NoError(t, err)
	road, _ := got.Flag(feature.KeyRoadAccess)
	assert.True(t, road, "unknown coordinates get the fallback")

	replacement := feature.NewRecord()
	replacement.SetFlag(feature.KeyHighway, true)
	p.Put(elsewhere, replacement)
	got, err = p.FetchFeatures(ctx, elsewhere)
	require.NoError(t, err)
	highway, _ := got.Flag(feature.KeyHighway)
	assert.True(t, highway)
}

func TestStaticProvider_NoFixturesYieldsEmptyRecord(t *testing.T) {
	p := NewStatic("fixtures", nil, nil)
	got, err := p.FetchFeatures(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFixedEstimator(t *testing.T) {
	est := FixedEstimator(7.5, true)
	v, ok, err := est.Predict(context.Background(), feature.NewRecord())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 7.5, v, 1e-9)

	unavailable := FixedEstimator(0, false)
	_, ok, err = unavailable.Predict(context.Background(), feature.NewRecord())
	require.NoError(t, err)
	assert.False(t, ok)
}
