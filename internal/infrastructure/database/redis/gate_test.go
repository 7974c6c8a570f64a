package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestIntervalGate_TryPass(t *testing.T) {
	mr, client := newTestClient(t)
	gate := NewIntervalGate(client, "fema", time.Second, logging.NewNopLogger())
	ctx := context.Background()

	ok, err := gate.TryPass(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "first pass claims the interval")

	ok, err = gate.TryPass(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second pass inside the interval is rejected")

	mr.FastForward(time.Second)

	ok, err = gate.TryPass(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "gate reopens once the lease expires")
}

func TestIntervalGate_KeyPerSource(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	femaGate := NewIntervalGate(client, "fema", time.Second, logging.NewNopLogger())
	usgsGate := NewIntervalGate(client, "usgs", time.Second, logging.NewNopLogger())

	ok, err := femaGate.TryPass(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = usgsGate.TryPass(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "sources are throttled independently")

	n, err := client.Exists(ctx, "landquant:gate:fema", "landquant:gate:usgs").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIntervalGate_WaitFreeGate(t *testing.T) {
	_, client := newTestClient(t)
	gate := NewIntervalGate(client, "fema", time.Second, logging.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, gate.Wait(ctx))
}

func TestIntervalGate_WaitContextExpires(t *testing.T) {
	_, client := newTestClient(t)
	gate := NewIntervalGate(client, "fema", time.Minute, logging.NewNopLogger())

	ok, err := gate.TryPass(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = gate.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIntervalGate_ZeroIntervalNeverBlocks(t *testing.T) {
	_, client := newTestClient(t)
	gate := NewIntervalGate(client, "static", 0, logging.NewNopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := gate.TryPass(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, gate.Wait(ctx))
}
