package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/analysis"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/queue/memory"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

var testCoord = geo.Coordinate{Lat: 33.451, Lon: -112.073}

type runnerFunc func(ctx context.Context, j *job.Job) (*analysis.Outcome, error)

func (f runnerFunc) Analyze(ctx context.Context, j *job.Job) (*analysis.Outcome, error) {
	return f(ctx, j)
}

func okRunner(calls *atomic.Int64) runnerFunc {
	return func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &analysis.Outcome{QuantumID: "q", Score: 7.5}, nil
	}
}

func fastConfig() Config {
	return Config{
		Concurrency:  2,
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   time.Second,
		MaxRetries:   2,
		BackoffBase:  time.Millisecond,
		BackoffMax:   4 * time.Millisecond,
		StaleAge:     time.Minute,
	}
}

func enqueueJobs(t *testing.T, q job.Queue, n int) uuid.UUID {
	t.Helper()
	scanID := uuid.New()
	jobs := make([]*job.Job, n)
	for i := range jobs {
		jobs[i] = job.New(scanID, testCoord, "general", 0)
	}
	require.NoError(t, q.Enqueue(context.Background(), jobs...))
	return scanID
}

// startPool runs the pool in the background and returns a stop function that
// cancels it and waits for a clean return.
func startPool(t *testing.T, p *Pool) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	stop = func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("pool did not stop in time")
		}
	}
	t.Cleanup(stop)
	return stop
}

func statusCount(q job.Queue, status job.Status) int {
	counts, err := q.CountByStatus(context.Background(), uuid.Nil)
	if err != nil {
		return -1
	}
	return counts[status]
}

func TestNewPool_Validation(t *testing.T) {
	q := memory.NewQueue()
	r := okRunner(nil)

	_, err := NewPool(Config{}, nil, r, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewPool(Config{}, q, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	p, err := NewPool(Config{}, q, r, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, p.cfg.Concurrency)
	assert.Equal(t, DefaultPollInterval, p.cfg.PollInterval)
	assert.Equal(t, DefaultMaxRetries, p.cfg.MaxRetries)
	assert.Equal(t, DefaultStaleAge, p.cfg.StaleAge)
}

func TestPool_ProcessesJobsToDone(t *testing.T) {
	q := memory.NewQueue()
	enqueueJobs(t, q, 3)

	var calls atomic.Int64
	p, err := NewPool(fastConfig(), q, okRunner(&calls), nil, nil)
	require.NoError(t, err)
	stop := startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusDone) == 3
	}, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Zero(t, statusCount(q, job.StatusInProgress))
	assert.EqualValues(t, 3, calls.Load())
}

func TestPool_RetryableErrorIsRetried(t *testing.T) {
	q := memory.NewQueue()
	enqueueJobs(t, q, 1)

	var calls atomic.Int64
	runner := runnerFunc(func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		if calls.Add(1) == 1 {
			return nil, errors.Provider("osm", assert.AnError)
		}
		return &analysis.Outcome{QuantumID: "q", Score: 7.5}, nil
	})
	p, err := NewPool(fastConfig(), q, runner, nil, nil)
	require.NoError(t, err)
	startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusDone) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestPool_NonRetryableFailsPermanently(t *testing.T) {
	q := memory.NewQueue()
	scanID := enqueueJobs(t, q, 1)

	var calls atomic.Int64
	runner := runnerFunc(func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		calls.Add(1)
		return nil, errors.Internal("scoring blew up")
	})
	p, err := NewPool(fastConfig(), q, runner, nil, nil)
	require.NoError(t, err)
	stop := startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusFailed) == 1
	}, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.EqualValues(t, 1, calls.Load())
	failed, err := q.FailedJobs(context.Background(), scanID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].LastError, "scoring blew up")
	assert.Zero(t, failed[0].RetryCount)
}

func TestPool_RetryBudgetExhausted(t *testing.T) {
	q := memory.NewQueue()
	scanID := enqueueJobs(t, q, 1)

	var calls atomic.Int64
	runner := runnerFunc(func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		calls.Add(1)
		return nil, errors.Provider("osm", assert.AnError)
	})
	p, err := NewPool(fastConfig(), q, runner, nil, nil)
	require.NoError(t, err)
	stop := startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusFailed) == 1
	}, 2*time.Second, 5*time.Millisecond)
	stop()

	// Initial attempt plus MaxRetries retries.
	assert.EqualValues(t, 3, calls.Load())
	failed, err := q.FailedJobs(context.Background(), scanID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].RetryCount)
}

func TestPool_PanicFailsJobWithoutKillingWorker(t *testing.T) {
	q := memory.NewQueue()
	scanID := enqueueJobs(t, q, 2)

	var calls atomic.Int64
	runner := runnerFunc(func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		if calls.Add(1) == 1 {
			panic("poisoned features")
		}
		return &analysis.Outcome{QuantumID: "q", Score: 7.5}, nil
	})
	cfg := fastConfig()
	cfg.Concurrency = 1
	p, err := NewPool(cfg, q, runner, nil, nil)
	require.NoError(t, err)
	stop := startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusFailed) == 1 && statusCount(q, job.StatusDone) == 1
	}, 2*time.Second, 5*time.Millisecond)
	stop()

	failed, err := q.FailedJobs(context.Background(), scanID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].LastError, "panicked")
}

func TestPool_CleanStopDrainsInFlight(t *testing.T) {
	q := memory.NewQueue()
	enqueueJobs(t, q, 4)

	runner := runnerFunc(func(_ context.Context, j *job.Job) (*analysis.Outcome, error) {
		time.Sleep(60 * time.Millisecond)
		return &analysis.Outcome{QuantumID: "q", Score: 7.5}, nil
	})
	p, err := NewPool(fastConfig(), q, runner, nil, nil)
	require.NoError(t, err)
	stop := startPool(t, p)

	require.Eventually(t, func() bool {
		return statusCount(q, job.StatusInProgress) > 0
	}, 2*time.Second, time.Millisecond)
	stop()

	counts, err := q.CountByStatus(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Zero(t, counts[job.StatusInProgress])
	assert.Positive(t, counts[job.StatusDone])
	assert.Equal(t, 4, counts[job.StatusDone]+counts[job.StatusPending])
}

func TestPool_ReclaimsStaleJobsAtStart(t *testing.T) {
	q := memory.NewQueue()
	enqueueJobs(t, q, 1)

	// Strand the job in_progress as a crashed worker would.
	claimed, err := q.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	time.Sleep(5 * time.Millisecond)

	cfg := fastConfig()
	cfg.StaleAge = time.Nanosecond
	p, err := NewPool(cfg, q, okRunner(nil), nil, nil)
	require.NoError(t, err)
	startPool(t, p)

	assert.Eventually(t, func() bool {
		return statusCount(q, job.StatusDone) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPool_BackoffDoublesAndSaturates(t *testing.T) {
	p, err := NewPool(Config{
		BackoffBase: time.Second,
		BackoffMax:  10 * time.Second,
	}, memory.NewQueue(), okRunner(nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, 8*time.Second, p.backoff(3))
	assert.Equal(t, 10*time.Second, p.backoff(4))
	assert.Equal(t, 10*time.Second, p.backoff(12))
}
