package prometheus

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/queue/memory"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

func TestQueueDepthCollector_ReportsDepthPerStatus(t *testing.T) {
	ctx := context.Background()
	q := memory.NewQueue()

	scanID := uuid.New()
	jobs := []*job.Job{
		job.New(scanID, geo.Coordinate{Lat: 46.94, Lon: 7.44}, "industrial", 0),
		job.New(scanID, geo.Coordinate{Lat: 46.95, Lon: 7.45}, "industrial", 0),
		job.New(scanID, geo.Coordinate{Lat: 46.96, Lon: 7.46}, "industrial", 0),
	}
	require.NoError(t, q.Enqueue(ctx, jobs...))

	claimed, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	c := newTestCollector(t)
	c.MustRegister(NewQueueDepthCollector(q, "test", logging.NewNopLogger()))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "# TYPE test_jobs_queue_depth gauge")
	assert.Contains(t, output, `test_jobs_queue_depth{status="pending"} 2`)
	assert.Contains(t, output, `test_jobs_queue_depth{status="in_progress"} 1`)
	assert.Contains(t, output, `test_jobs_queue_depth{status="done"} 0`)
	assert.Contains(t, output, `test_jobs_queue_depth{status="failed"} 0`)
}

type failingQueue struct {
	job.Queue
}

func (failingQueue) CountByStatus(context.Context, uuid.UUID) (map[job.Status]int, error) {
	return nil, assert.AnError
}

func TestQueueDepthCollector_SkipsScrapeOnTallyFailure(t *testing.T) {
	c := newTestCollector(t)
	c.MustRegister(NewQueueDepthCollector(failingQueue{}, "test", logging.NewNopLogger()))

	output := scrapeMetrics(t, c)
	assert.NotContains(t, output, "jobs_queue_depth{")
}
