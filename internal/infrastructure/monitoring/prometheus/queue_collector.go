package prometheus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
)

// queueDepthTimeout bounds the queue tally during a scrape so a slow store
// cannot stall the whole /metrics response.
const queueDepthTimeout = 2 * time.Second

// QueueDepthCollector exports the job queue depth per status as a gauge,
// sampled at scrape time instead of mirrored through counters. Register it
// with MetricsCollector.MustRegister.
type QueueDepthCollector struct {
	queue  job.Queue
	logger logging.Logger
	desc   *prometheus.Desc
}

var _ prometheus.Collector = (*QueueDepthCollector)(nil)

// NewQueueDepthCollector builds a collector over the queue. The namespace
// must match the owning collector's so the family lands alongside the rest
// of the catalog.
func NewQueueDepthCollector(queue job.Queue, namespace string, logger logging.Logger) *QueueDepthCollector {
	return &QueueDepthCollector{
		queue:  queue,
		logger: logger,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_queue_depth"),
			"Jobs in the queue by status.",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (qc *QueueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- qc.desc
}

// Collect implements prometheus.Collector. A failed tally logs and emits
// nothing for this scrape; stale gauges are worse than a gap.
func (qc *QueueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), queueDepthTimeout)
	defer cancel()

	counts, err := qc.queue.CountByStatus(ctx, uuid.Nil)
	if err != nil {
		qc.logger.Warn("queue depth tally failed", logging.Err(err))
		return
	}

	for _, status := range []job.Status{job.StatusPending, job.StatusInProgress, job.StatusDone, job.StatusFailed} {
		ch <- prometheus.MustNewConstMetric(qc.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
