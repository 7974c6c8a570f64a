// Package worker runs the pool that drains the job queue: each worker claims
// the next eligible job, runs the analysis pipeline on it, and settles the
// job as done, retried with backoff, or permanently failed. Shutdown is a
// drain: cancelling the run context stops claiming immediately while
// attempts already in flight finish under their own timeout, so a clean stop
// leaves nothing in_progress. Jobs orphaned by a hard kill are reclaimed by
// the stale sweep at the next start.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/analysis"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Defaults applied by NewPool for zero-valued Config fields.
const (
	DefaultConcurrency  = 4
	DefaultPollInterval = 500 * time.Millisecond
	DefaultJobTimeout   = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultBackoffBase  = time.Second
	DefaultBackoffMax   = 30 * time.Second
	DefaultStaleAge     = 5 * time.Minute
)

// statusWriteTimeout bounds the queue write that settles an attempt. Writes
// run on a detached context so shutdown cannot strand a finished job.
const statusWriteTimeout = 10 * time.Second

// Config tunes the pool. Zero values fall back to the defaults above.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	StaleAge     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.StaleAge <= 0 {
		c.StaleAge = DefaultStaleAge
	}
	return c
}

// Runner analyzes one claimed job. The analysis pipeline is the production
// implementation.
type Runner interface {
	Analyze(ctx context.Context, j *job.Job) (*analysis.Outcome, error)
}

// Pool consumes the job queue with a fixed number of workers.
type Pool struct {
	cfg     Config
	queue   job.Queue
	runner  Runner
	metrics *prometheus.AppMetrics
	log     logging.Logger
}

// NewPool validates the wiring and returns a ready pool.
func NewPool(cfg Config, queue job.Queue, runner Runner, metrics *prometheus.AppMetrics, logger logging.Logger) (*Pool, error) {
	if queue == nil {
		return nil, errors.Configuration("worker pool requires a job queue")
	}
	if runner == nil {
		return nil, errors.Configuration("worker pool requires a runner")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pool{
		cfg:     cfg.withDefaults(),
		queue:   queue,
		runner:  runner,
		metrics: metrics,
		log:     logger.Named("worker"),
	}, nil
}

// Run reclaims stale jobs, then consumes the queue until ctx is cancelled.
// It returns after every in-flight attempt has settled.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("worker pool starting",
		logging.Int("concurrency", p.cfg.Concurrency),
		logging.Duration("poll_interval", p.cfg.PollInterval),
		logging.Duration("job_timeout", p.cfg.JobTimeout))

	p.reclaimStale(ctx)

	var g errgroup.Group
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerLog := p.log.With(logging.Int("worker", i))
		g.Go(func() error {
			p.work(ctx, workerLog)
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("worker pool stopped")
	return nil
}

// reclaimStale returns jobs stranded in_progress by a previous crash to the
// queue before any worker starts claiming.
func (p *Pool) reclaimStale(ctx context.Context) {
	n, err := p.queue.RequeueStale(ctx, p.cfg.StaleAge)
	if err != nil {
		p.log.Warn("stale job reclaim failed", logging.Err(err))
		return
	}
	if n > 0 {
		prometheus.RecordJobsReclaimed(p.metrics, n)
		p.log.Info("stale jobs reclaimed", logging.Int("count", n))
	}
}

func (p *Pool) work(ctx context.Context, log logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		j, err := p.queue.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("job claim failed", logging.Err(err))
			if !p.sleep(ctx) {
				return
			}
			continue
		}
		if j == nil {
			if !p.sleep(ctx) {
				return
			}
			continue
		}
		p.process(ctx, log, j)
	}
}

// sleep waits one poll interval, returning false when ctx ends first.
func (p *Pool) sleep(ctx context.Context) bool {
	t := time.NewTimer(p.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Pool) process(ctx context.Context, log logging.Logger, j *job.Job) {
	prometheus.AddJobsInFlight(p.metrics, 1)
	defer prometheus.AddJobsInFlight(p.metrics, -1)

	started := time.Now()

	// The attempt detaches from the run context: shutdown stops claiming,
	// but a claimed job runs to completion under its own timeout.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.JobTimeout)
	out, err := p.attempt(attemptCtx, log, j)
	cancel()

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancelWrite()

	took := time.Since(started)
	if err == nil {
		prometheus.RecordJobAttempt(p.metrics, j.Profile, prometheus.OutcomeDone, took)
		if markErr := p.queue.MarkDone(writeCtx, j.ID); markErr != nil {
			log.Error("job completion not recorded",
				logging.String("job_id", j.ID.String()),
				logging.Err(markErr))
			return
		}
		log.Debug("job done",
			logging.String("job_id", j.ID.String()),
			logging.String("quantum_id", out.QuantumID),
			logging.Float64("score", out.Score),
			logging.Duration("took", took))
		return
	}

	retryable := errors.IsRetryable(err) && j.RetryCount < p.cfg.MaxRetries
	outcome := prometheus.OutcomeFailed
	var retryAt time.Time
	if retryable {
		outcome = prometheus.OutcomeRetried
		retryAt = time.Now().UTC().Add(p.backoff(j.RetryCount))
	}
	prometheus.RecordJobAttempt(p.metrics, j.Profile, outcome, took)

	if markErr := p.queue.MarkFailed(writeCtx, j.ID, err.Error(), retryAt, !retryable); markErr != nil {
		log.Error("job failure not recorded",
			logging.String("job_id", j.ID.String()),
			logging.Err(markErr))
		return
	}

	if retryable {
		log.Warn("job attempt failed, will retry",
			logging.String("job_id", j.ID.String()),
			logging.Int("attempt", j.RetryCount+1),
			logging.Duration("retry_in", time.Until(retryAt)),
			logging.Err(err))
		return
	}
	log.Error("job failed permanently",
		logging.String("job_id", j.ID.String()),
		logging.Int("attempts", j.RetryCount+1),
		logging.Err(err))
}

// attempt runs the pipeline once, converting a panic in the handler into a
// non-retryable error so one poisoned job cannot take the worker down.
func (p *Pool) attempt(ctx context.Context, log logging.Logger, j *job.Job) (out *analysis.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job handler panicked",
				logging.String("job_id", j.ID.String()),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			out = nil
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("job handler panicked: %v", r))
		}
	}()
	return p.runner.Analyze(ctx, j)
}

// backoff returns the delay before the next attempt: the base doubles per
// prior retry and saturates at BackoffMax.
func (p *Pool) backoff(retries int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 0; i < retries && d < p.cfg.BackoffMax; i++ {
		d *= 2
	}
	if d > p.cfg.BackoffMax {
		d = p.cfg.BackoffMax
	}
	return d
}
