// Package memory provides the in-process job.Queue used by single-process
// runs, the offline CLI, and tests. It mirrors the postgres queue's claim
// ordering and retry semantics without requiring a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Queue is a mutex-guarded in-memory job queue. Jobs are stored as private
// clones; callers never share memory with queue internals.
type Queue struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job.Job
}

var _ job.Queue = (*Queue)(nil)

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{jobs: make(map[uuid.UUID]*job.Job)}
}

// Enqueue adds pending jobs. The call is all-or-nothing: every job is
// validated before any is inserted. Ids already present are skipped, so
// replaying a scan submission is safe.
func (q *Queue) Enqueue(ctx context.Context, jobs ...*job.Job) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueueUnavailable, "enqueue canceled")
	}

	for _, j := range jobs {
		if j == nil {
			return errors.New(errors.CodeInvalidParam, "job must not be nil")
		}
		if j.ID == uuid.Nil {
			return errors.New(errors.CodeInvalidParam, "job must carry an id")
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range jobs {
		if _, exists := q.jobs[j.ID]; exists {
			continue
		}
		q.jobs[j.ID] = j.Clone()
	}
	return nil
}

// ClaimNext atomically claims the most urgent eligible pending job: highest
// priority first, oldest first within a priority. It returns (nil, nil) when
// nothing is eligible.
func (q *Queue) ClaimNext(ctx context.Context) (*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "claim canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	var best *job.Job
	for _, j := range q.jobs {
		if !j.Ready(now) {
			continue
		}
		if best == nil || claimBefore(j, best) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	if err := best.Start(); err != nil {
		return nil, err
	}
	return best.Clone(), nil
}

// claimBefore reports whether a should be claimed ahead of b. The id tiebreak
// keeps ordering deterministic when created timestamps collide.
func claimBefore(a, b *job.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

// MarkDone completes a claimed job.
func (q *Queue) MarkDone(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueueUnavailable, "mark done canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	return j.Complete()
}

// MarkFailed records a failed attempt for a claimed job.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, cause string, retryAt time.Time, permanent bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueueUnavailable, "mark failed canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	if j.Status != job.StatusInProgress {
		return errors.Newf(errors.ErrCodeJobTransitionInvalid,
			"job %s cannot move from %s to %s", id, j.Status, job.StatusFailed)
	}
	return j.Fail(cause, retryAt, permanent)
}

// RequeueStale returns jobs stuck in_progress longer than olderThan to
// pending, reporting how many were reclaimed.
func (q *Queue) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "requeue canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	reclaimed := 0
	for _, j := range q.jobs {
		if j.Status != job.StatusInProgress || j.StartedAt == nil || !j.StartedAt.Before(cutoff) {
			continue
		}
		if err := j.Revert(); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	return reclaimed, nil
}

// CountByStatus tallies jobs per status. A zero scanID tallies every job.
func (q *Queue) CountByStatus(ctx context.Context, scanID uuid.UUID) (map[job.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "count canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[job.Status]int)
	for _, j := range q.jobs {
		if scanID != uuid.Nil && j.ScanID != scanID {
			continue
		}
		counts[j.Status]++
	}
	return counts, nil
}

// FailedJobs lists permanently failed jobs, oldest first. A zero scanID lists
// every permanently failed job.
func (q *Queue) FailedJobs(ctx context.Context, scanID uuid.UUID) ([]*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "list canceled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var failed []*job.Job
	for _, j := range q.jobs {
		if j.Status != job.StatusFailed {
			continue
		}
		if scanID != uuid.Nil && j.ScanID != scanID {
			continue
		}
		failed = append(failed, j.Clone())
	}
	sort.Slice(failed, func(i, k int) bool {
		if !failed[i].CreatedAt.Equal(failed[k].CreatedAt) {
			return failed[i].CreatedAt.Before(failed[k].CreatedAt)
		}
		return strings.Compare(failed[i].ID.String(), failed[k].ID.String()) < 0
	})
	return failed, nil
}
