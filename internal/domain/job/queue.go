package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queue is the scheduling contract shared by the durable postgres queue and
// the in-memory one. Implementations must make ClaimNext atomic — no two
// callers ever observe the same pending job as available — and must drain
// jobs by priority descending, then enqueue time ascending, skipping jobs
// whose NotBefore lies in the future.
type Queue interface {
	// Enqueue adds pending jobs. Enqueueing is all-or-nothing per call.
	Enqueue(ctx context.Context, jobs ...*Job) error

	// ClaimNext atomically claims the next eligible pending job, moving it
	// to in_progress. It returns (nil, nil) when no job is eligible.
	ClaimNext(ctx context.Context) (*Job, error)

	// MarkDone completes a claimed job.
	MarkDone(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed attempt for a claimed job: permanently
	// failed jobs become terminal, retryable ones return to pending and
	// become eligible again at retryAt.
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, retryAt time.Time, permanent bool) error

	// RequeueStale returns jobs stuck in_progress longer than olderThan to
	// pending, reporting how many were reclaimed. Run at worker startup so
	// jobs stranded by a crash are re-processed.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)

	// CountByStatus tallies jobs per status. A zero scanID tallies every job.
	CountByStatus(ctx context.Context, scanID uuid.UUID) (map[Status]int, error)

	// FailedJobs lists permanently failed jobs for a scan, oldest first.
	// A zero scanID lists every permanently failed job.
	FailedJobs(ctx context.Context, scanID uuid.UUID) ([]*Job, error)
}
