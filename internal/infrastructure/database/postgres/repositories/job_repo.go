// Package repositories provides PostgreSQL-backed implementations of the
// LandQuant-Intelligence persistence interfaces: the scan job queue, scan
// metadata, and latest-analysis-result storage.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobRepository
// ─────────────────────────────────────────────────────────────────────────────

// jobColumns is the canonical column list for jobs rows, matching scanJobRow.
const jobColumns = `id, scan_id, lat, lon, profile, status, priority, retry_count,
	last_error, not_before, started_at, completed_at, created_at, updated_at`

// JobRepository is the PostgreSQL implementation of job.Queue. Claiming relies
// on FOR UPDATE SKIP LOCKED, so any number of workers can poll the same table
// without ever handing the same job to two of them.
type JobRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ job.Queue = (*JobRepository)(nil)

// NewJobRepository constructs a ready-to-use JobRepository.
func NewJobRepository(pool *pgxpool.Pool, logger logging.Logger) *JobRepository {
	return &JobRepository{pool: pool, logger: logger}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enqueue
// ─────────────────────────────────────────────────────────────────────────────

// Enqueue inserts pending jobs inside a single transaction. Re-enqueueing an
// id that already exists is a no-op, so a crashed scan submission can be
// replayed safely.
func (r *JobRepository) Enqueue(ctx context.Context, jobs ...*job.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin enqueue transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertSQL = `
		INSERT INTO jobs (id, scan_id, lat, lon, profile, status, priority,
			retry_count, last_error, not_before, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(insertSQL,
			j.ID, j.ScanID, j.Coordinate.Lat, j.Coordinate.Lon, j.Profile,
			j.Status, j.Priority, j.RetryCount, j.LastError, j.NotBefore,
			j.CreatedAt, j.UpdatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range jobs {
		if _, err := results.Exec(); err != nil {
			results.Close() //nolint:errcheck
			r.logger.Error("enqueue batch failed", logging.Err(err))
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert jobs")
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to close enqueue batch")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit enqueue transaction")
	}
	r.logger.Debug("jobs enqueued", logging.Int("count", len(jobs)))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ClaimNext
// ─────────────────────────────────────────────────────────────────────────────

// claimSQL picks the single most urgent eligible job and moves it to
// in_progress in one statement. SKIP LOCKED keeps concurrent claimers from
// blocking on (or double-claiming) the same row.
const claimSQL = `
	UPDATE jobs
	SET status = 'in_progress', started_at = now(), updated_at = now()
	WHERE id = (
		SELECT id FROM jobs
		WHERE status = 'pending' AND not_before <= now()
		ORDER BY priority DESC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	RETURNING ` + jobColumns

// ClaimNext atomically claims the next eligible pending job, preferring higher
// priority and, within a priority, older jobs. It returns (nil, nil) when
// nothing is eligible.
func (r *JobRepository) ClaimNext(ctx context.Context) (*job.Job, error) {
	j, err := scanJobRow(r.pool.QueryRow(ctx, claimSQL))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("claim failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to claim job")
	}
	return j, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MarkDone / MarkFailed
// ─────────────────────────────────────────────────────────────────────────────

// MarkDone completes a claimed job.
func (r *JobRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'done', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'in_progress'`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to mark job done")
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id, job.StatusDone)
	}
	return nil
}

// MarkFailed records a failed attempt for a claimed job. Permanent failures
// become terminal; retryable ones return to pending and become eligible again
// at retryAt.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, retryAt time.Time, permanent bool) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if permanent {
		tag, err = r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'failed', last_error = $2, completed_at = now(), updated_at = now()
			WHERE id = $1 AND status = 'in_progress'`, id, cause)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'pending', retry_count = retry_count + 1, last_error = $2,
				not_before = $3, started_at = NULL, updated_at = now()
			WHERE id = $1 AND status = 'in_progress'`, id, cause, retryAt)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to mark job failed")
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id, job.StatusFailed)
	}
	return nil
}

// transitionError distinguishes "no such job" from "job is not in_progress"
// after an UPDATE touched zero rows.
func (r *JobRepository) transitionError(ctx context.Context, id uuid.UUID, target job.Status) error {
	var current job.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read job status")
	}
	return errors.Newf(errors.ErrCodeJobTransitionInvalid,
		"job %s cannot move from %s to %s", id, current, target)
}

// ─────────────────────────────────────────────────────────────────────────────
// RequeueStale
// ─────────────────────────────────────────────────────────────────────────────

// RequeueStale returns jobs stuck in_progress longer than olderThan to
// pending, reporting how many were reclaimed.
func (r *JobRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'in_progress' AND started_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to requeue stale jobs")
	}
	reclaimed := int(tag.RowsAffected())
	if reclaimed > 0 {
		r.logger.Warn("requeued stale jobs", logging.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CountByStatus / FailedJobs
// ─────────────────────────────────────────────────────────────────────────────

// CountByStatus tallies jobs per status. A zero scanID tallies every job.
func (r *JobRepository) CountByStatus(ctx context.Context, scanID uuid.UUID) (map[job.Status]int, error) {
	query := `SELECT status, count(*) FROM jobs GROUP BY status`
	args := []interface{}{}
	if scanID != uuid.Nil {
		query = `SELECT status, count(*) FROM jobs WHERE scan_id = $1 GROUP BY status`
		args = append(args, scanID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[job.Status]int)
	for rows.Next() {
		var (
			status job.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan job count")
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate job counts")
	}
	return counts, nil
}

// FailedJobs lists permanently failed jobs, oldest first. A zero scanID lists
// every permanently failed job.
func (r *JobRepository) FailedJobs(ctx context.Context, scanID uuid.UUID) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'failed' ORDER BY created_at ASC`
	args := []interface{}{}
	if scanID != uuid.Nil {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'failed' AND scan_id = $1 ORDER BY created_at ASC`
		args = append(args, scanID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list failed jobs")
	}
	defer rows.Close()

	var failed []*job.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan job row")
		}
		failed = append(failed, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate failed jobs")
	}
	return failed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

// rowScanner abstracts pgx.Row and pgx.Rows for shared column mapping.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobRow(row rowScanner) (*job.Job, error) {
	var j job.Job
	err := row.Scan(
		&j.ID, &j.ScanID, &j.Coordinate.Lat, &j.Coordinate.Lon, &j.Profile,
		&j.Status, &j.Priority, &j.RetryCount, &j.LastError, &j.NotBefore,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
