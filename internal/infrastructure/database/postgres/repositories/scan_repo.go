package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ─────────────────────────────────────────────────────────────────────────────
// ScanRepository
// ─────────────────────────────────────────────────────────────────────────────

// ScanRepository persists scan metadata. Per-status job counts are not stored
// here; they are derived live from the jobs table via job.Queue.CountByStatus.
type ScanRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewScanRepository constructs a ready-to-use ScanRepository.
func NewScanRepository(pool *pgxpool.Pool, logger logging.Logger) *ScanRepository {
	return &ScanRepository{pool: pool, logger: logger}
}

// Create records a newly submitted scan.
func (r *ScanRepository) Create(ctx context.Context, s *analysis.Scan) error {
	if s == nil {
		return errors.New(errors.CodeInvalidParam, "scan must not be nil")
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidParam, "scan id must be a UUID")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO scans (id, profile, resolution_meters, quantum_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, s.Profile, s.ResolutionMeters, s.QuantumCount, s.CreatedAt)
	if err != nil {
		r.logger.Error("scan insert failed", logging.String("scan_id", s.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert scan")
	}
	return nil
}

// Get loads scan metadata by id. The returned Counts are zero; callers merge
// in live queue tallies.
func (r *ScanRepository) Get(ctx context.Context, id uuid.UUID) (*analysis.Scan, error) {
	var s analysis.Scan
	err := r.pool.QueryRow(ctx, `
		SELECT id, profile, resolution_meters, quantum_count, created_at
		FROM scans
		WHERE id = $1`, id).
		Scan(&s.ID, &s.Profile, &s.ResolutionMeters, &s.QuantumCount, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeScanNotFound, "scan %s not found", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load scan")
	}
	return &s, nil
}

// List returns the most recently submitted scans, newest first.
func (r *ScanRepository) List(ctx context.Context, limit int) ([]*analysis.Scan, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, profile, resolution_meters, quantum_count, created_at
		FROM scans
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list scans")
	}
	defer rows.Close()

	var scans []*analysis.Scan
	for rows.Next() {
		var s analysis.Scan
		if err := rows.Scan(&s.ID, &s.Profile, &s.ResolutionMeters, &s.QuantumCount, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan scan row")
		}
		scans = append(scans, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate scans")
	}
	return scans, nil
}
