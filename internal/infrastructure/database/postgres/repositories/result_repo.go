package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ─────────────────────────────────────────────────────────────────────────────
// ResultRepository
// ─────────────────────────────────────────────────────────────────────────────

// ResultRepository stores the latest analysis record per (quantum, profile).
// Saving replaces the previous record wholesale; there is no result history.
// The full record lives in a JSONB column, with score, disqualification and
// timestamp lifted into plain columns for indexing.
type ResultRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewResultRepository constructs a ready-to-use ResultRepository.
func NewResultRepository(pool *pgxpool.Pool, logger logging.Logger) *ResultRepository {
	return &ResultRepository{pool: pool, logger: logger}
}

// Save upserts the analysis record for its (quantum, profile) pair.
func (r *ResultRepository) Save(ctx context.Context, rec *analysis.AnalysisRecord) error {
	if rec == nil || rec.QuantumID == "" {
		return errors.New(errors.CodeInvalidParam, "analysis record must carry a quantum id")
	}
	if rec.Result.Profile == "" {
		return errors.New(errors.CodeInvalidParam, "analysis record must carry a profile")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal analysis record")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analysis_results (quantum_id, profile, score, disqualified, record, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quantum_id, profile) DO UPDATE SET
			score        = EXCLUDED.score,
			disqualified = EXCLUDED.disqualified,
			record       = EXCLUDED.record,
			recorded_at  = EXCLUDED.recorded_at`,
		rec.QuantumID, rec.Result.Profile, rec.Result.Score, rec.Result.Disqualified,
		payload, rec.RecordedAt)
	if err != nil {
		r.logger.Error("result upsert failed",
			logging.String("quantum_id", rec.QuantumID),
			logging.String("profile", rec.Result.Profile),
			logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert analysis result")
	}
	return nil
}

// Get loads the stored record for one (quantum, profile) pair.
func (r *ResultRepository) Get(ctx context.Context, quantumID, profile string) (*analysis.AnalysisRecord, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT record FROM analysis_results
		WHERE quantum_id = $1 AND profile = $2`, quantumID, profile).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeQuantumNotFound,
				"no stored result for quantum %s under profile %s", quantumID, profile)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load analysis result")
	}
	return decodeRecord(payload)
}

// Latest loads the most recently recorded result for a quantum across all
// profiles.
func (r *ResultRepository) Latest(ctx context.Context, quantumID string) (*analysis.AnalysisRecord, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT record FROM analysis_results
		WHERE quantum_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`, quantumID).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeQuantumNotFound,
				"no stored result for quantum %s", quantumID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load analysis result")
	}
	return decodeRecord(payload)
}

// TopByScore lists the highest-scoring non-disqualified records for a profile.
func (r *ResultRepository) TopByScore(ctx context.Context, profile string, limit int) ([]*analysis.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT record FROM analysis_results
		WHERE profile = $1 AND disqualified = FALSE
		ORDER BY score DESC
		LIMIT $2`, profile, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query top results")
	}
	defer rows.Close()

	var records []*analysis.AnalysisRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan result row")
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate results")
	}
	return records, nil
}

func decodeRecord(payload []byte) (*analysis.AnalysisRecord, error) {
	var rec analysis.AnalysisRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal analysis record")
	}
	return &rec, nil
}
