// Package analysis orchestrates the per-quantum analysis pipeline: resolve
// the job's coordinate to a grid quantum, fetch its features, score them
// against the requested profile, run mismatch detection, refresh the
// similarity index, and persist and publish the resulting record. The
// pipeline is the unit of work executed by the worker pool; everything it
// touches is idempotent, so a re-run after a partial failure converges on
// the same record.
package analysis

import (
	"context"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// Sink receives every completed analysis record, typically to publish it on
// the event stream. A sink must tolerate duplicate records: the pipeline
// re-delivers after partial failures.
type Sink interface {
	Write(ctx context.Context, rec *atypes.AnalysisRecord) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec *atypes.AnalysisRecord) error

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, rec *atypes.AnalysisRecord) error {
	return f(ctx, rec)
}

// NopSink returns a sink that discards every record.
func NopSink() Sink {
	return SinkFunc(func(context.Context, *atypes.AnalysisRecord) error { return nil })
}

// ResultStore persists the canonical copy of each analysis record.
type ResultStore interface {
	Save(ctx context.Context, rec *atypes.AnalysisRecord) error
}

// Outcome summarizes one analyzed quantum for the caller.
type Outcome struct {
	QuantumID    string
	Score        float64
	Disqualified bool
	Mismatches   int
	Record       *atypes.AnalysisRecord
}

// Deps carries the pipeline's collaborators. Grid, Profiles, Scorer,
// Detector, and Provider are required; Estimator, Index, Results, Sink,
// Metrics, and Logger are optional and default to no-ops.
type Deps struct {
	Grid      *grid.Grid
	Profiles  *scoring.Registry
	Scorer    *scoring.Scorer
	Detector  *mismatch.Detector
	Provider  provider.FeatureProvider
	Estimator provider.Estimator
	Index     similarity.Index
	Results   ResultStore
	Sink      Sink
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
}

// Pipeline analyzes one land quantum per call.
type Pipeline struct {
	deps Deps
	log  logging.Logger
}

// NewPipeline validates the dependency set and returns a ready pipeline.
func NewPipeline(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Grid == nil:
		return nil, errors.Configuration("analysis pipeline requires a grid")
	case deps.Profiles == nil:
		return nil, errors.Configuration("analysis pipeline requires a profile registry")
	case deps.Scorer == nil:
		return nil, errors.Configuration("analysis pipeline requires a scorer")
	case deps.Detector == nil:
		return nil, errors.Configuration("analysis pipeline requires a mismatch detector")
	case deps.Provider == nil:
		return nil, errors.Configuration("analysis pipeline requires a feature provider")
	}
	if deps.Sink == nil {
		deps.Sink = NopSink()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Pipeline{deps: deps, log: deps.Logger.Named("pipeline")}, nil
}

// Analyze runs the full pipeline for one job and returns the persisted
// outcome. The profile is resolved before anything is fetched so that a
// misconfigured job fails fast without burning provider quota.
func (p *Pipeline) Analyze(ctx context.Context, j *job.Job) (*Outcome, error) {
	if j == nil {
		return nil, errors.InvalidParam("job must not be nil")
	}
	started := time.Now()

	profile, err := p.deps.Profiles.Get(j.Profile)
	if err != nil {
		return nil, err
	}

	fetchStart := time.Now()
	rec, err := p.deps.Provider.FetchFeatures(ctx, j.Coordinate)
	prometheus.RecordProviderFetch(p.deps.Metrics, p.deps.Provider.Name(), err, time.Since(fetchStart))
	if err != nil {
		return nil, providerFailure(p.deps.Provider.Name(), err)
	}

	q, err := p.deps.Grid.GetOrCreate(j.Coordinate)
	if err != nil {
		return nil, err
	}
	q.ReplaceFeatures(rec)

	res, err := p.deps.Scorer.Score(rec, profile)
	if err != nil {
		return nil, err
	}

	var learned *float64
	if p.deps.Estimator != nil {
		estimate, ok, err := p.deps.Estimator.Predict(ctx, rec)
		if err != nil {
			return nil, providerFailure("estimator", err)
		}
		if ok {
			learned = &estimate
		}
	}

	ruleScore := res.Score
	found := p.deps.Detector.Detect(mismatch.Observation{
		QuantumID: q.ID,
		Features:  rec,
		RuleScore: &ruleScore,
		Learned:   learned,
	})

	// The index is a secondary projection: a failed update degrades
	// similarity queries but must not fail an otherwise complete analysis.
	if p.deps.Index != nil {
		if err := p.deps.Index.Index(ctx, q.ID, rec); err != nil {
			p.log.Warn("similarity index update failed",
				logging.String("quantum_id", q.ID),
				logging.Err(err))
			prometheus.RecordError(p.deps.Metrics, "similarity_index", string(errors.GetCode(err)))
		}
	}

	mismatchDTOs := make([]atypes.Mismatch, len(found))
	for i, mm := range found {
		mismatchDTOs[i] = mm.ToDTO()
	}
	record := &atypes.AnalysisRecord{
		QuantumID:  q.ID,
		Coordinate: q.Center(),
		Features:   rec.ToDTO(),
		Result:     res.ToDTO(q.ID),
		Learned:    learned,
		Mismatches: mismatchDTOs,
		RecordedAt: time.Now().UTC(),
	}

	if p.deps.Results != nil {
		if err := p.deps.Results.Save(ctx, record); err != nil {
			return nil, err
		}
	}
	if err := p.deps.Sink.Write(ctx, record); err != nil {
		return nil, err
	}

	prometheus.RecordScore(p.deps.Metrics, profile.Name, res.Score, res.Disqualified)
	for _, mm := range found {
		prometheus.RecordMismatch(p.deps.Metrics, profile.Name, string(mm.Category))
	}

	p.log.Debug("quantum analyzed",
		logging.String("quantum_id", q.ID),
		logging.String("profile", profile.Name),
		logging.Float64("score", res.Score),
		logging.Bool("disqualified", res.Disqualified),
		logging.Int("mismatches", len(found)),
		logging.Duration("took", time.Since(started)))

	return &Outcome{
		QuantumID:    q.ID,
		Score:        res.Score,
		Disqualified: res.Disqualified,
		Mismatches:   len(found),
		Record:       record,
	}, nil
}

// providerFailure tags raw transport errors with a retryable provider code.
// Errors that already carry a platform code pass through unchanged.
func providerFailure(source string, err error) error {
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}
	return errors.Provider(source, err)
}
