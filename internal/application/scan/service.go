// Package scan orchestrates bulk region scans: accepting a scan request,
// fanning it out into one queued job per grid quantum, reporting live
// progress from the queue, and archiving finished reports to object storage.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	atypes "github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ScanStore persists scan metadata. The postgres repository is the
// production implementation.
type ScanStore interface {
	Create(ctx context.Context, s *atypes.Scan) error
	Get(ctx context.Context, id uuid.UUID) (*atypes.Scan, error)
	List(ctx context.Context, limit int) ([]*atypes.Scan, error)
}

// Archiver stores finished scan reports in object storage and returns the
// object key.
type Archiver interface {
	Archive(ctx context.Context, report *atypes.ScanReport) (string, error)
}

// Announcer broadcasts accepted scans on the event stream.
type Announcer interface {
	AnnounceScan(ctx context.Context, scan *atypes.Scan) error
}

// Service is the bulk-scan API: submission, live status, and report
// archival.
type Service interface {
	// Start validates the request, enumerates the region into quanta, and
	// enqueues one job per quantum under a fresh scan id.
	Start(ctx context.Context, req atypes.ScanRequest) (*atypes.Scan, error)

	// Get returns the scan with live job counts merged in.
	Get(ctx context.Context, scanID uuid.UUID) (*atypes.Scan, error)

	// List returns recent scans, newest first, without live counts.
	List(ctx context.Context, limit int) ([]*atypes.Scan, error)

	// Status builds the current report: job counts plus every permanently
	// failed coordinate with its last error.
	Status(ctx context.Context, scanID uuid.UUID) (*atypes.ScanReport, error)

	// Archive generates the current report and stores it, returning the
	// report and its object key.
	Archive(ctx context.Context, scanID uuid.UUID) (*atypes.ScanReport, string, error)
}

// Deps carries the service's collaborators. Grid, Profiles, Queue, and
// Scans are required; Archive, Announcer, Metrics, and Logger are optional.
type Deps struct {
	Grid      *grid.Grid
	Profiles  *scoring.Registry
	Queue     job.Queue
	Scans     ScanStore
	Archive   Archiver
	Announcer Announcer
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
}

type service struct {
	grid      *grid.Grid
	profiles  *scoring.Registry
	queue     job.Queue
	scans     ScanStore
	archive   Archiver
	announcer Announcer
	metrics   *prometheus.AppMetrics
	log       logging.Logger
}

// NewService validates the dependency set and returns a ready scan service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Grid == nil:
		return nil, errors.Configuration("scan service requires a grid")
	case deps.Profiles == nil:
		return nil, errors.Configuration("scan service requires a profile registry")
	case deps.Queue == nil:
		return nil, errors.Configuration("scan service requires a job queue")
	case deps.Scans == nil:
		return nil, errors.Configuration("scan service requires a scan store")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &service{
		grid:      deps.Grid,
		profiles:  deps.Profiles,
		queue:     deps.Queue,
		scans:     deps.Scans,
		archive:   deps.Archive,
		announcer: deps.Announcer,
		metrics:   deps.Metrics,
		log:       deps.Logger.Named("scan"),
	}, nil
}

func (s *service) Start(ctx context.Context, req atypes.ScanRequest) (*atypes.Scan, error) {
	if _, err := s.profiles.Get(req.Profile); err != nil {
		return nil, err
	}
	if req.ResolutionMeters != 0 && req.ResolutionMeters != s.grid.ResolutionMeters() {
		return nil, errors.New(errors.ErrCodeResolutionMismatch, fmt.Sprintf(
			"requested resolution %dm differs from the running grid's %dm",
			req.ResolutionMeters, s.grid.ResolutionMeters()))
	}

	quanta, err := s.grid.EnumerateRegion(req.Region)
	if err != nil {
		return nil, err
	}

	scanID := uuid.New()
	jobs := make([]*job.Job, len(quanta))
	for i, q := range quanta {
		jobs[i] = job.New(scanID, q.Center(), req.Profile, req.Priority)
	}

	scan := &atypes.Scan{
		ID:               scanID.String(),
		Profile:          req.Profile,
		ResolutionMeters: s.grid.ResolutionMeters(),
		QuantumCount:     len(jobs),
		CreatedAt:        time.Now().UTC(),
	}

	// The scan row goes in before the jobs: an orphaned scan with no jobs
	// reads as complete, while orphaned jobs would reference a scan nobody
	// can look up.
	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, jobs...); err != nil {
		return nil, err
	}

	if s.announcer != nil {
		if err := s.announcer.AnnounceScan(ctx, scan); err != nil {
			s.log.Warn("scan announcement failed",
				logging.String("scan_id", scan.ID),
				logging.Err(err))
		}
	}
	prometheus.RecordScanStarted(s.metrics, req.Profile, len(jobs))

	s.log.Info("scan accepted",
		logging.String("scan_id", scan.ID),
		logging.String("profile", req.Profile),
		logging.Int("quanta", len(jobs)))
	return scan, nil
}

func (s *service) Get(ctx context.Context, scanID uuid.UUID) (*atypes.Scan, error) {
	scan, err := s.scans.Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	counts, err := s.queue.CountByStatus(ctx, scanID)
	if err != nil {
		return nil, err
	}
	scan.Counts = statusCounts(counts)
	return scan, nil
}

func (s *service) List(ctx context.Context, limit int) ([]*atypes.Scan, error) {
	return s.scans.List(ctx, limit)
}

func (s *service) Status(ctx context.Context, scanID uuid.UUID) (*atypes.ScanReport, error) {
	scan, err := s.scans.Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	counts, err := s.queue.CountByStatus(ctx, scanID)
	if err != nil {
		return nil, err
	}
	failedJobs, err := s.queue.FailedJobs(ctx, scanID)
	if err != nil {
		return nil, err
	}

	failed := make([]atypes.FailedCoordinate, len(failedJobs))
	for i, fj := range failedJobs {
		fc := atypes.FailedCoordinate{
			Coordinate: fj.Coordinate,
			Reason:     fj.LastError,
			Attempts:   fj.RetryCount + 1,
		}
		if q, err := s.grid.Resolve(fj.Coordinate); err == nil {
			fc.QuantumID = q.ID
		}
		failed[i] = fc
	}

	report := &atypes.ScanReport{
		ScanID:      scan.ID,
		Profile:     scan.Profile,
		Counts:      statusCounts(counts),
		Failed:      failed,
		GeneratedAt: time.Now().UTC(),
	}

	outcome := prometheus.OutcomeOK
	if len(failed) > 0 {
		outcome = prometheus.OutcomeFailed
	}
	prometheus.RecordScanReport(s.metrics, scan.Profile, outcome)
	return report, nil
}

func (s *service) Archive(ctx context.Context, scanID uuid.UUID) (*atypes.ScanReport, string, error) {
	if s.archive == nil {
		return nil, "", errors.Configuration("report archive is not configured")
	}
	report, err := s.Status(ctx, scanID)
	if err != nil {
		return nil, "", err
	}
	key, err := s.archive.Archive(ctx, report)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("scan report archived",
		logging.String("scan_id", report.ScanID),
		logging.String("object_key", key))
	return report, key, nil
}

func statusCounts(counts map[job.Status]int) atypes.ScanStatusCounts {
	return atypes.ScanStatusCounts{
		Pending:    counts[job.StatusPending],
		InProgress: counts[job.StatusInProgress],
		Done:       counts[job.StatusDone],
		Failed:     counts[job.StatusFailed],
	}
}
