package minio

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ─────────────────────────────────────────────────────────────────────────────
// ReportArchive
// ─────────────────────────────────────────────────────────────────────────────

// ObjectStore is the narrow storage surface the archive needs; Client
// satisfies it against real object storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

var _ ObjectStore = (*Client)(nil)

const (
	reportPrefix      = "scans/"
	reportObject      = "report.json"
	reportContentType = "application/json"
)

// ReportArchive stores one report object per scan, replaced wholesale each
// time the report is regenerated.
type ReportArchive struct {
	store  ObjectStore
	logger logging.Logger
}

// NewReportArchive constructs an archive over an object store.
func NewReportArchive(store ObjectStore, logger logging.Logger) *ReportArchive {
	return &ReportArchive{store: store, logger: logger}
}

func reportKey(scanID string) string {
	return reportPrefix + scanID + "/" + reportObject
}

// Archive stores the report, returning the object key it was written under.
func (a *ReportArchive) Archive(ctx context.Context, report *analysis.ScanReport) (string, error) {
	if report == nil || report.ScanID == "" {
		return "", errors.New(errors.CodeInvalidParam, "scan report must carry a scan id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal scan report")
	}

	key := reportKey(report.ScanID)
	if err := a.store.Put(ctx, key, data, reportContentType); err != nil {
		return "", err
	}
	a.logger.Info("scan report archived",
		logging.String("scan_id", report.ScanID),
		logging.String("key", key),
		logging.Int("failed_coordinates", len(report.Failed)))
	return key, nil
}

// Load retrieves the archived report for a scan.
func (a *ReportArchive) Load(ctx context.Context, scanID string) (*analysis.ScanReport, error) {
	data, err := a.store.Fetch(ctx, reportKey(scanID))
	if err != nil {
		return nil, err
	}
	var report analysis.ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal scan report")
	}
	return &report, nil
}

// ListArchived returns the scan ids with an archived report.
func (a *ReportArchive) ListArchived(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, reportPrefix)
		id, object, found := strings.Cut(rest, "/")
		if !found || object != reportObject || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DownloadURL returns a presigned, time-limited URL for a scan's report.
func (a *ReportArchive) DownloadURL(ctx context.Context, scanID string, expiry time.Duration) (string, error) {
	return a.store.PresignGet(ctx, reportKey(scanID), expiry)
}
