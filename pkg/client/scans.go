package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ScansClient drives bulk scans: submission, status, reports, archival.
type ScansClient struct {
	client *Client
}

// ArchiveResult is the response to archiving a scan report: the report that
// was stored and the object key it lives under.
type ArchiveResult struct {
	Report    analysis.ScanReport `json:"report"`
	ObjectKey string              `json:"object_key"`
}

// Start submits a bulk scan over a region. The server answers 202 with the
// accepted scan; jobs drain asynchronously.
func (s *ScansClient) Start(ctx context.Context, req analysis.ScanRequest) (*analysis.Scan, error) {
	var scan analysis.Scan
	if err := s.client.post(ctx, "/api/v1/scans", req, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// Get fetches one scan with live job counts merged in.
func (s *ScansClient) Get(ctx context.Context, scanID string) (*analysis.Scan, error) {
	var scan analysis.Scan
	path := "/api/v1/scans/" + url.PathEscape(scanID)
	if err := s.client.get(ctx, path, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// List returns recent scans, newest first. A non-positive limit uses the
// server default.
func (s *ScansClient) List(ctx context.Context, limit int) ([]analysis.Scan, error) {
	path := "/api/v1/scans"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var envelope struct {
		Scans []analysis.Scan `json:"scans"`
	}
	if err := s.client.get(ctx, path, &envelope); err != nil {
		return nil, err
	}
	return envelope.Scans, nil
}

// Report builds the scan's current report: per-status counts plus every
// permanently failed coordinate with its last error.
func (s *ScansClient) Report(ctx context.Context, scanID string) (*analysis.ScanReport, error) {
	var report analysis.ScanReport
	path := "/api/v1/scans/" + url.PathEscape(scanID) + "/report"
	if err := s.client.get(ctx, path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Archive stores the scan's current report in object storage and returns the
// report together with its object key.
func (s *ScansClient) Archive(ctx context.Context, scanID string) (*ArchiveResult, error) {
	var result ArchiveResult
	path := "/api/v1/scans/" + url.PathEscape(scanID) + "/archive"
	if err := s.client.post(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
