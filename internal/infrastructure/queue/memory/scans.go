package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ScanStore is the in-memory scan metadata store paired with Queue. It
// mirrors the postgres repository's semantics: Get returns zero Counts
// (callers merge live queue tallies), List is newest first.
type ScanStore struct {
	mu    sync.Mutex
	scans map[uuid.UUID]analysis.Scan
}

// NewScanStore constructs an empty scan store.
func NewScanStore() *ScanStore {
	return &ScanStore{scans: make(map[uuid.UUID]analysis.Scan)}
}

// Create records a newly submitted scan.
func (s *ScanStore) Create(ctx context.Context, scan *analysis.Scan) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueueUnavailable, "create canceled")
	}
	if scan == nil {
		return errors.New(errors.CodeInvalidParam, "scan must not be nil")
	}
	id, err := uuid.Parse(scan.ID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidParam, "scan id must be a UUID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[id]; exists {
		return errors.Newf(errors.ErrCodeConflict, "scan %s already exists", scan.ID)
	}
	s.scans[id] = *scan
	return nil
}

// Get loads scan metadata by id.
func (s *ScanStore) Get(ctx context.Context, id uuid.UUID) (*analysis.Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "get canceled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeScanNotFound, "scan %s not found", id)
	}
	scan.Counts = analysis.ScanStatusCounts{}
	return &scan, nil
}

// List returns the most recently submitted scans, newest first.
func (s *ScanStore) List(ctx context.Context, limit int) ([]*analysis.Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueueUnavailable, "list canceled")
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*analysis.Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		scan := scan
		out = append(out, &scan)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
