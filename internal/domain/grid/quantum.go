// Package grid implements the land-quantum bounded context: the deterministic
// lattice that snaps coordinates to stable cell identifiers, the Quantum
// entity representing one cell, and the registry that guarantees one live
// instance per identifier for the lifetime of a run.
//
// The lattice is anchored at (0°, 0°).  A cell's latitude step is constant for
// a given resolution; its longitude step widens toward the poles so that cells
// keep a roughly constant ground width.  Identifiers encode the resolution and
// both lattice indices, so the same physical location always resolves to the
// same identifier under the same resolution.
package grid

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// quantumIDPrefix leads every cell identifier: r<resolution>_<ix>_<iy>.
const quantumIDPrefix = "r"

// Quantum is one cell of the analysis lattice.  Identity fields are immutable
// after construction; the feature record slot is replaced wholesale on each
// re-analysis, never partially mutated.
type Quantum struct {
	ID               string
	ResolutionMeters int
	IX               int64
	IY               int64

	mu         sync.RWMutex
	features   *feature.Record
	featuresAt time.Time
}

// newQuantum constructs a Quantum from lattice indices.  Callers go through
// Grid.Resolve or the registry; the constructor itself performs no validation.
func newQuantum(resolutionMeters int, ix, iy int64) *Quantum {
	return &Quantum{
		ID:               FormatQuantumID(resolutionMeters, ix, iy),
		ResolutionMeters: resolutionMeters,
		IX:               ix,
		IY:               iy,
	}
}

// Center returns the cell's center coordinate.
func (q *Quantum) Center() geo.Coordinate {
	latStep := latStepDegrees(q.ResolutionMeters)
	centerLat := (float64(q.IY) + 0.5) * latStep
	lonStep := lonStepDegrees(q.ResolutionMeters, centerLat)
	return geo.Coordinate{
		Lat: centerLat,
		Lon: (float64(q.IX) + 0.5) * lonStep,
	}
}

// Bounds returns the cell's bounding box.  The box spans one latitude step and
// one longitude step computed at the cell's center latitude, matching the
// lattice used by Resolve.
func (q *Quantum) Bounds() geo.BoundingBox {
	latStep := latStepDegrees(q.ResolutionMeters)
	centerLat := (float64(q.IY) + 0.5) * latStep
	lonStep := lonStepDegrees(q.ResolutionMeters, centerLat)
	return geo.BoundingBox{
		MinLat: float64(q.IY) * latStep,
		MaxLat: float64(q.IY+1) * latStep,
		MinLon: float64(q.IX) * lonStep,
		MaxLon: float64(q.IX+1) * lonStep,
	}
}

// Features returns the current feature record, which may be nil for a quantum
// that has never been analysed.  The returned record must be treated as
// read-only.
func (q *Quantum) Features() *feature.Record {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.features
}

// ReplaceFeatures swaps in a new feature record, superseding the previous one
// in a single step.
func (q *Quantum) ReplaceFeatures(rec *feature.Record) {
	q.mu.Lock()
	q.features = rec
	q.featuresAt = time.Now().UTC()
	q.mu.Unlock()
}

// FeaturesUpdatedAt returns when the feature record was last replaced; the
// zero time means the quantum has never carried features.
func (q *Quantum) FeaturesUpdatedAt() time.Time {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.featuresAt
}

// FormatQuantumID renders the canonical identifier for a cell.
func FormatQuantumID(resolutionMeters int, ix, iy int64) string {
	return fmt.Sprintf("%s%d_%d_%d", quantumIDPrefix, resolutionMeters, ix, iy)
}

// ParseQuantumID splits a canonical identifier into resolution and lattice
// indices.  Malformed identifiers yield a QuantumIDInvalid error.
func ParseQuantumID(id string) (resolutionMeters int, ix, iy int64, err error) {
	malformed := func() (int, int64, int64, error) {
		return 0, 0, 0, errors.New(errors.ErrCodeQuantumIDInvalid,
			fmt.Sprintf("malformed quantum id %q", id))
	}

	if !strings.HasPrefix(id, quantumIDPrefix) {
		return malformed()
	}
	parts := strings.Split(id[len(quantumIDPrefix):], "_")
	if len(parts) != 3 {
		return malformed()
	}

	res, convErr := strconv.Atoi(parts[0])
	if convErr != nil || res < 1 {
		return malformed()
	}
	x, convErr := strconv.ParseInt(parts[1], 10, 64)
	if convErr != nil {
		return malformed()
	}
	y, convErr := strconv.ParseInt(parts[2], 10, 64)
	if convErr != nil {
		return malformed()
	}
	return res, x, y, nil
}
