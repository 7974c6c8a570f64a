package grid

import (
	"fmt"
	"math"
	"sync"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// minCosLat keeps the longitude step finite at the poles; it mirrors the
// guard in geo.BoxAround.
const minCosLat = 1e-6

// latStepDegrees returns the latitude extent of one cell in degrees.
func latStepDegrees(resolutionMeters int) float64 {
	return float64(resolutionMeters) / geo.MetersPerDegreeLat
}

// lonStepDegrees returns the longitude extent of one cell in degrees at the
// given latitude.  Cells widen in degrees toward the poles so their ground
// width stays near the configured resolution.
func lonStepDegrees(resolutionMeters int, latDegrees float64) float64 {
	cosLat := math.Cos(latDegrees * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	return float64(resolutionMeters) / (geo.MetersPerDegreeLat * cosLat)
}

// Grid owns the lattice math for one resolution and the registry that keeps a
// single live Quantum per identifier.  All methods are safe for concurrent
// use.
type Grid struct {
	resolutionMeters int
	latStep          float64

	mu    sync.RWMutex
	cells map[string]*Quantum
}

// NewGrid constructs a Grid for the given resolution.  The resolution is fixed
// for the lifetime of the Grid; mixing resolutions within one run is a
// configuration error callers must reject before reaching this package.
func NewGrid(resolutionMeters int) (*Grid, error) {
	if resolutionMeters < 1 {
		return nil, errors.New(errors.ErrCodeResolutionInvalid,
			fmt.Sprintf("grid resolution must be >= 1 meter, got %d", resolutionMeters))
	}
	return &Grid{
		resolutionMeters: resolutionMeters,
		latStep:          latStepDegrees(resolutionMeters),
		cells:            make(map[string]*Quantum),
	}, nil
}

// ResolutionMeters returns the fixed cell resolution.
func (g *Grid) ResolutionMeters() int {
	return g.resolutionMeters
}

// indicesFor snaps a coordinate to lattice indices.  The latitude index is
// computed first because the longitude step depends on the cell's center
// latitude.
func (g *Grid) indicesFor(c geo.Coordinate) (ix, iy int64) {
	iy = int64(math.Floor(c.Lat / g.latStep))
	centerLat := (float64(iy) + 0.5) * g.latStep
	lonStep := lonStepDegrees(g.resolutionMeters, centerLat)
	ix = int64(math.Floor(c.Lon / lonStep))
	return ix, iy
}

// Resolve snaps a coordinate to its cell and returns an unregistered Quantum
// describing that cell.  Resolve is pure: it never touches the registry, and
// calling it twice for coordinates in the same cell yields equal identifiers.
// Callers that need the shared instance use GetOrCreate.
func (g *Grid) Resolve(c geo.Coordinate) (*Quantum, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ix, iy := g.indicesFor(c)
	return newQuantum(g.resolutionMeters, ix, iy), nil
}

// GetOrCreate returns the registered Quantum for the cell containing c,
// creating and registering it on first reference.  Two coordinates inside the
// same cell always yield the same instance.
func (g *Grid) GetOrCreate(c geo.Coordinate) (*Quantum, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ix, iy := g.indicesFor(c)
	return g.getOrCreateIndices(ix, iy), nil
}

// GetOrCreateByID returns the registered Quantum for id, creating it on first
// reference.  The id must carry this grid's resolution.
func (g *Grid) GetOrCreateByID(id string) (*Quantum, error) {
	res, ix, iy, err := ParseQuantumID(id)
	if err != nil {
		return nil, err
	}
	if res != g.resolutionMeters {
		return nil, errors.New(errors.ErrCodeResolutionMismatch,
			fmt.Sprintf("quantum %s has resolution %dm; grid runs at %dm", id, res, g.resolutionMeters))
	}
	return g.getOrCreateIndices(ix, iy), nil
}

// Get returns the registered Quantum for id without creating one.
func (g *Grid) Get(id string) (*Quantum, bool) {
	g.mu.RLock()
	q, ok := g.cells[id]
	g.mu.RUnlock()
	return q, ok
}

// Len returns the number of registered quanta.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

func (g *Grid) getOrCreateIndices(ix, iy int64) *Quantum {
	id := FormatQuantumID(g.resolutionMeters, ix, iy)

	g.mu.RLock()
	q, ok := g.cells[id]
	g.mu.RUnlock()
	if ok {
		return q
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if q, ok = g.cells[id]; ok {
		return q
	}
	q = newQuantum(g.resolutionMeters, ix, iy)
	g.cells[id] = q
	return q
}

// Neighbors returns every registered-or-created quantum within radiusMeters of
// the cell identified by id, excluding the cell itself.  Cells are emitted in
// a fixed deterministic order: increasing Chebyshev ring, and within a ring by
// ascending row (iy) then ascending column (ix) offset.  A radius smaller than
// one cell yields an empty list.
func (g *Grid) Neighbors(id string, radiusMeters float64) ([]*Quantum, error) {
	if radiusMeters < 0 || math.IsNaN(radiusMeters) {
		return nil, errors.InvalidParam(
			fmt.Sprintf("neighbor radius must be >= 0, got %g", radiusMeters))
	}
	res, ix, iy, err := ParseQuantumID(id)
	if err != nil {
		return nil, err
	}
	if res != g.resolutionMeters {
		return nil, errors.New(errors.ErrCodeResolutionMismatch,
			fmt.Sprintf("quantum %s has resolution %dm; grid runs at %dm", id, res, g.resolutionMeters))
	}

	rings := int(math.Ceil(radiusMeters / float64(g.resolutionMeters)))
	if rings == 0 {
		return []*Quantum{}, nil
	}

	out := make([]*Quantum, 0, (2*rings+1)*(2*rings+1)-1)
	for ring := 1; ring <= rings; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if max64(abs64(int64(dx)), abs64(int64(dy))) != int64(ring) {
					continue
				}
				out = append(out, g.getOrCreateIndices(ix+int64(dx), iy+int64(dy)))
			}
		}
	}
	return out, nil
}

// EnumerateRegion returns every quantum whose cell intersects the region, in
// row-major order (south to north, west to east).  Because the longitude step
// varies with latitude, the column range is recomputed per row.  All returned
// quanta are registered.
func (g *Grid) EnumerateRegion(region geo.Region) ([]*Quantum, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	box := region.Bounds()

	iyMin := int64(math.Floor(box.MinLat / g.latStep))
	iyMax := int64(math.Floor(box.MaxLat / g.latStep))

	var out []*Quantum
	for iy := iyMin; iy <= iyMax; iy++ {
		centerLat := (float64(iy) + 0.5) * g.latStep
		lonStep := lonStepDegrees(g.resolutionMeters, centerLat)
		ixMin := int64(math.Floor(box.MinLon / lonStep))
		ixMax := int64(math.Floor(box.MaxLon / lonStep))
		for ix := ixMin; ix <= ixMax; ix++ {
			out = append(out, g.getOrCreateIndices(ix, iy))
		}
	}
	return out, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
