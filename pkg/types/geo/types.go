// Package geo defines the geographic value types shared by the API server,
// the worker, and the Go SDK. All angles are decimal degrees (WGS84), all
// distances are meters unless a field name says otherwise.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusMeters is the mean radius used for spherical distance math.
	EarthRadiusMeters = 6371000.0

	// MetersPerDegreeLat approximates the north-south extent of one degree of
	// latitude. Longitude scales by cos(lat); both match the lattice math in
	// internal/domain/grid, so wire types and cell identities agree.
	MetersPerDegreeLat = 111000.0
)

// Coordinate is a (latitude, longitude) pair — the only externally supplied
// identity for a location. Immutable value type.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate lies in the WGS84 domain.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("coordinate contains NaN")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %.6f out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %.6f out of range [-180, 180]", c.Lon)
	}
	return nil
}

// String renders the coordinate as "lat,lon" with six decimal places
// (roughly 10 cm of precision, more than any provider supplies).
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// DistanceMeters returns the haversine great-circle distance to other.
func (c Coordinate) DistanceMeters(other Coordinate) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLon := (other.Lon - c.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Validate checks corner ordering and coordinate domains.
func (b BoundingBox) Validate() error {
	if err := (Coordinate{Lat: b.MinLat, Lon: b.MinLon}).Validate(); err != nil {
		return fmt.Errorf("bounding box min corner: %w", err)
	}
	if err := (Coordinate{Lat: b.MaxLat, Lon: b.MaxLon}).Validate(); err != nil {
		return fmt.Errorf("bounding box max corner: %w", err)
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("min_lat %.6f exceeds max_lat %.6f", b.MinLat, b.MaxLat)
	}
	if b.MinLon > b.MaxLon {
		return fmt.Errorf("min_lon %.6f exceeds max_lon %.6f", b.MinLon, b.MaxLon)
	}
	return nil
}

// Contains reports whether the coordinate lies inside the box (inclusive).
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// BoxAround returns the bounding box covering a circle of radiusMeters around
// center. Longitude extent widens with latitude; near the poles the box clamps
// to the coordinate domain rather than wrapping.
func BoxAround(center Coordinate, radiusMeters float64) BoundingBox {
	latDelta := radiusMeters / MetersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lonDelta := radiusMeters / (MetersPerDegreeLat * cosLat)

	return BoundingBox{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MinLon: math.Max(center.Lon-lonDelta, -180),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MaxLon: math.Min(center.Lon+lonDelta, 180),
	}
}

// Region describes the area of a bulk scan: either an explicit bounding box or
// a center plus radius. Exactly one form must be set.
type Region struct {
	Box          *BoundingBox `json:"box,omitempty"`
	Center       *Coordinate  `json:"center,omitempty"`
	RadiusMeters float64      `json:"radius_meters,omitempty"`
}

// Validate checks that exactly one region form is present and well-formed.
func (r Region) Validate() error {
	switch {
	case r.Box != nil && r.Center != nil:
		return fmt.Errorf("region must set either box or center+radius, not both")
	case r.Box != nil:
		return r.Box.Validate()
	case r.Center != nil:
		if err := r.Center.Validate(); err != nil {
			return err
		}
		if r.RadiusMeters <= 0 {
			return fmt.Errorf("radius_meters must be positive, got %.1f", r.RadiusMeters)
		}
		return nil
	default:
		return fmt.Errorf("region is empty")
	}
}

// Bounds resolves the region to a bounding box regardless of input form.
func (r Region) Bounds() BoundingBox {
	if r.Box != nil {
		return *r.Box
	}
	if r.Center != nil {
		return BoxAround(*r.Center, r.RadiusMeters)
	}
	return BoundingBox{}
}
