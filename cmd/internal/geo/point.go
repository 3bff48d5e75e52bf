package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// GeoJSONTypePoint is the only GeoJSON geometry type this service stores.
const GeoJSONTypePoint = "Point"

var (
	ErrInvalidPoint   = errors.New("geo: invalid point")
	ErrUnsupportedGeo = errors.New("geo: unsupported geometry type")
)

// Point is a position on the sphere. Lon is in [-180, 180], Lat in [-90, 90].
type Point struct {
	Lon float64
	Lat float64
}

// NewPoint builds a Point from latitude/longitude as they arrive in request bodies.
// The argument order mirrors the API field names; the stored order is always lon, lat.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lon: lon, Lat: lat}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate reports whether p is a finite coordinate within range.
func (p Point) Validate() error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return ErrInvalidPoint
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// Coordinates returns the GeoJSON coordinate pair [lon, lat].
func (p Point) Coordinates() [2]float64 { return [2]float64{p.Lon, p.Lat} }

func (p Point) String() string {
	return fmt.Sprintf("POINT(%g %g)", p.Lon, p.Lat)
}

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// MarshalJSON encodes p as {"type":"Point","coordinates":[lon,lat]}.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{Type: GeoJSONTypePoint, Coordinates: p.Coordinates()})
}

// UnmarshalJSON decodes a GeoJSON point. A missing type is accepted as Point.
func (p *Point) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != GeoJSONTypePoint {
		return fmt.Errorf("%w: %q", ErrUnsupportedGeo, raw.Type)
	}
	if len(raw.Coordinates) != 2 {
		return fmt.Errorf("%w: want 2 coordinates, got %d", ErrInvalidPoint, len(raw.Coordinates))
	}
	out := Point{Lon: raw.Coordinates[0], Lat: raw.Coordinates[1]}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}
