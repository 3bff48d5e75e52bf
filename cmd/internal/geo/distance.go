package geo

import "math"

// EarthRadiusMeters is the mean Earth radius. PostGIS uses the same value for its
// spherical (use_spheroid=false) distance, so both stores agree on results.
const EarthRadiusMeters = 6371008.8

// metersPerDegree is the length of one degree of latitude on the sphere.
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

// DistanceMeters returns the great-circle distance between a and b (haversine).
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h just past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}
