package geo

import "github.com/golang/geo/s2"

// EarthRadiusKm is the mean radius of the spherical earth model
const EarthRadiusKm = float64(6371)

// DistanceKm calculates the great-circle distance between two points in kilometers.
// s2 computes the central angle with the haversine formula, so the result is
// symmetric and exactly 0 for identical points.
func DistanceKm(latFrom, lonFrom, latTo, lonTo float64) float64 {
	from := s2.LatLngFromDegrees(latFrom, lonFrom)
	to := s2.LatLngFromDegrees(latTo, lonTo)
	return from.Distance(to).Radians() * EarthRadiusKm
}
