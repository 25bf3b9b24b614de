package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// earthRadiusKm is the mean Earth radius used for geodesic lengths.
const earthRadiusKm = 6371.0088

// Haversine returns the great-circle distance in meters between two
// latitude/longitude pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// DistanceKm is the straight-line distance between two coordinates.
func DistanceKm(a, b domain.Coordinate) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
