package geospatial

import (
	"github.com/golang/geo/s2"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// TrackLengthKm returns the geodesic length of the track. Gaps between
// segments are not counted.
func TrackLengthKm(t domain.Track) float64 {
	var total float64
	for _, seg := range t.Segments {
		if len(seg) < 2 {
			continue
		}
		lls := make([]s2.LatLng, len(seg))
		for i, c := range seg {
			lls[i] = s2.LatLngFromDegrees(c.Lat, c.Lon)
		}
		total += s2.PolylineFromLatLngs(lls).Length().Radians() * earthRadiusKm
	}
	return total
}
