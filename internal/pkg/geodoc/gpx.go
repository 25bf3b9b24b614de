package geodoc

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Creator is written to the creator attribute of every GPX document.
const Creator = "Trail Export"

// TrackGPX renders a GPX 1.1 document with one track holding one segment.
// Every point carries an elevation of 0. With VariantWithOrigin and a valid
// origin, the origin is emitted as a waypoint ahead of the track.
func TrackGPX(coords []domain.Coordinate, name string, opts domain.ExportSettings, variant domain.ExportVariant, origin *domain.UserLocation) ([]byte, error) {
	if len(coords) == 0 {
		return nil, domain.ErrEmptyGeometry
	}
	opts = opts.WithDefaults(domain.ExportSettings{})

	points := make([]gpx.GPXPoint, len(coords))
	for i, c := range coords {
		points[i] = gpxPoint(c)
	}

	doc := &gpx.GPX{
		Version:     "1.1",
		Creator:     Creator,
		Name:        opts.TrackName,
		Description: opts.TrackDescription,
		Tracks: []gpx.GPXTrack{{
			Name:        name,
			Description: opts.TrackDescription,
			Segments:    []gpx.GPXTrackSegment{{Points: points}},
		}},
	}

	if variant == domain.VariantWithOrigin && domain.IsValidLocation(origin) {
		wpt := gpxPoint(origin.Coordinate())
		wpt.Name = originName
		wpt.Description = originDescription
		doc.Waypoints = []gpx.GPXPoint{wpt}
	}

	out, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("write gpx: %w", err)
	}
	return out, nil
}

func gpxPoint(c domain.Coordinate) gpx.GPXPoint {
	return gpx.GPXPoint{
		Point: gpx.Point{
			Latitude:  c.Lat,
			Longitude: c.Lon,
			Elevation: *gpx.NewNullableFloat64(0),
		},
	}
}
