package usecases

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// ExtractTrack normalizes one of the accepted line shapes into a Track:
// a bare LineString or MultiLineString, either of them wrapped in a
// Feature, or raw GeoJSON bytes encoding any of those. Every other shape
// yields an empty Track.
func ExtractTrack(geometry any) domain.Track {
	switch g := geometry.(type) {
	case orb.LineString:
		return domain.Track{Segments: [][]domain.Coordinate{lineCoords(g)}}
	case orb.MultiLineString:
		segs := make([][]domain.Coordinate, 0, len(g))
		for _, ls := range g {
			segs = append(segs, lineCoords(ls))
		}
		return domain.Track{Segments: segs}
	case *geojson.Feature:
		if g == nil {
			return domain.Track{}
		}
		return extractBare(g.Geometry)
	case geojson.Feature:
		return extractBare(g.Geometry)
	case *geojson.Geometry:
		if g == nil {
			return domain.Track{}
		}
		return extractBare(g.Geometry())
	case json.RawMessage:
		return ExtractTrack([]byte(g))
	case []byte:
		decoded, err := DecodeGeometry(g)
		if err != nil {
			return domain.Track{}
		}
		return ExtractTrack(decoded)
	case domain.Track:
		return g
	default:
		return domain.Track{}
	}
}

// extractBare accepts only the unwrapped line shapes, so a feature nested
// inside a feature is rejected.
func extractBare(g orb.Geometry) domain.Track {
	switch g.(type) {
	case orb.LineString, orb.MultiLineString:
		return ExtractTrack(g)
	default:
		return domain.Track{}
	}
}

// ExtractCoordinates returns the flattened coordinate sequence of geometry.
func ExtractCoordinates(geometry any) []domain.Coordinate {
	return ExtractTrack(geometry).Flatten()
}

// RequireTrack is ExtractTrack failing with domain.ErrEmptyGeometry when no
// coordinate could be extracted.
func RequireTrack(geometry any) (domain.Track, error) {
	t := ExtractTrack(geometry)
	if t.Empty() {
		return domain.Track{}, domain.ErrEmptyGeometry
	}
	return t, nil
}

// DecodeGeometry parses GeoJSON into a *geojson.Feature or an orb.Geometry
// depending on its top-level type.
func DecodeGeometry(data []byte) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		return f, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		return fc, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		return g.Geometry(), nil
	}
}

func lineCoords(ls orb.LineString) []domain.Coordinate {
	out := make([]domain.Coordinate, len(ls))
	for i, p := range ls {
		out[i] = domain.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
	}
	return out
}

// LineString converts coords back to an orb geometry.
func LineString(coords []domain.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = orb.Point{c.Lon, c.Lat}
	}
	return ls
}

// TrackGeometry converts a track back to a LineString, or to a
// MultiLineString when it has several segments.
func TrackGeometry(t domain.Track) orb.Geometry {
	if len(t.Segments) == 1 {
		return LineString(t.Segments[0])
	}
	mls := make(orb.MultiLineString, 0, len(t.Segments))
	for _, seg := range t.Segments {
		mls = append(mls, LineString(seg))
	}
	return mls
}

// SelectedFeatureCollection wraps the track in a single-feature collection,
// the dataset swapped into the route source during a snapshot.
func SelectedFeatureCollection(t domain.Track, name string) ([]byte, error) {
	f := geojson.NewFeature(TrackGeometry(t))
	f.Properties["name"] = name
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc.MarshalJSON()
}
