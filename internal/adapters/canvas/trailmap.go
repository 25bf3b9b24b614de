package canvas

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Layout names the sources and layers of a trail map.
type Layout struct {
	RouteSource   string
	TrailLayers   []string
	ProgressLayer string
	OverlayLayers []string
}

const emptyCollection = `{"type":"FeatureCollection","features":[]}`

// NewTrailMap builds a surface with the trail map style: a casing and a
// coloured line for every trail in routes, then the progress and overlay
// layers on empty sources of their own. The camera frames all routes.
func NewTrailMap(width, height int, layout Layout, routes []byte, lineColor string) (*Surface, error) {
	if lineColor == "" {
		lineColor = domain.DefaultLineColor
	}
	s := New(width, height)
	if err := s.AddSource(layout.RouteSource, routes); err != nil {
		return nil, err
	}

	for i, id := range layout.TrailLayers {
		paint := map[string]any{PaintLineColor: lineColor, PaintLineWidth: 3.0}
		if i == 0 && len(layout.TrailLayers) > 1 {
			paint = map[string]any{PaintLineColor: "#FFFFFF", PaintLineWidth: 5.0}
		}
		s.AddLineLayer(id, layout.RouteSource, paint)
	}

	extra := layout.OverlayLayers
	if layout.ProgressLayer != "" {
		extra = append([]string{layout.ProgressLayer}, extra...)
	}
	seen := map[string]bool{}
	for _, id := range layout.TrailLayers {
		seen[id] = true
	}
	for _, id := range extra {
		if seen[id] {
			continue
		}
		seen[id] = true
		src := "overlay:" + id
		if err := s.AddSource(src, []byte(emptyCollection)); err != nil {
			return nil, err
		}
		s.AddLineLayer(id, src, map[string]any{PaintLineColor: "#7A7A7A", PaintLineWidth: 1.0})
	}

	fc, err := geojson.UnmarshalFeatureCollection(routes)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	if bound, ok := collectionBounds(fc); ok {
		_ = s.FitBounds(bound, 0.08*float64(min(width, height)))
	}
	return s, nil
}

func collectionBounds(fc *geojson.FeatureCollection) (domain.Bounds, bool) {
	var coords []domain.Coordinate
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		coords = append(coords,
			domain.Coordinate{Lon: b.Min.Lon(), Lat: b.Min.Lat()},
			domain.Coordinate{Lon: b.Max.Lon(), Lat: b.Max.Lat()},
		)
	}
	return domain.BoundsOf(coords)
}
