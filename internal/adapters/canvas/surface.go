// Package canvas is an in-process map surface. It draws GeoJSON line
// layers in Web Mercator with gg and implements ports.MapSurface, so PNG
// exports work without a browser.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/pkg/geodoc"
	"github.com/samirrijal/trailexport/internal/pkg/geospatial"
)

// Paint property names understood by the renderer.
const (
	PaintLineColor   = "line-color"
	PaintLineWidth   = "line-width"
	PaintLineOpacity = "line-opacity"
)

// DefaultMaxZoom caps FitBounds.
const DefaultMaxZoom = 17

var (
	ErrUnknownLayer  = errors.New("unknown layer")
	ErrUnknownSource = errors.New("unknown source")
)

type layer struct {
	id         string
	source     string
	paint      map[string]any
	visibility domain.Visibility
}

// Surface implements ports.MapSurface.
type Surface struct {
	mu         sync.Mutex
	width      int
	height     int
	camera     domain.Camera
	background string
	maxZoom    float64

	layers  []*layer
	sources map[string][]byte
	parsed  map[string]*geojson.FeatureCollection
}

// New returns an empty surface of the given pixel size.
func New(width, height int) *Surface {
	return &Surface{
		width:      width,
		height:     height,
		camera:     domain.Camera{Zoom: 1},
		background: "#F2EFE9",
		maxZoom:    DefaultMaxZoom,
		sources:    make(map[string][]byte),
		parsed:     make(map[string]*geojson.FeatureCollection),
	}
}

// AddSource registers a GeoJSON FeatureCollection under id.
func (s *Surface) AddSource(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSource(id, data)
}

// AddLineLayer appends a line layer drawn from source. Layers are painted
// in the order they were added.
func (s *Surface) AddLineLayer(id, source string, paint map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := make(map[string]any, len(paint))
	for k, v := range paint {
		p[k] = v
	}
	s.layers = append(s.layers, &layer{id: id, source: source, paint: p, visibility: domain.Visible})
}

func (s *Surface) layer(id string) (*layer, error) {
	i := slices.IndexFunc(s.layers, func(l *layer) bool { return l.id == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, id)
	}
	return s.layers[i], nil
}

func (s *Surface) Camera() (domain.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera, nil
}

func (s *Surface) SetCamera(cam domain.Camera) error {
	if !cam.Center.Valid() || math.IsNaN(cam.Zoom) || cam.Zoom < 0 {
		return fmt.Errorf("invalid camera %+v", cam)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = cam
	return nil
}

// FitBounds centres b and picks the largest zoom leaving padding pixels on
// every side. Pitch and bearing are kept.
func (s *Surface) FitBounds(b domain.Bounds, padding float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fit := geospatial.FitZoom(b, s.width, s.height, padding, s.maxZoom)
	s.camera.Center = fit.Center
	s.camera.Zoom = fit.Zoom
	return nil
}

func (s *Surface) CanvasSize() (int, int) { return s.width, s.height }

func (s *Surface) HasLayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.layer(id)
	return err == nil
}

func (s *Surface) PaintProperty(id, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(id)
	if err != nil {
		return nil, err
	}
	return l.paint[name], nil
}

func (s *Surface) SetPaintProperty(id, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(id)
	if err != nil {
		return err
	}
	if value == nil {
		delete(l.paint, name)
		return nil
	}
	l.paint[name] = value
	return nil
}

func (s *Surface) LayerVisibility(id string) (domain.Visibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(id)
	if err != nil {
		return "", err
	}
	return l.visibility, nil
}

func (s *Surface) SetLayerVisibility(id string, v domain.Visibility) error {
	if v != domain.Visible && v != domain.Hidden {
		return fmt.Errorf("invalid visibility %q", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(id)
	if err != nil {
		return err
	}
	l.visibility = v
	return nil
}

// SourceData returns the bytes last set for id, unchanged.
func (s *Surface) SourceData(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return slices.Clone(data), nil
}

func (s *Surface) SetSourceData(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return s.setSource(id, data)
}

func (s *Surface) setSource(id string, data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("source %s: %w", id, err)
	}
	s.sources[id] = slices.Clone(data)
	s.parsed[id] = fc
	return nil
}

// WaitIdle returns immediately: rendering happens synchronously in Capture.
func (s *Surface) WaitIdle(ctx context.Context) error {
	return ctx.Err()
}

// Capture renders the visible layers at the current camera.
func (s *Surface) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dc := gg.NewContext(s.width, s.height)
	dc.SetHexColor(s.background)
	dc.Clear()

	cx, cy := geospatial.Project(s.camera.Center, s.camera.Zoom)
	halfW, halfH := float64(s.width)/2, float64(s.height)/2
	dc.Translate(halfW, halfH)
	dc.Rotate(gg.Radians(-s.camera.Bearing))
	dc.Translate(-halfW, -halfH)

	toScreen := func(p orb.Point) (float64, float64) {
		x, y := geospatial.Project(domain.Coordinate{Lon: p.Lon(), Lat: p.Lat()}, s.camera.Zoom)
		return x - cx + halfW, y - cy + halfH
	}

	for _, l := range s.layers {
		if l.visibility == domain.Hidden {
			continue
		}
		fc := s.parsed[l.source]
		if fc == nil {
			continue
		}
		s.stroke(dc, l, fc, toScreen)
	}
	return dc.Image(), nil
}

func (s *Surface) stroke(dc *gg.Context, l *layer, fc *geojson.FeatureCollection, toScreen func(orb.Point) (float64, float64)) {
	hex, _ := l.paint[PaintLineColor].(string)
	c, err := geodoc.ParseHexColor(hex)
	if err != nil {
		c, _ = geodoc.ParseHexColor(domain.DefaultLineColor)
	}
	if op, ok := toFloat(l.paint[PaintLineOpacity]); ok {
		c.A = uint8(math.Max(0, math.Min(1, op)) * 255)
	}
	width, ok := toFloat(l.paint[PaintLineWidth])
	if !ok {
		width = 1
	}

	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, f := range fc.Features {
		var lines []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			lines = []orb.LineString{g}
		case orb.MultiLineString:
			lines = g
		}
		for _, ls := range lines {
			if len(ls) < 2 {
				continue
			}
			x, y := toScreen(ls[0])
			dc.MoveTo(x, y)
			for _, p := range ls[1:] {
				x, y = toScreen(p)
				dc.LineTo(x, y)
			}
			dc.Stroke()
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
