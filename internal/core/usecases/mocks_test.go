package usecases_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"maps"
	"sync"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
)

// --- Fake MapSurface ---

type fakeSurface struct {
	mu         sync.Mutex
	camera     domain.Camera
	paint      map[string]map[string]any
	visibility map[string]domain.Visibility
	sources    map[string][]byte
	width      int
	height     int

	// failures keyed by operation name, e.g. "capture" or "setVisibility:admin-boundaries"
	fail     map[string]error
	panicOn  string
	fitCalls []float64
	captured int

	captureFn func(ctx context.Context) (image.Image, error)
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		camera: domain.Camera{Center: domain.Coordinate{Lon: 19.5, Lat: 50.5}, Zoom: 9, Pitch: 45, Bearing: 30},
		paint: map[string]map[string]any{
			"trail-line-casing": {"line-width": 3.0},
			"trail-line":        {"line-width": 2.0},
			"trail-progress":    {"line-width": 4.0},
		},
		visibility: map[string]domain.Visibility{
			"trail-line-casing":       domain.Visible,
			"trail-line":              domain.Visible,
			"trail-progress":          domain.Visible,
			"trail-progress-animated": domain.Visible,
			"admin-boundaries":        domain.Visible,
			"admin-boundaries-labels": domain.Hidden,
		},
		sources: map[string][]byte{
			"trails": []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"other"},"geometry":{"type":"LineString","coordinates":[[1,1],[2,2]]}}]}`),
		},
		width:  1000,
		height: 800,
		fail:   map[string]error{},
	}
}

type surfaceView struct {
	camera     domain.Camera
	paint      map[string]any
	visibility map[string]domain.Visibility
	source     string
}

func (s *fakeSurface) view() surfaceView {
	s.mu.Lock()
	defer s.mu.Unlock()
	widths := make(map[string]any)
	for layer, props := range s.paint {
		widths[layer] = props["line-width"]
	}
	return surfaceView{
		camera:     s.camera,
		paint:      widths,
		visibility: maps.Clone(s.visibility),
		source:     string(s.sources["trails"]),
	}
}

func (s *fakeSurface) check(op string) error {
	if s.panicOn == op {
		panic("surface exploded during " + op)
	}
	return s.fail[op]
}

func (s *fakeSurface) Camera() (domain.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("camera"); err != nil {
		return domain.Camera{}, err
	}
	return s.camera, nil
}

func (s *fakeSurface) SetCamera(cam domain.Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setCamera"); err != nil {
		return err
	}
	s.camera = cam
	return nil
}

func (s *fakeSurface) FitBounds(b domain.Bounds, padding float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("fitBounds"); err != nil {
		return err
	}
	s.fitCalls = append(s.fitCalls, padding)
	s.camera.Center = b.Center()
	s.camera.Zoom = 12
	return nil
}

func (s *fakeSurface) CanvasSize() (int, int) { return s.width, s.height }

func (s *fakeSurface) HasLayer(layerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visibility[layerID]
	return ok
}

func (s *fakeSurface) PaintProperty(layerID, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("paint:" + layerID); err != nil {
		return nil, err
	}
	return s.paint[layerID][name], nil
}

func (s *fakeSurface) SetPaintProperty(layerID, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setPaint:" + layerID); err != nil {
		return err
	}
	if s.paint[layerID] == nil {
		s.paint[layerID] = map[string]any{}
	}
	s.paint[layerID][name] = value
	return nil
}

func (s *fakeSurface) LayerVisibility(layerID string) (domain.Visibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibility[layerID], nil
}

func (s *fakeSurface) SetLayerVisibility(layerID string, v domain.Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setVisibility:" + layerID); err != nil {
		return err
	}
	s.visibility[layerID] = v
	return nil
}

func (s *fakeSurface) SourceData(sourceID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("source"); err != nil {
		return nil, err
	}
	return s.sources[sourceID], nil
}

func (s *fakeSurface) SetSourceData(sourceID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setSource"); err != nil {
		return err
	}
	s.sources[sourceID] = append([]byte(nil), data...)
	return nil
}

func (s *fakeSurface) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	err := s.check("waitIdle")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *fakeSurface) Capture(ctx context.Context) (image.Image, error) {
	if s.captureFn != nil {
		return s.captureFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("capture"); err != nil {
		return nil, err
	}
	s.captured++
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	img.Set(0, 0, color.White)
	return img, nil
}

// --- Mock RasterComposer ---

type mockComposer struct {
	composeFn func(frame image.Image, card domain.LabelCard) ([]byte, error)
	lastCard  domain.LabelCard
}

func (m *mockComposer) ComposePNG(frame image.Image, card domain.LabelCard) ([]byte, error) {
	m.lastCard = card
	if m.composeFn != nil {
		return m.composeFn(frame, card)
	}
	return []byte("\x89PNG fake"), nil
}

// --- Mock FileDelivery ---

type mockDelivery struct {
	mu        sync.Mutex
	delivered []domain.Artifact
	deliverFn func(ctx context.Context, a domain.Artifact) error
}

func (m *mockDelivery) Deliver(ctx context.Context, a domain.Artifact) error {
	if m.deliverFn != nil {
		if err := m.deliverFn(ctx, a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.delivered = append(m.delivered, a)
	m.mu.Unlock()
	return nil
}

// --- Mock Prompter ---

type mockPrompter struct {
	mu       sync.Mutex
	prompts  []domain.PromptRequest
	promptFn func(ctx context.Context, req domain.PromptRequest) (bool, error)
}

func (m *mockPrompter) Prompt(ctx context.Context, req domain.PromptRequest) (bool, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req)
	m.mu.Unlock()
	if m.promptFn != nil {
		return m.promptFn(ctx, req)
	}
	return false, nil
}

func (m *mockPrompter) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	for i, p := range m.prompts {
		out[i] = p.Title
	}
	return out
}

// --- Mock LinkOpener ---

type mockOpener struct {
	opened []string
	openFn func(ctx context.Context, url string) error
}

func (m *mockOpener) Open(ctx context.Context, url string) error {
	m.opened = append(m.opened, url)
	if m.openFn != nil {
		return m.openFn(ctx, url)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.ExportEvent
	err    error
}

func (m *mockPublisher) PublishExportCompleted(ctx context.Context, e *domain.ExportEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var (
	_ ports.MapSurface     = (*fakeSurface)(nil)
	_ ports.RasterComposer = (*mockComposer)(nil)
	_ ports.FileDelivery   = (*mockDelivery)(nil)
	_ ports.Prompter       = (*mockPrompter)(nil)
	_ ports.LinkOpener     = (*mockOpener)(nil)
	_ ports.EventPublisher = (*mockPublisher)(nil)
	_ ports.CacheService   = (*mockCache)(nil)
)
