package usecases

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/metrics"
	"github.com/samirrijal/trailexport/internal/pkg/telemetry"
)

// LineWidthProperty is the paint property thickened for export.
const LineWidthProperty = "line-width"

// SnapshotPhase is the state of a map surface with respect to snapshots.
type SnapshotPhase int32

const (
	PhaseIdle SnapshotPhase = iota
	PhaseCapturing
	PhaseRendering
	PhaseRestoring
)

func (p SnapshotPhase) String() string {
	switch p {
	case PhaseCapturing:
		return "capturing"
	case PhaseRendering:
		return "rendering"
	case PhaseRestoring:
		return "restoring"
	default:
		return "idle"
	}
}

// SnapshotConfig names the layers and sources a snapshot touches.
type SnapshotConfig struct {
	RouteSource     string
	TrailLayers     []string
	ProgressLayer   string
	OverlayLayers   []string
	TrailWidth      float64
	ProgressWidth   float64
	PaddingRatio    float64
	FallbackDataset []byte
}

// DefaultSnapshotConfig returns the layer layout of the trail map.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		RouteSource:     "trails",
		TrailLayers:     []string{"trail-line-casing", "trail-line"},
		ProgressLayer:   "trail-progress",
		OverlayLayers:   []string{"trail-progress-animated", "trail-progress", "admin-boundaries", "admin-boundaries-labels"},
		TrailWidth:      6,
		ProgressWidth:   7,
		PaddingRatio:    0.08,
		FallbackDataset: []byte(`{"type":"FeatureCollection","features":[]}`),
	}
}

// SnapshotRequest describes one PNG export.
type SnapshotRequest struct {
	// SurfaceID labels the surface in metrics; empty means "default".
	SurfaceID    string
	Map          ports.MapSurface
	Composer     ports.RasterComposer
	Track        domain.Track
	Name         string
	Card         domain.LabelCard
	SelectedOnly bool
}

// SnapshotExporter renders a track on a live map surface, captures the
// frame and puts the surface back the way it was found. Calls against the
// same surface are serialized; map surfaces must be comparable values.
type SnapshotExporter struct {
	cfg SnapshotConfig
	log *slog.Logger

	mu       sync.Mutex
	surfaces map[ports.MapSurface]*surfaceHandle
}

type surfaceHandle struct {
	sem   chan struct{}
	phase atomic.Int32
	label string
	refs  int // guarded by SnapshotExporter.mu
}

func (h *surfaceHandle) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *surfaceHandle) release() { <-h.sem }

func (h *surfaceHandle) set(p SnapshotPhase) {
	h.phase.Store(int32(p))
	metrics.SnapshotPhase.WithLabelValues(h.label).Set(float64(p))
}

// NewSnapshotExporter creates an exporter. Empty config fields take the
// values of DefaultSnapshotConfig.
func NewSnapshotExporter(cfg SnapshotConfig, logger *slog.Logger) *SnapshotExporter {
	def := DefaultSnapshotConfig()
	if cfg.RouteSource == "" {
		cfg.RouteSource = def.RouteSource
	}
	if len(cfg.TrailLayers) == 0 {
		cfg.TrailLayers = def.TrailLayers
	}
	if cfg.TrailWidth <= 0 {
		cfg.TrailWidth = def.TrailWidth
	}
	if cfg.ProgressWidth <= 0 {
		cfg.ProgressWidth = def.ProgressWidth
	}
	if cfg.PaddingRatio <= 0 {
		cfg.PaddingRatio = def.PaddingRatio
	}
	if len(cfg.FallbackDataset) == 0 {
		cfg.FallbackDataset = def.FallbackDataset
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotExporter{
		cfg:      cfg,
		log:      logger,
		surfaces: make(map[ports.MapSurface]*surfaceHandle),
	}
}

func (e *SnapshotExporter) handle(m ports.MapSurface, label string) *surfaceHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.surfaces[m]
	if !ok {
		if label == "" {
			label = "default"
		}
		h = &surfaceHandle{sem: make(chan struct{}, 1), label: label}
		e.surfaces[m] = h
	}
	h.refs++
	return h
}

// unref drops the handle of m once no call holds or waits for it.
func (e *SnapshotExporter) unref(m ports.MapSurface, h *surfaceHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h.refs--
	if h.refs == 0 {
		delete(e.surfaces, m)
	}
}

// Phase reports the current phase of m.
func (e *SnapshotExporter) Phase(m ports.MapSurface) SnapshotPhase {
	e.mu.Lock()
	h, ok := e.surfaces[m]
	e.mu.Unlock()
	if !ok {
		return PhaseIdle
	}
	return SnapshotPhase(h.phase.Load())
}

// Export produces the PNG for req. Restoration of the surface always runs
// before an error is returned; any failure is reported as
// domain.ErrSnapshotExportFailed wrapping the cause.
func (e *SnapshotExporter) Export(ctx context.Context, req SnapshotRequest) ([]byte, error) {
	if req.Map == nil {
		return nil, domain.MissingCollaboratorError("map surface")
	}
	if req.Composer == nil {
		return nil, domain.MissingCollaboratorError("raster composer")
	}
	if req.Track.Empty() {
		return nil, domain.ErrEmptyGeometry
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSnapshot)
	defer span.End()

	h := e.handle(req.Map, req.SurfaceID)
	defer e.unref(req.Map, h)
	span.SetAttributes(attribute.String(telemetry.AttrSurface, h.label))
	if err := h.acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: wait for map surface: %w", domain.ErrSnapshotExportFailed, err)
	}
	defer h.release()

	state := &domain.RenderSnapshotState{
		PaintWidths: make(map[string]any),
		Visibility:  make(map[string]domain.Visibility),
	}
	var swapped bool

	out, runErr := e.run(ctx, h, req, state, &swapped)

	h.set(PhaseRestoring)
	e.restore(ctx, req.Map, state, swapped)
	h.set(PhaseIdle)

	if runErr != nil {
		span.RecordError(runErr)
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotExportFailed, runErr)
	}
	return out, nil
}

// run covers the capture, mutation, capture and compositing steps. Panics
// raised by the surface are turned into errors so restoration still runs.
func (e *SnapshotExporter) run(ctx context.Context, h *surfaceHandle, req SnapshotRequest, state *domain.RenderSnapshotState, swapped *bool) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("map surface panic: %v", r)
		}
	}()

	h.set(PhaseCapturing)
	if err := e.saveState(req.Map, state); err != nil {
		return nil, fmt.Errorf("save map state: %w", err)
	}

	h.set(PhaseRendering)
	if err := e.mutate(ctx, req, state, swapped); err != nil {
		return nil, err
	}

	frame, err := req.Map.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	if frame == nil {
		return nil, errors.New("capture frame: empty raster")
	}
	return e.compose(req, frame)
}

func (e *SnapshotExporter) compose(req SnapshotRequest, frame image.Image) ([]byte, error) {
	out, err := req.Composer.ComposePNG(frame, req.Card)
	if err != nil {
		return nil, fmt.Errorf("compose label card: %w", err)
	}
	return out, nil
}

func (e *SnapshotExporter) saveState(m ports.MapSurface, state *domain.RenderSnapshotState) error {
	cam, err := m.Camera()
	if err != nil {
		return fmt.Errorf("read camera: %w", err)
	}
	state.Camera = cam
	state.CameraSaved = true

	for _, layer := range e.widthLayers(m) {
		v, err := m.PaintProperty(layer, LineWidthProperty)
		if err != nil {
			return fmt.Errorf("read %s width: %w", layer, err)
		}
		state.PaintWidths[layer] = v
	}

	for _, layer := range e.cfg.OverlayLayers {
		if !m.HasLayer(layer) {
			continue
		}
		v, err := m.LayerVisibility(layer)
		if err != nil {
			return fmt.Errorf("read %s visibility: %w", layer, err)
		}
		state.Visibility[layer] = v
	}
	return nil
}

// widthLayers lists the trail layers and the optional progress layer
// present on m.
func (e *SnapshotExporter) widthLayers(m ports.MapSurface) []string {
	layers := make([]string, 0, len(e.cfg.TrailLayers)+1)
	for _, l := range e.cfg.TrailLayers {
		if m.HasLayer(l) {
			layers = append(layers, l)
		}
	}
	if e.cfg.ProgressLayer != "" && m.HasLayer(e.cfg.ProgressLayer) {
		layers = append(layers, e.cfg.ProgressLayer)
	}
	return layers
}

func (e *SnapshotExporter) mutate(ctx context.Context, req SnapshotRequest, state *domain.RenderSnapshotState, swapped *bool) error {
	m := req.Map

	if req.SelectedOnly {
		prev, err := m.SourceData(e.cfg.RouteSource)
		if err != nil {
			return fmt.Errorf("read route source: %w", err)
		}
		state.SourceData = prev
		state.SourceSaved = len(prev) > 0

		selected, err := SelectedFeatureCollection(req.Track, req.Name)
		if err != nil {
			return fmt.Errorf("build selected route: %w", err)
		}
		*swapped = true
		if err := m.SetSourceData(e.cfg.RouteSource, selected); err != nil {
			return fmt.Errorf("swap route source: %w", err)
		}
	}

	for layer := range state.Visibility {
		state.HiddenLayers = append(state.HiddenLayers, layer)
		if err := m.SetLayerVisibility(layer, domain.Hidden); err != nil {
			return fmt.Errorf("hide %s: %w", layer, err)
		}
	}

	for layer := range state.PaintWidths {
		width := e.cfg.TrailWidth
		if layer == e.cfg.ProgressLayer {
			width = e.cfg.ProgressWidth
		}
		if err := m.SetPaintProperty(layer, LineWidthProperty, width); err != nil {
			return fmt.Errorf("widen %s: %w", layer, err)
		}
	}

	bounds, ok := domain.BoundsOf(req.Track.Flatten())
	if !ok {
		return domain.ErrEmptyGeometry
	}
	if err := m.SetCamera(domain.Camera{Center: bounds.Center(), Zoom: state.Camera.Zoom}); err != nil {
		return fmt.Errorf("reset camera: %w", err)
	}
	w, hgt := m.CanvasSize()
	padding := e.cfg.PaddingRatio * math.Min(float64(w), float64(hgt))
	if err := m.FitBounds(bounds, padding); err != nil {
		return fmt.Errorf("fit route bounds: %w", err)
	}

	if err := m.WaitIdle(ctx); err != nil {
		return fmt.Errorf("wait for render: %w", err)
	}
	return nil
}

type restoreAction struct {
	step string
	run  func() error
}

// restore reapplies state. Every action runs in its own failure boundary
// and failures are logged and counted, never returned.
func (e *SnapshotExporter) restore(ctx context.Context, m ports.MapSurface, state *domain.RenderSnapshotState, swapped bool) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanSnapshotRestore)
	defer span.End()

	var actions []restoreAction
	for layer, v := range state.PaintWidths {
		layer, v := layer, v
		actions = append(actions, restoreAction{"paint:" + layer, func() error {
			return m.SetPaintProperty(layer, LineWidthProperty, v)
		}})
	}
	if state.CameraSaved {
		actions = append(actions, restoreAction{"camera", func() error {
			return m.SetCamera(state.Camera)
		}})
	}
	if swapped {
		data := state.SourceData
		if !state.SourceSaved {
			data = e.cfg.FallbackDataset
		}
		actions = append(actions, restoreAction{"source", func() error {
			return m.SetSourceData(e.cfg.RouteSource, data)
		}})
	}
	for _, layer := range state.HiddenLayers {
		layer, v := layer, state.Visibility[layer]
		actions = append(actions, restoreAction{"visibility:" + layer, func() error {
			return m.SetLayerVisibility(layer, v)
		}})
	}

	for _, a := range actions {
		if err := runIsolated(a); err != nil {
			span.RecordError(err)
			metrics.SnapshotRestoreFailures.WithLabelValues(stepKind(a.step)).Inc()
			e.log.Warn("snapshot restore step failed", "step", a.step, "error", err)
		}
	}
}

func runIsolated(a restoreAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.run()
}

func stepKind(step string) string {
	kind, _, _ := strings.Cut(step, ":")
	return kind
}
