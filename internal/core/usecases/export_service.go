package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/geodoc"
	"github.com/samirrijal/trailexport/internal/pkg/geospatial"
	"github.com/samirrijal/trailexport/internal/pkg/metrics"
	"github.com/samirrijal/trailexport/internal/pkg/telemetry"
)

// TwoStagePrefix marks drive-to-trailhead files.
const TwoStagePrefix = "drive-to-start-"

// defaultPromptTimeout bounds how long a best-effort prompt may block.
const defaultPromptTimeout = 2 * time.Minute

// ExportOptions are the per-call options of an export. Map, Prompter,
// Opener, Delivery and Location are optional collaborators; Map is required
// for PNG. Opener, Delivery and Location replace the service-wide ones for
// this call.
type ExportOptions struct {
	domain.ExportSettings
	Map       ports.MapSurface
	SurfaceID string
	Prompter  ports.Prompter
	Opener    ports.LinkOpener
	Delivery  ports.FileDelivery
	Location  *LocationProvider
}

// ExportDeps wires the collaborators of an ExportService. Delivery may be
// left nil when every call brings its own.
type ExportDeps struct {
	Delivery      ports.FileDelivery
	Location      *LocationProvider
	Linker        *NavigationLinker
	Snapshots     *SnapshotExporter
	Composer      ports.RasterComposer
	Opener        ports.LinkOpener
	Events        ports.EventPublisher
	Defaults      domain.ExportSettings
	PromptTimeout time.Duration
	Logger        *slog.Logger
}

// ExportService is the public entry point of the export pipeline.
type ExportService struct {
	delivery      ports.FileDelivery
	location      *LocationProvider
	linker        *NavigationLinker
	snapshots     *SnapshotExporter
	composer      ports.RasterComposer
	opener        ports.LinkOpener
	events        ports.EventPublisher
	defaults      domain.ExportSettings
	promptTimeout time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// NewExportService creates an ExportService.
func NewExportService(d ExportDeps) *ExportService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Linker == nil {
		d.Linker = NewNavigationLinker("")
	}
	if d.PromptTimeout <= 0 {
		d.PromptTimeout = defaultPromptTimeout
	}
	return &ExportService{
		delivery:      d.Delivery,
		location:      d.Location,
		linker:        d.Linker,
		snapshots:     d.Snapshots,
		composer:      d.Composer,
		opener:        d.Opener,
		events:        d.Events,
		defaults:      d.Defaults,
		promptTimeout: d.PromptTimeout,
		log:           d.Logger,
		now:           time.Now,
	}
}

// Export produces an artifact of the requested format from geometry and
// hands it to the delivery collaborator.
func (s *ExportService) Export(ctx context.Context, geometry any, name, format string, opts ExportOptions) (*domain.ExportResult, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanExport)
	defer span.End()

	f, err := domain.ParseExportFormat(format)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("unknown", "none", "rejected").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrFormat, string(f)))

	if name == "" {
		name = domain.DefaultTrackName
	}
	settings := opts.ExportSettings.WithDefaults(s.defaults)

	var (
		res     *domain.ExportResult
		variant domain.ExportVariant
	)
	switch f {
	case domain.FormatPNG:
		variant = domain.VariantSnapshot
		res, err = s.exportPNG(ctx, geometry, name, settings, opts)
	default:
		res, variant, err = s.exportDocument(ctx, f, geometry, name, settings, opts)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		s.log.Error("export failed", "format", f, "name", name, "error", err)
	}
	if variant == "" {
		variant = domain.VariantSimple
	}
	metrics.ExportsTotal.WithLabelValues(string(f), string(variant), outcome).Inc()
	metrics.ExportDuration.WithLabelValues(string(f)).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *ExportService) exportDocument(ctx context.Context, f domain.ExportFormat, geometry any, name string, settings domain.ExportSettings, opts ExportOptions) (*domain.ExportResult, domain.ExportVariant, error) {
	track, err := s.extract(ctx, geometry)
	if err != nil {
		return nil, "", err
	}
	coords := track.Flatten()

	variant := domain.VariantSimple
	var origin *domain.UserLocation
	if settings.IncludeUserLocation {
		origin = s.optionalLocation(ctx, opts.Location)
		if origin != nil {
			variant = domain.VariantWithOrigin
			if f == domain.FormatKML && s.ask(ctx, opts.Prompter, "drive_choice", driveChoicePrompt) {
				variant = domain.VariantTwoStage
			}
		}
	}

	_, genSpan := telemetry.Tracer().Start(ctx, telemetry.SpanGenerate,
		trace.WithAttributes(attribute.String(telemetry.AttrVariant, string(variant))))
	content, err := geodoc.Generate(f, coords, name, settings, variant, origin)
	genSpan.End()
	if err != nil {
		return nil, variant, fmt.Errorf("generate %s: %w", f, err)
	}

	filename := name + f.Extension()
	if variant == domain.VariantTwoStage {
		filename = TwoStagePrefix + filename
	}
	if err := s.deliver(ctx, opts.Delivery, domain.Artifact{Filename: filename, MIMEType: f.MIMEType(), Content: content}); err != nil {
		return nil, variant, err
	}
	s.publish(ctx, name, f, variant, filename, len(content))

	s.offerNavigation(ctx, coords, name, origin, opts)

	return &domain.ExportResult{Success: true, Format: f, Filename: filename}, variant, nil
}

func (s *ExportService) exportPNG(ctx context.Context, geometry any, name string, settings domain.ExportSettings, opts ExportOptions) (*domain.ExportResult, error) {
	switch {
	case opts.Map == nil:
		return nil, domain.MissingCollaboratorError("map surface")
	case s.composer == nil:
		return nil, domain.MissingCollaboratorError("raster composer")
	case s.snapshots == nil:
		return nil, domain.MissingCollaboratorError("snapshot exporter")
	}

	track, err := s.extract(ctx, geometry)
	if err != nil {
		return nil, err
	}

	lengthKm := settings.LengthKm
	if lengthKm <= 0 {
		lengthKm = geospatial.TrackLengthKm(track)
	}
	content, err := s.snapshots.Export(ctx, SnapshotRequest{
		SurfaceID:    opts.SurfaceID,
		Map:          opts.Map,
		Composer:     s.composer,
		Track:        track,
		Name:         name,
		Card:         domain.LabelCard{Title: name, LengthKm: lengthKm, Color: settings.TrackColor},
		SelectedOnly: settings.SelectedRouteOnly,
	})
	if err != nil {
		return nil, err
	}

	filename := name + domain.FormatPNG.Extension()
	if err := s.deliver(ctx, opts.Delivery, domain.Artifact{Filename: filename, MIMEType: domain.FormatPNG.MIMEType(), Content: content}); err != nil {
		return nil, err
	}
	s.publish(ctx, name, domain.FormatPNG, domain.VariantSnapshot, filename, len(content))

	return &domain.ExportResult{Success: true, Format: domain.FormatPNG, Filename: filename}, nil
}

func (s *ExportService) extract(ctx context.Context, geometry any) (domain.Track, error) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanExtract)
	defer span.End()

	track, err := RequireTrack(geometry)
	if err != nil {
		return domain.Track{}, err
	}
	span.SetAttributes(
		attribute.Int(telemetry.AttrSegments, len(track.Segments)),
		attribute.Int(telemetry.AttrPoints, len(track.Flatten())),
	)
	return track, nil
}

func (s *ExportService) deliver(ctx context.Context, d ports.FileDelivery, a domain.Artifact) error {
	if d == nil {
		d = s.delivery
	}
	if d == nil {
		return domain.MissingCollaboratorError("file delivery")
	}
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanDeliver,
		trace.WithAttributes(attribute.String(telemetry.AttrFilename, a.Filename)))
	defer span.End()

	if err := d.Deliver(ctx, a); err != nil {
		return fmt.Errorf("deliver %s: %w", a.Filename, err)
	}
	metrics.ArtifactBytes.WithLabelValues(formatOf(a.MIMEType)).Observe(float64(len(a.Content)))
	return nil
}

func formatOf(mime string) string {
	for _, f := range []domain.ExportFormat{domain.FormatKML, domain.FormatGPX, domain.FormatPNG} {
		if f.MIMEType() == mime {
			return string(f)
		}
	}
	return "unknown"
}

func (s *ExportService) publish(ctx context.Context, name string, f domain.ExportFormat, v domain.ExportVariant, filename string, size int) {
	if s.events == nil {
		return
	}
	ev := &domain.ExportEvent{
		ID:        uuid.NewString(),
		TrailName: name,
		Format:    f,
		Variant:   v,
		Filename:  filename,
		Bytes:     size,
		At:        s.now().UTC(),
	}
	if err := s.events.PublishExportCompleted(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		s.log.Warn("publish export event", "filename", filename, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}

// optionalLocation returns a valid location or nil. Location is never
// load-bearing for a document export.
func (s *ExportService) optionalLocation(ctx context.Context, p *LocationProvider) *domain.UserLocation {
	if p == nil {
		p = s.location
	}
	if p == nil {
		return nil
	}
	loc, err := p.Acquire(ctx, true)
	if err != nil {
		s.log.Warn("continuing without user location", "error", err)
		return nil
	}
	if !loc.Valid() {
		return nil
	}
	return &loc
}

// ask shows a prompt. A missing prompter or a failing prompt counts as a
// declined answer.
func (s *ExportService) ask(ctx context.Context, p ports.Prompter, kind string, req domain.PromptRequest) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.promptTimeout)
	defer cancel()

	ok, err := p.Prompt(ctx, req)
	switch {
	case err != nil:
		metrics.PromptsTotal.WithLabelValues(kind, "error").Inc()
		s.log.Warn("prompt failed", "prompt", kind, "error", err)
		return false
	case ok:
		metrics.PromptsTotal.WithLabelValues(kind, "confirm").Inc()
	default:
		metrics.PromptsTotal.WithLabelValues(kind, "cancel").Inc()
	}
	return ok
}

// offerNavigation asks whether to also open the route in the directions
// service. Failures are logged and never reach the caller.
func (s *ExportService) offerNavigation(ctx context.Context, coords []domain.Coordinate, name string, origin *domain.UserLocation, opts ExportOptions) {
	if opts.Prompter == nil {
		return
	}
	if !s.ask(ctx, opts.Prompter, "open_maps", offerMapsPrompt) {
		return
	}
	if _, err := s.openLink(ctx, coords, name, origin, opts.Opener, opts.Prompter); err != nil {
		s.log.Warn("open route in maps", "name", name, "error", err)
	}
}

func (s *ExportService) openLink(ctx context.Context, coords []domain.Coordinate, name string, origin *domain.UserLocation, opener ports.LinkOpener, p ports.Prompter) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanNavigation)
	defer span.End()

	link, err := s.linker.BuildLink(coords, origin)
	if err != nil {
		return "", err
	}
	if opener == nil {
		opener = s.opener
	}
	if opener == nil {
		return link, domain.MissingCollaboratorError("link opener")
	}
	if err := opener.Open(ctx, link); err != nil {
		return link, fmt.Errorf("open link: %w", err)
	}
	if p != nil {
		s.ask(ctx, p, "route_opened", routeOpenedPrompt(name, domain.IsValidLocation(origin)))
	}
	return link, nil
}

// NavigationLink returns the directions link for geometry without opening it.
func (s *ExportService) NavigationLink(ctx context.Context, geometry any, origin *domain.UserLocation) (string, error) {
	track, err := s.extract(ctx, geometry)
	if err != nil {
		return "", err
	}
	return s.linker.BuildLink(track.Flatten(), origin)
}

// OpenInMaps builds the directions link, hands it to the link opener and
// shows the informational follow-up. A nil origin is resolved through the
// location provider when possible.
func (s *ExportService) OpenInMaps(ctx context.Context, geometry any, name string, origin *domain.UserLocation, opts ExportOptions) (string, error) {
	track, err := s.extract(ctx, geometry)
	if err != nil {
		return "", err
	}
	if origin == nil {
		origin = s.optionalLocation(ctx, opts.Location)
	}
	if name == "" {
		name = domain.DefaultTrackName
	}
	return s.openLink(ctx, track.Flatten(), name, origin, opts.Opener, opts.Prompter)
}

// UserLocation exposes the location provider.
func (s *ExportService) UserLocation(ctx context.Context, useCache bool) (domain.UserLocation, error) {
	if s.location == nil {
		return domain.UserLocation{}, domain.ErrLocationUnsupported
	}
	return s.location.Acquire(ctx, useCache)
}

// ClearLocationCache discards the cached user location.
func (s *ExportService) ClearLocationCache(ctx context.Context) error {
	if s.location == nil {
		return nil
	}
	return s.location.ClearCache(ctx)
}

// Defaults returns the settings applied to empty option fields.
func (s *ExportService) Defaults() domain.ExportSettings {
	return s.defaults.WithDefaults(domain.ExportSettings{})
}

// IsClientError reports whether err stems from caller input rather than a
// failing collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrEmptyGeometry) || errors.Is(err, domain.ErrUnsupportedFormat)
}
