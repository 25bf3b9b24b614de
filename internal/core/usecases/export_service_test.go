package usecases_test

import (
	"context"
	"encoding/xml"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

type exportFixture struct {
	delivery  *mockDelivery
	opener    *mockOpener
	publisher *mockPublisher
	source    *mockPositionSource
	svc       *usecases.ExportService
}

func newExportFixture(withLocation bool) *exportFixture {
	fx := &exportFixture{
		delivery:  &mockDelivery{},
		opener:    &mockOpener{},
		publisher: &mockPublisher{},
		source:    &mockPositionSource{},
	}
	deps := usecases.ExportDeps{
		Delivery:  fx.delivery,
		Opener:    fx.opener,
		Events:    fx.publisher,
		Snapshots: usecases.NewSnapshotExporter(usecases.DefaultSnapshotConfig(), nil),
		Composer:  &mockComposer{},
	}
	if withLocation {
		deps.Location = usecases.NewLocationProvider(fx.source, nil, usecases.LocationConfig{}, nil)
	}
	fx.svc = usecases.NewExportService(deps)
	return fx
}

func (fx *exportFixture) only(t *testing.T) domain.Artifact {
	t.Helper()
	if len(fx.delivery.delivered) != 1 {
		t.Fatalf("expected exactly one delivered artifact, got %d", len(fx.delivery.delivered))
	}
	return fx.delivery.delivered[0]
}

func TestExportService_KMLScenario(t *testing.T) {
	fx := newExportFixture(false)

	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", usecases.ExportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &domain.ExportResult{Success: true, Format: domain.FormatKML, Filename: "Test Trail.kml"}
	if !reflect.DeepEqual(res, want) {
		t.Errorf("got %+v, want %+v", res, want)
	}

	a := fx.only(t)
	if a.MIMEType != "application/vnd.google-earth.kml+xml" {
		t.Errorf("unexpected MIME type %s", a.MIMEType)
	}
	doc := string(a.Content)
	if n := strings.Count(doc, "<LineString>"); n != 1 {
		t.Errorf("expected 1 LineString, got %d", n)
	}
	if n := strings.Count(doc, "<Placemark>"); n != 1 {
		t.Errorf("expected 1 Placemark, got %d", n)
	}
	start := strings.Index(doc, "<coordinates>")
	end := strings.Index(doc, "</coordinates>")
	tuples := strings.Fields(doc[start+len("<coordinates>") : end])
	if len(tuples) != 3 {
		t.Fatalf("expected 3 tuples, got %v", tuples)
	}
	for _, tp := range tuples {
		if !strings.HasSuffix(tp, ",0") {
			t.Errorf("tuple %q does not end in ,0", tp)
		}
	}

	if len(fx.publisher.events) != 1 || fx.publisher.events[0].Filename != "Test Trail.kml" {
		t.Errorf("expected one export event, got %+v", fx.publisher.events)
	}
	if fx.publisher.events[0].ID == "" {
		t.Error("event id not set")
	}
}

func TestExportService_GPXScenario(t *testing.T) {
	fx := newExportFixture(false)

	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "gpx", usecases.ExportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != "Test Trail.gpx" || res.Format != domain.FormatGPX {
		t.Errorf("unexpected result %+v", res)
	}

	a := fx.only(t)
	if a.MIMEType != "application/gpx+xml" {
		t.Errorf("unexpected MIME type %s", a.MIMEType)
	}

	var doc struct {
		Points []struct {
			Lat float64 `xml:"lat,attr"`
			Lon float64 `xml:"lon,attr"`
		} `xml:"trk>trkseg>trkpt"`
	}
	if err := xml.Unmarshal(a.Content, &doc); err != nil {
		t.Fatalf("invalid gpx: %v", err)
	}
	if len(doc.Points) != 3 {
		t.Fatalf("expected 3 trkpt, got %d", len(doc.Points))
	}
	for i, p := range doc.Points {
		if p.Lat != testCoords[i].Lat || p.Lon != testCoords[i].Lon {
			t.Errorf("point %d = (%v, %v), want %+v", i, p.Lat, p.Lon, testCoords[i])
		}
	}
}

func TestExportService_UnsupportedFormat(t *testing.T) {
	fx := newExportFixture(false)

	_, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "svg", usecases.ExportOptions{})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(fx.delivery.delivered) != 0 {
		t.Error("no file may be delivered for an unsupported format")
	}
}

func TestExportService_EmptyGeometry(t *testing.T) {
	fx := newExportFixture(false)

	for _, format := range []string{"kml", "gpx"} {
		_, err := fx.svc.Export(context.Background(), orb.Point{1, 2}, "x", format, usecases.ExportOptions{})
		if !errors.Is(err, domain.ErrEmptyGeometry) {
			t.Errorf("%s: expected ErrEmptyGeometry, got %v", format, err)
		}
	}
	if len(fx.delivery.delivered) != 0 {
		t.Error("nothing may be delivered for empty geometry")
	}
}

func TestExportService_FormatIsCaseInsensitive(t *testing.T) {
	fx := newExportFixture(false)
	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", " KML ", usecases.ExportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != domain.FormatKML {
		t.Errorf("unexpected format %s", res.Format)
	}
}

func TestExportService_TwoStageWhenDriving(t *testing.T) {
	fx := newExportFixture(true)
	prompter := &mockPrompter{
		promptFn: func(_ context.Context, req domain.PromptRequest) (bool, error) {
			return req.Title == "Drive to the trailhead?", nil
		},
	}

	opts := usecases.ExportOptions{Prompter: prompter}
	opts.IncludeUserLocation = true
	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != "drive-to-start-Test Trail.kml" {
		t.Errorf("unexpected filename %s", res.Filename)
	}

	doc := string(fx.only(t).Content)
	if n := strings.Count(doc, "<Placemark>"); n != 3 {
		t.Errorf("expected 3 placemarks in the two-stage document, got %d", n)
	}
	if fx.publisher.events[0].Variant != domain.VariantTwoStage {
		t.Errorf("unexpected variant %s", fx.publisher.events[0].Variant)
	}
}

func TestExportService_WalkingTrackWithOrigin(t *testing.T) {
	fx := newExportFixture(true)
	prompter := &mockPrompter{} // declines everything

	opts := usecases.ExportOptions{Prompter: prompter}
	opts.IncludeUserLocation = true
	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != "Test Trail.kml" {
		t.Errorf("unexpected filename %s", res.Filename)
	}
	doc := string(fx.only(t).Content)
	if !strings.Contains(doc, "Start point (your location)") {
		t.Error("expected origin placemark in walking track")
	}
	if got := prompter.titles(); !reflect.DeepEqual(got, []string{"Drive to the trailhead?", "Open in Google Maps?"}) {
		t.Errorf("unexpected prompts %v", got)
	}
}

func TestExportService_LocationFailureDegrades(t *testing.T) {
	fx := newExportFixture(true)
	fx.source.currentPositionFn = func(context.Context, ports.PositionRequest) (domain.UserLocation, error) {
		return domain.UserLocation{}, domain.ErrLocationPermissionDenied
	}
	prompter := &mockPrompter{}

	opts := usecases.ExportOptions{Prompter: prompter}
	opts.IncludeUserLocation = true
	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", opts)
	if err != nil {
		t.Fatalf("location failure must not fail the export: %v", err)
	}
	if res.Filename != "Test Trail.kml" {
		t.Errorf("unexpected filename %s", res.Filename)
	}
	if strings.Contains(string(fx.only(t).Content), "your location") {
		t.Error("no origin may be emitted without a location")
	}
	for _, title := range prompter.titles() {
		if title == "Drive to the trailhead?" {
			t.Error("drive choice offered without a location")
		}
	}
}

func TestExportService_OpensMapsAfterExport(t *testing.T) {
	fx := newExportFixture(false)
	prompter := &mockPrompter{
		promptFn: func(_ context.Context, req domain.PromptRequest) (bool, error) { return true, nil },
	}

	_, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", usecases.ExportOptions{Prompter: prompter})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.opener.opened) != 1 {
		t.Fatalf("expected link to be opened once, got %v", fx.opener.opened)
	}
	if !strings.Contains(fx.opener.opened[0], "travelmode=walking") {
		t.Errorf("expected walking link without location, got %s", fx.opener.opened[0])
	}
	titles := prompter.titles()
	if titles[len(titles)-1] != "Route opened in Google Maps" {
		t.Errorf("expected informational follow-up, got %v", titles)
	}
	if last := prompter.prompts[len(prompter.prompts)-1]; last.CancelText != "" || last.ConfirmText != "OK" {
		t.Errorf("follow-up must only offer OK: %+v", last)
	}
}

func TestExportService_NavigationFailureIsSilent(t *testing.T) {
	fx := newExportFixture(false)
	fx.opener.openFn = func(context.Context, string) error { return errors.New("no browser") }
	prompter := &mockPrompter{
		promptFn: func(context.Context, domain.PromptRequest) (bool, error) { return true, nil },
	}

	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "gpx", usecases.ExportOptions{Prompter: prompter})
	if err != nil {
		t.Fatalf("navigation failure must not fail the export: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}

	fx = newExportFixture(false)
	failing := &mockPrompter{
		promptFn: func(context.Context, domain.PromptRequest) (bool, error) { return false, errors.New("ui gone") },
	}
	if _, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", usecases.ExportOptions{Prompter: failing}); err != nil {
		t.Fatalf("prompt failure must not fail the export: %v", err)
	}
}

func TestExportService_DeliveryFailure(t *testing.T) {
	fx := newExportFixture(false)
	fx.delivery.deliverFn = func(context.Context, domain.Artifact) error { return errors.New("disk full") }

	_, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "kml", usecases.ExportOptions{})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if len(fx.publisher.events) != 0 {
		t.Error("no event may be published for an undelivered artifact")
	}
}

func TestExportService_PerCallDelivery(t *testing.T) {
	fx := newExportFixture(false)
	own := &mockDelivery{}

	if _, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "gpx", usecases.ExportOptions{Delivery: own}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(own.delivered) != 1 || len(fx.delivery.delivered) != 0 {
		t.Errorf("artifact must go to the per-call delivery only: own=%d shared=%d",
			len(own.delivered), len(fx.delivery.delivered))
	}
}

func TestExportService_PublishFailureIgnored(t *testing.T) {
	fx := newExportFixture(false)
	fx.publisher.err = errors.New("broker down")

	if _, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "gpx", usecases.ExportOptions{}); err != nil {
		t.Fatalf("publish failure must not fail the export: %v", err)
	}
}

func TestExportService_PNG(t *testing.T) {
	fx := newExportFixture(false)
	surface := newFakeSurface()
	before := surface.view()

	opts := usecases.ExportOptions{Map: surface}
	opts.TrackColor = "#00AA00"
	res, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "png", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != "Test Trail.png" {
		t.Errorf("unexpected filename %s", res.Filename)
	}
	if a := fx.only(t); a.MIMEType != "image/png" {
		t.Errorf("unexpected MIME type %s", a.MIMEType)
	}
	if after := surface.view(); !reflect.DeepEqual(after, before) {
		t.Error("surface not restored after PNG export")
	}
}

func TestExportService_PNGMissingCollaborators(t *testing.T) {
	fx := newExportFixture(false)
	_, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "png", usecases.ExportOptions{})
	if !errors.Is(err, domain.ErrMissingCollaborator) {
		t.Errorf("expected ErrMissingCollaborator, got %v", err)
	}

	bare := usecases.NewExportService(usecases.ExportDeps{Delivery: &mockDelivery{}})
	_, err = bare.Export(context.Background(), testLine, "Test Trail", "png", usecases.ExportOptions{Map: newFakeSurface()})
	if !errors.Is(err, domain.ErrMissingCollaborator) {
		t.Errorf("expected ErrMissingCollaborator without composer, got %v", err)
	}
	if len(fx.delivery.delivered) != 0 {
		t.Error("nothing may be delivered")
	}
}

func TestExportService_PNGFailureSurfacesSnapshotError(t *testing.T) {
	fx := newExportFixture(false)
	surface := newFakeSurface()
	surface.fail["capture"] = errors.New("context lost")

	_, err := fx.svc.Export(context.Background(), testLine, "Test Trail", "png", usecases.ExportOptions{Map: surface})
	if !errors.Is(err, domain.ErrSnapshotExportFailed) {
		t.Errorf("expected ErrSnapshotExportFailed, got %v", err)
	}
	if len(fx.delivery.delivered) != 0 {
		t.Error("nothing may be delivered")
	}
}

func TestExportService_OpenInMaps(t *testing.T) {
	fx := newExportFixture(true)
	prompter := &mockPrompter{}

	link, err := fx.svc.OpenInMaps(context.Background(), testLine, "Test Trail", nil, usecases.ExportOptions{Prompter: prompter})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(link, "travelmode") {
		t.Errorf("expected three point link with the acquired location, got %s", link)
	}
	if len(fx.opener.opened) != 1 || fx.opener.opened[0] != link {
		t.Errorf("link not opened: %v", fx.opener.opened)
	}
	if msg := prompter.prompts[0].Message; !strings.Contains(msg, "3 points") {
		t.Errorf("unexpected follow-up message %q", msg)
	}
}

func TestExportService_ClearLocationCache(t *testing.T) {
	fx := newExportFixture(true)
	ctx := context.Background()

	if _, err := fx.svc.UserLocation(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fx.svc.ClearLocationCache(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fx.svc.UserLocation(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := fx.source.calls.Load(); n != 2 {
		t.Errorf("expected a fresh request after clearing, got %d requests", n)
	}
}
