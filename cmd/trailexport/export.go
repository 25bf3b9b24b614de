package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/pflag"

	"github.com/samirrijal/trailexport/internal/adapters/canvas"
	"github.com/samirrijal/trailexport/internal/adapters/console"
	"github.com/samirrijal/trailexport/internal/adapters/filesystem"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/labelcard"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
)

// trailInput is the line picked from an input file. routes is the whole
// collection when the file held one.
type trailInput struct {
	geometry any
	name     string
	routes   []byte
}

// readTrail loads path and picks the line to export. A FeatureCollection
// yields the feature whose name property equals pick, or the first line.
func readTrail(path, pick string) (*trailInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := usecases.DecodeGeometry(data)
	if err != nil {
		return nil, err
	}

	fc, ok := decoded.(*geojson.FeatureCollection)
	if !ok {
		in := &trailInput{geometry: decoded}
		if f, ok := decoded.(*geojson.Feature); ok {
			in.name = f.Properties.MustString("name", "")
		}
		return in, nil
	}

	for _, f := range fc.Features {
		name := f.Properties.MustString("name", "")
		if pick != "" && !strings.EqualFold(name, pick) {
			continue
		}
		if usecases.ExtractTrack(f).Empty() {
			continue
		}
		return &trailInput{geometry: f, name: name, routes: data}, nil
	}
	if pick != "" {
		return nil, fmt.Errorf("%w: no line named %q in %s", domain.ErrTrailNotFound, pick, path)
	}
	return nil, fmt.Errorf("%s: %w", path, domain.ErrEmptyGeometry)
}

func runExport(ctx context.Context, e env, args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var (
		format       = fs.StringP("format", "f", "", "kml, gpx or png")
		out          = fs.StringP("out", "o", e.cfg.Export.OutputDir, "output directory")
		name         = fs.StringP("name", "n", "", "trail name used for the file name")
		pick         = fs.String("trail", "", "name of the feature to export from a collection")
		from         = fs.String("from", "", "your location as lat,lon")
		lineColor    = fs.String("line-color", "", "KML line colour as #RRGGBB")
		lineWidth    = fs.Float64("line-width", 0, "KML line width")
		trackName    = fs.String("track-name", "", "GPX track name")
		trackDesc    = fs.String("track-description", "", "GPX track description")
		selectedOnly = fs.Bool("selected-only", false, "PNG: hide the other trails of the collection")
		noPrompt     = fs.Bool("no-prompt", false, "never ask questions")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("export needs exactly one input file")
	}

	in, err := readTrail(fs.Arg(0), *pick)
	if err != nil {
		return err
	}
	if *name == "" {
		*name = in.name
	}
	origin, err := parseOrigin(*from)
	if err != nil {
		return err
	}

	logger := logging.New(e.stderr, e.cfg.Log.Level, "text")
	composer, err := labelcard.NewRenderer()
	if err != nil {
		return err
	}
	var opener ports.LinkOpener = filesystem.PrintOpener{W: e.stdout}
	if isTerminal(e.stdout) {
		opener = filesystem.NewBrowserOpener(logger)
	}
	delivery := filesystem.NewDelivery(*out, logger)

	svc := usecases.NewExportService(usecases.ExportDeps{
		Delivery:  delivery,
		Linker:    usecases.NewNavigationLinker(e.cfg.Export.MapsBaseURL),
		Snapshots: usecases.NewSnapshotExporter(snapshotConfig(e), logger),
		Composer:  composer,
		Opener:    opener,
		Defaults: domain.ExportSettings{
			LineColor:        e.cfg.Export.LineColor,
			LineWidth:        e.cfg.Export.LineWidth,
			TrackName:        e.cfg.Export.TrackName,
			TrackDescription: e.cfg.Export.TrackDescription,
		},
		PromptTimeout: e.cfg.Prompt.Timeout,
		Logger:        logger,
	})

	opts := usecases.ExportOptions{
		ExportSettings: domain.ExportSettings{
			IncludeUserLocation: origin != nil,
			LineColor:           *lineColor,
			LineWidth:           *lineWidth,
			TrackName:           *trackName,
			TrackDescription:    *trackDesc,
			SelectedRouteOnly:   *selectedOnly,
		},
	}
	if origin != nil {
		opts.Location = usecases.NewLocationProvider(fixedSource{loc: *origin}, nil, usecases.LocationConfig{}, logger)
	}
	if !*noPrompt && isTerminal(e.stdin) {
		opts.Prompter = console.NewPrompter(e.stdin, e.stderr)
	}

	if f, err := domain.ParseExportFormat(*format); err == nil && f == domain.FormatPNG {
		routes := in.routes
		if routes == nil {
			track := usecases.ExtractTrack(in.geometry)
			if routes, err = usecases.SelectedFeatureCollection(track, *name); err != nil {
				return err
			}
		}
		m, err := canvas.NewTrailMap(e.cfg.Snapshot.Width, e.cfg.Snapshot.Height, canvas.Layout{
			RouteSource:   e.cfg.Snapshot.RouteSource,
			TrailLayers:   e.cfg.Snapshot.TrailLayers,
			ProgressLayer: e.cfg.Snapshot.ProgressLayer,
			OverlayLayers: e.cfg.Snapshot.OverlayLayers,
		}, routes, opts.LineColor)
		if err != nil {
			return fmt.Errorf("build map: %w", err)
		}
		opts.Map = m
		opts.SurfaceID = "cli"
	}

	res, err := svc.Export(ctx, in.geometry, *name, *format, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stderr, successStyle.Render("exported")+" "+delivery.Path(res.Filename))
	return nil
}

func snapshotConfig(e env) usecases.SnapshotConfig {
	s := e.cfg.Snapshot
	return usecases.SnapshotConfig{
		RouteSource:     s.RouteSource,
		TrailLayers:     s.TrailLayers,
		ProgressLayer:   s.ProgressLayer,
		OverlayLayers:   s.OverlayLayers,
		TrailWidth:      s.TrailWidth,
		ProgressWidth:   s.ProgressWidth,
		PaddingRatio:    s.PaddingRatio,
		FallbackDataset: []byte(s.FallbackDataset),
	}
}
