package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/trailexport/internal/adapters/canvas"
	"github.com/samirrijal/trailexport/internal/adapters/filesystem"
	natsadapter "github.com/samirrijal/trailexport/internal/adapters/nats"
	"github.com/samirrijal/trailexport/internal/adapters/postgres"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/config"
	"github.com/samirrijal/trailexport/internal/pkg/labelcard"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
	"github.com/samirrijal/trailexport/internal/workflows"
)

// exportLogConsumer is the durable JetStream consumer filling export_log.
const exportLogConsumer = "export-log-writer"

func main() {
	cfg, err := config.Load("trailexport-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Export events -> export_log
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, export log not recorded", "error", err)
	} else {
		defer pub.Close()
		events = pub

		exportLog := postgres.NewExportLogRepo(db)
		sub, err := natsadapter.NewSubscriber(pub.Conn())
		if err != nil {
			log.Fatalf("nats subscriber: %v", err)
		}
		defer sub.Close()
		err = sub.SubscribeExportEvents(ctx, exportLogConsumer, func(ctx context.Context, e *domain.ExportEvent) error {
			return exportLog.Record(ctx, e)
		})
		if err != nil {
			log.Fatalf("subscribe export events: %v", err)
		}
	}

	composer, err := labelcard.NewRenderer()
	if err != nil {
		log.Fatalf("label renderer: %v", err)
	}
	exports := usecases.NewExportService(usecases.ExportDeps{
		Linker: usecases.NewNavigationLinker(cfg.Export.MapsBaseURL),
		Snapshots: usecases.NewSnapshotExporter(usecases.SnapshotConfig{
			RouteSource:     cfg.Snapshot.RouteSource,
			TrailLayers:     cfg.Snapshot.TrailLayers,
			ProgressLayer:   cfg.Snapshot.ProgressLayer,
			OverlayLayers:   cfg.Snapshot.OverlayLayers,
			TrailWidth:      cfg.Snapshot.TrailWidth,
			ProgressWidth:   cfg.Snapshot.ProgressWidth,
			PaddingRatio:    cfg.Snapshot.PaddingRatio,
			FallbackDataset: []byte(cfg.Snapshot.FallbackDataset),
		}, logging.Component("snapshot")),
		Composer: composer,
		Events:   events,
		Defaults: domain.ExportSettings{
			LineColor:        cfg.Export.LineColor,
			LineWidth:        cfg.Export.LineWidth,
			TrackName:        cfg.Export.TrackName,
			TrackDescription: cfg.Export.TrackDescription,
		},
		Logger: logging.Component("export"),
	})

	layout := canvas.Layout{
		RouteSource:   cfg.Snapshot.RouteSource,
		TrailLayers:   cfg.Snapshot.TrailLayers,
		ProgressLayer: cfg.Snapshot.ProgressLayer,
		OverlayLayers: cfg.Snapshot.OverlayLayers,
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
		Logger:   logging.Component("temporal"),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.BatchExportWorkflow)
	w.RegisterActivity(&workflows.BatchExportActivities{
		Trails: usecases.NewTrailService(postgres.NewTrailRepo(db), nil, exports),
		Output: filesystem.NewDelivery(cfg.Export.OutputDir, logging.Component("output")),
		Maps: func(routes []byte, lineColor string) (ports.MapSurface, error) {
			return canvas.NewTrailMap(cfg.Snapshot.Width, cfg.Snapshot.Height, layout, routes, lineColor)
		},
		Logger: logging.Component("batch"),
	})

	slog.Info("batch export worker started", "queue", cfg.Temporal.TaskQueue, "output", cfg.Export.OutputDir)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
