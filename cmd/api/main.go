package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailexport/internal/adapters/canvas"
	"github.com/samirrijal/trailexport/internal/adapters/http"
	natsadapter "github.com/samirrijal/trailexport/internal/adapters/nats"
	"github.com/samirrijal/trailexport/internal/adapters/postgres"
	"github.com/samirrijal/trailexport/internal/adapters/valkey"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/config"
	"github.com/samirrijal/trailexport/internal/pkg/labelcard"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
	"github.com/samirrijal/trailexport/internal/pkg/metrics"
	"github.com/samirrijal/trailexport/internal/pkg/telemetry"
)

// hubSource answers position requests from the sessions connected to this
// replica when NATS is down.
type hubSource struct {
	hub     *http.PromptHub
	session string
}

func (s hubSource) CurrentPosition(ctx context.Context, _ ports.PositionRequest) (domain.UserLocation, error) {
	loc, ok, err := s.hub.Position(ctx, s.session)
	if err != nil {
		return domain.UserLocation{}, err
	}
	if !ok {
		return domain.UserLocation{}, domain.ErrLocationUnavailable
	}
	return loc, nil
}

func main() {
	cfg, err := config.Load("trailexport-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Stat())
			}
		}
	}()

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS
	var events ports.EventPublisher
	var natsConn *nats.Conn
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		events = pub
		natsConn = pub.Conn()
		defer pub.Close()
	}

	hub := http.NewPromptHub(logging.Component("prompts"))

	if natsConn != nil {
		sub, err := natsadapter.NewSubscriber(natsConn)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			if err := sub.ServeLocations(ctx, cfg.NATS.LocationSubject, hub.Position); err != nil {
				slog.Warn("serve locations", "error", err)
			}
			defer sub.Close()
		}
	}

	// Location, one provider per client session
	source := func(session string) ports.PositionSource {
		if natsConn == nil {
			return hubSource{hub: hub, session: session}
		}
		return natsadapter.NewPositionSource(natsConn, cfg.NATS.LocationSubject, session)
	}
	var locationCache func(string) ports.LocationCache
	if cache != nil {
		locationCache = func(session string) ports.LocationCache {
			return cache.NewLocationCache(session, cfg.Location.TTL)
		}
	}
	locations := usecases.NewLocationRegistry(source, locationCache, usecases.LocationConfig{
		TTL:          cfg.Location.TTL,
		Timeout:      cfg.Location.Timeout,
		MaximumAge:   cfg.Location.MaximumAge,
		HighAccuracy: cfg.Location.HighAccuracy,
	}, logging.Component("location"))
	hub.OnRelease(locations.Forget)

	// Sessions are client supplied; drop the ones gone quiet.
	sessionIdle := max(cfg.Location.TTL, time.Minute)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				released := hub.Prune(sessionIdle)
				pruned := locations.Prune(sessionIdle)
				if released+pruned > 0 {
					slog.Debug("idle sessions dropped", "reported", released, "providers", pruned)
				}
			}
		}
	}()

	// Export pipeline
	composer, err := labelcard.NewRenderer()
	if err != nil {
		log.Fatalf("label renderer: %v", err)
	}
	snapshots := usecases.NewSnapshotExporter(usecases.SnapshotConfig{
		RouteSource:     cfg.Snapshot.RouteSource,
		TrailLayers:     cfg.Snapshot.TrailLayers,
		ProgressLayer:   cfg.Snapshot.ProgressLayer,
		OverlayLayers:   cfg.Snapshot.OverlayLayers,
		TrailWidth:      cfg.Snapshot.TrailWidth,
		ProgressWidth:   cfg.Snapshot.ProgressWidth,
		PaddingRatio:    cfg.Snapshot.PaddingRatio,
		FallbackDataset: []byte(cfg.Snapshot.FallbackDataset),
	}, logging.Component("snapshot"))

	exports := usecases.NewExportService(usecases.ExportDeps{
		Linker:    usecases.NewNavigationLinker(cfg.Export.MapsBaseURL),
		Snapshots: snapshots,
		Composer:  composer,
		Events:    events,
		Defaults: domain.ExportSettings{
			LineColor:        cfg.Export.LineColor,
			LineWidth:        cfg.Export.LineWidth,
			TrackName:        cfg.Export.TrackName,
			TrackDescription: cfg.Export.TrackDescription,
		},
		PromptTimeout: cfg.Prompt.Timeout,
		Logger:        logging.Component("export"),
	})

	layout := canvas.Layout{
		RouteSource:   cfg.Snapshot.RouteSource,
		TrailLayers:   cfg.Snapshot.TrailLayers,
		ProgressLayer: cfg.Snapshot.ProgressLayer,
		OverlayLayers: cfg.Snapshot.OverlayLayers,
	}

	deps := &http.Dependencies{
		Exports:   exports,
		Trails:    usecases.NewTrailService(postgres.NewTrailRepo(db), cacheSvc, exports),
		Locations: locations,
		Prompts:   hub,
		ExportLog: postgres.NewExportLogRepo(db),
		Maps: func(routes []byte, lineColor string) (ports.MapSurface, error) {
			return canvas.NewTrailMap(cfg.Snapshot.Width, cfg.Snapshot.Height, layout, routes, lineColor)
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // trail geometries can be large
		AppName:      "Trail Export API",
		Immutable:    true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		ExposeHeaders:    "Content-Disposition",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
