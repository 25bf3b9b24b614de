package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/trailexport/internal/pkg/metrics"
)

const (
	readTimeout = 15 * time.Second
	// exports may wait on prompts answered over the prompt socket
	exportTimeout = 5 * time.Minute
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	if deps.Prompts == nil {
		deps.Prompts = NewPromptHub(nil)
	}

	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(LegacyRoutes))

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Post("/exports", timeout.NewWithContext(ExportHandler(deps), exportTimeout))
	v1.Get("/exports/defaults", ExportDefaultsHandler(deps))
	v1.Get("/exports/recent", timeout.NewWithContext(RecentExportsHandler(deps), readTimeout))

	v1.Get("/trails", timeout.NewWithContext(ListTrailsHandler(deps), readTimeout))
	v1.Get("/trails/:id", timeout.NewWithContext(GetTrailHandler(deps), readTimeout))
	v1.Get("/trails/:id/export/:format", timeout.NewWithContext(TrailExportHandler(deps), exportTimeout))
	v1.Get("/trails/:id/navigation", timeout.NewWithContext(TrailNavigationHandler(deps), readTimeout))
	v1.Post("/trails/:id/open", timeout.NewWithContext(OpenTrailHandler(deps), exportTimeout))

	v1.Post("/location", ReportLocationHandler(deps))
	v1.Get("/location", timeout.NewWithContext(GetLocationHandler(deps), readTimeout))
	v1.Delete("/location", ClearLocationHandler(deps))

	// pre-v1 map page endpoints
	app.Get("/download/:format", timeout.NewWithContext(LegacyDownloadHandler(deps), exportTimeout))
	app.Get("/open-in-maps", timeout.NewWithContext(LegacyOpenInMapsHandler(deps), exportTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/prompts", websocket.New(deps.Prompts.Handler()))
}
