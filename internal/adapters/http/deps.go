package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailexport/internal/adapters/postgres"
	"github.com/samirrijal/trailexport/internal/adapters/valkey"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

// MapFactory builds the map surface a PNG export is captured from. routes
// is the FeatureCollection loaded into the route source.
type MapFactory func(routes []byte, lineColor string) (ports.MapSurface, error)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Exports   *usecases.ExportService
	Trails    *usecases.TrailService
	Locations *usecases.LocationRegistry
	Prompts   *PromptHub
	ExportLog ports.ExportLogRepository
	Maps      MapFactory
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
