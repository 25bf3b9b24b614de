package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// legacySunset is when the pre-v1 endpoints go away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// LegacyRoutes lists the deprecated endpoints of the first map page
// integration and their replacements.
var LegacyRoutes = []DeprecatedRoute{
	{Path: "/download/:format", SunsetDate: legacySunset, Alternative: "/v1/trails/{id}/export/{format}"},
	{Path: "/open-in-maps", SunsetDate: legacySunset, Alternative: "/v1/trails/{id}/open"},
}

// legacySettings reproduces the old download button: the user location was
// always requested and the options came from the query.
func legacySettings(c *fiber.Ctx) domain.ExportSettings {
	s := settingsFromQuery(c)
	s.IncludeUserLocation = c.QueryBool("include_location", true)
	return s
}

// LegacyDownloadHandler serves GET /download/:format?trail=<id or slug>.
func LegacyDownloadHandler(deps *Dependencies) fiber.Handler {
	return trailExport(deps, func(c *fiber.Ctx) (string, string) {
		return c.Query("trail"), c.Params("format")
	}, legacySettings)
}

// LegacyOpenInMapsHandler serves GET /open-in-maps?trail=<id or slug>.
func LegacyOpenInMapsHandler(deps *Dependencies) fiber.Handler {
	open := openTrail(deps, func(c *fiber.Ctx) string { return c.Query("trail") })
	return func(c *fiber.Ctx) error {
		if c.Query("trail") == "" {
			return errBadRequest(c, "trail query parameter is required")
		}
		return open(c)
	}
}
