package http

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	natsadapter "github.com/samirrijal/trailexport/internal/adapters/nats"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

// catalogMapLimit caps the trails drawn on a PNG export's map.
const catalogMapLimit = 100

// sessionOf returns the client session of the request, if any. The value
// outlives the request as a registry key, so it is copied out of the
// request buffer.
func sessionOf(c *fiber.Ctx) string {
	s := c.Query("session")
	if s == "" {
		s = c.Get("X-Session-ID")
	}
	return utils.CopyString(s)
}

// exportOptions wires the per-request collaborators of an export.
func exportOptions(deps *Dependencies, session string, settings domain.ExportSettings, d *responseDelivery) usecases.ExportOptions {
	return usecases.ExportOptions{
		ExportSettings: settings,
		Delivery:       d,
		Prompter:       deps.Prompts.Prompter(session),
		Opener:         deps.Prompts.Opener(session),
		Location:       deps.Locations.For(session),
	}
}

// settingsFromQuery reads export settings from query parameters.
func settingsFromQuery(c *fiber.Ctx) domain.ExportSettings {
	return domain.ExportSettings{
		IncludeUserLocation: c.QueryBool("include_location", false),
		LineColor:           c.Query("line_color"),
		LineWidth:           c.QueryFloat("line_width", 0),
		TrackName:           c.Query("track_name"),
		TrackDescription:    c.Query("track_description"),
		SelectedRouteOnly:   c.QueryBool("selected_only", false),
	}
}

func isPNG(format string) bool {
	f, err := domain.ParseExportFormat(format)
	return err == nil && f == domain.FormatPNG
}

// attachMap builds a fresh map surface for a PNG export.
func attachMap(deps *Dependencies, opts *usecases.ExportOptions, routes []byte) error {
	if deps.Maps == nil {
		return nil
	}
	color := opts.LineColor
	if color == "" {
		color = deps.Exports.Defaults().LineColor
	}
	m, err := deps.Maps(routes, color)
	if err != nil {
		return err
	}
	opts.Map = m
	opts.SurfaceID = "request-" + uuid.NewString()
	return nil
}

type exportRequest struct {
	Geometry json.RawMessage       `json:"geometry"`
	Name     string                `json:"name"`
	Format   string                `json:"format"`
	Options  domain.ExportSettings `json:"options"`
}

// ExportHandler exports an arbitrary GeoJSON line and returns the artifact.
func ExportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req exportRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Format == "" {
			return errBadRequest(c, "format is required")
		}

		d := &responseDelivery{}
		opts := exportOptions(deps, sessionOf(c), req.Options, d)
		if isPNG(req.Format) {
			track, err := usecases.RequireTrack([]byte(req.Geometry))
			if err != nil {
				return errFrom(c, err)
			}
			routes, err := usecases.SelectedFeatureCollection(track, req.Name)
			if err != nil {
				return errInternal(c, err.Error())
			}
			if err := attachMap(deps, &opts, routes); err != nil {
				return errInternal(c, err.Error())
			}
		}

		if _, err := deps.Exports.Export(c.UserContext(), []byte(req.Geometry), req.Name, req.Format, opts); err != nil {
			return errFrom(c, err)
		}
		return d.send(c)
	}
}

// ExportDefaultsHandler returns the settings applied to empty options.
func ExportDefaultsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Exports.Defaults())
	}
}

// RecentExportsHandler lists the latest delivered artifacts.
func RecentExportsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.ExportLog == nil {
			return errUnavailable(c, "unavailable", "export log not configured")
		}
		limit := pageLimit(c, 20)
		events, err := deps.ExportLog.Recent(c.UserContext(), limit)
		if err != nil {
			return errFrom(c, err)
		}
		if events == nil {
			events = []domain.ExportEvent{}
		}
		return c.JSON(events)
	}
}

// ListTrailsHandler returns a page of the trail catalog.
func ListTrailsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := pageWindow(c, 50)

		trails, err := deps.Trails.List(c.UserContext(), pg.Limit, pg.Offset)
		if err != nil {
			return errFrom(c, err)
		}
		pg.Total, err = deps.Trails.Count(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return sendPage(c, trails, pg)
	}
}

// GetTrailHandler returns one trail by UUID or slug.
func GetTrailHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := deps.Trails.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(t)
	}
}

// TrailExportHandler exports a catalog trail in the format named by the path.
func TrailExportHandler(deps *Dependencies) fiber.Handler {
	return trailExport(deps, func(c *fiber.Ctx) (string, string) {
		return c.Params("id"), c.Params("format")
	}, settingsFromQuery)
}

func trailExport(deps *Dependencies, target func(*fiber.Ctx) (ref, format string), settings func(*fiber.Ctx) domain.ExportSettings) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		ref, format := target(c)
		if ref == "" {
			return errBadRequest(c, "trail is required")
		}

		d := &responseDelivery{}
		opts := exportOptions(deps, sessionOf(c), settings(c), d)
		if isPNG(format) {
			t, err := deps.Trails.Get(ctx, ref)
			if err != nil {
				return errFrom(c, err)
			}
			trails, err := deps.Trails.List(ctx, catalogMapLimit, 0)
			if err != nil {
				return errFrom(c, err)
			}
			if !slices.ContainsFunc(trails, func(o domain.Trail) bool { return o.ID == t.ID }) {
				trails = append(trails, *t)
			}
			routes, err := catalogCollection(trails)
			if err != nil {
				return errInternal(c, err.Error())
			}
			if err := attachMap(deps, &opts, routes); err != nil {
				return errInternal(c, err.Error())
			}
		}

		if _, _, err := deps.Trails.Export(ctx, ref, format, opts); err != nil {
			return errFrom(c, err)
		}
		return d.send(c)
	}
}

// originFromQuery returns the origin given as lat/lon, or nil when absent.
func originFromQuery(c *fiber.Ctx) (*domain.UserLocation, error) {
	if c.Query("lat") == "" && c.Query("lon") == "" {
		return nil, nil
	}
	loc := domain.UserLocation{
		Latitude:  c.QueryFloat("lat", 0),
		Longitude: c.QueryFloat("lon", 0),
		Accuracy:  c.QueryFloat("accuracy", 0),
	}
	if !loc.Valid() {
		return nil, errors.New("lat and lon must be a valid position")
	}
	return &loc, nil
}

// TrailNavigationHandler returns the directions link of a trail.
func TrailNavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		origin, err := originFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if origin == nil {
			if p := deps.Locations.For(sessionOf(c)); p != nil {
				if loc, err := p.Acquire(ctx, true); err == nil {
					origin = &loc
				}
			}
		}

		link, err := deps.Trails.NavigationLink(ctx, c.Params("id"), origin)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{"url": link, "with_origin": domain.IsValidLocation(origin)})
	}
}

// OpenTrailHandler sends a trail's directions link to the session's client.
func OpenTrailHandler(deps *Dependencies) fiber.Handler {
	return openTrail(deps, func(c *fiber.Ctx) string { return c.Params("id") })
}

func openTrail(deps *Dependencies, ref func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		origin, err := originFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		t, err := deps.Trails.Get(ctx, ref(c))
		if err != nil {
			return errFrom(c, err)
		}

		session := sessionOf(c)
		link, err := deps.Exports.OpenInMaps(ctx, []byte(t.Geometry), t.Name, origin, usecases.ExportOptions{
			Prompter: deps.Prompts.Prompter(session),
			Opener:   deps.Prompts.Opener(session),
			Location: deps.Locations.For(session),
		})
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{"url": link})
	}
}

type locationReport struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Error     string   `json:"error"`
}

// ReportLocationHandler records the position a client obtained itself.
func ReportLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := sessionOf(c)
		if session == "" {
			return errBadRequest(c, "session is required")
		}
		if deps.Prompts == nil {
			return errUnavailable(c, "unavailable", "location reports not accepted")
		}
		var r locationReport
		if err := c.BodyParser(&r); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		if r.Error != "" {
			deps.Prompts.ReportPositionError(session, natsadapter.ErrorForCode(r.Error))
			return c.SendStatus(fiber.StatusNoContent)
		}
		if r.Latitude == nil || r.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}
		loc := domain.UserLocation{Latitude: *r.Latitude, Longitude: *r.Longitude, Accuracy: r.Accuracy}
		if !loc.Valid() {
			return errBadRequest(c, "latitude and longitude must be a valid position")
		}
		deps.Prompts.ReportPosition(session, loc)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetLocationHandler returns the session's location, cached unless fresh=true.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := deps.Locations.For(sessionOf(c))
		if p == nil {
			return errBadRequest(c, "session is required")
		}
		loc, err := p.Acquire(c.UserContext(), !c.QueryBool("fresh", false))
		if err != nil {
			return errFrom(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(loc)
	}
}

// ClearLocationHandler empties the session's location cache.
func ClearLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := deps.Locations.For(sessionOf(c))
		if p == nil {
			return errBadRequest(c, "session is required")
		}
		if err := p.ClearCache(c.UserContext()); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
