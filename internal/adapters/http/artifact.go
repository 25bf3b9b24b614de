package http

import (
	"context"
	"errors"
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

// responseDelivery holds the artifact of one request until it is written
// as the response body.
type responseDelivery struct {
	artifact *domain.Artifact
}

func (d *responseDelivery) Deliver(_ context.Context, a domain.Artifact) error {
	if d.artifact != nil {
		return errors.New("artifact already delivered")
	}
	d.artifact = &a
	return nil
}

// send writes the delivered artifact as a download.
func (d *responseDelivery) send(c *fiber.Ctx) error {
	if d.artifact == nil {
		return errInternal(c, "export produced no artifact")
	}
	a := d.artifact
	c.Set(fiber.HeaderContentType, a.MIMEType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(a.Content)
}

// catalogCollection renders trails as the route source of a map, one
// feature per trail carrying its name and colour. Trails without a usable
// line are skipped.
func catalogCollection(trails []domain.Trail) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, t := range trails {
		track := usecases.ExtractTrack([]byte(t.Geometry))
		if track.Empty() {
			continue
		}
		f := geojson.NewFeature(usecases.TrackGeometry(track))
		f.ID = t.ID
		f.Properties["name"] = t.Name
		f.Properties["color"] = t.Color
		fc.Append(f)
	}
	return fc.MarshalJSON()
}
