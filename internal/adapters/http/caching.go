package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set
// their own.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}

		path := c.Path()
		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.Contains(path, "/export/") || strings.HasPrefix(path, "/download/"):
			ttl = "no-store"
		case path == "/v1/location", strings.HasSuffix(path, "/navigation"):
			ttl = "private, no-cache"
		case path == "/v1/exports/recent":
			ttl = "private, max-age=5"
		case path == "/v1/exports/defaults":
			ttl = "public, max-age=300"
		case strings.HasPrefix(path, "/v1/trails"):
			// the catalog changes only on import
			ttl = "public, max-age=600"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
