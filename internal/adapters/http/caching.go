package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware stamps default Cache-Control headers on GET
// responses. A handler that already set its own wins.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var directive string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			directive = "public, max-age=10"
		case path == "/metrics":
			directive = "no-cache"
		case path == "/graphql":
			directive = "private, max-age=0"
		case path == "/v1/export/geojson":
			// The full catalog changes a few times a week at most.
			directive = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/structures/nearby"),
			strings.HasPrefix(path, "/v1/municipalities/"):
			directive = "public, max-age=300"
		case strings.Contains(path, "/structures/"),
			strings.Contains(path, "/channels/"):
			directive = "public, max-age=600"
		case path == "/v1/catalog/stats":
			directive = "public, max-age=60"
		case strings.HasPrefix(path, "/v1/"):
			directive = "public, max-age=300"
		}
		if directive != "" {
			c.Set(fiber.HeaderCacheControl, directive)
		}

		return err
	}
}
