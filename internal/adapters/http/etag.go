package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware tags successful GET responses with a weak ETag and
// short-circuits to 304 when the client already holds the bytes. The
// GeoJSON export is the main beneficiary; its payload dwarfs the rest
// of the API combined.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 || c.GetRespHeader(fiber.HeaderETag) != "" {
			return nil
		}

		sum := sha256.Sum256(body)
		tag := `W/"` + hex.EncodeToString(sum[:12]) + `"`
		c.Set(fiber.HeaderETag, tag)

		// If-None-Match may carry a list; any member matching our tag
		// (or a wildcard) means the client's copy is current.
		for _, cand := range strings.Split(c.Get(fiber.HeaderIfNoneMatch), ",") {
			if cand = strings.TrimSpace(cand); cand == tag || cand == "*" {
				c.Status(fiber.StatusNotModified)
				c.Response().ResetBody()
				return nil
			}
		}
		return nil
	}
}
