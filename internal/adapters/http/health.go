package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmaguas/azenha/internal/adapters/postgres"
	"github.com/jmaguas/azenha/internal/adapters/valkey"
	"github.com/nats-io/nats.go"
)

// HealthHandler answers liveness probes.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler probes the backing services. The database is the only
// hard dependency; an unconfigured NATS or Valkey degrades features
// without flipping readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		dbStatus, dbOK := probeDatabase(ctx, deps.DB)
		natsStatus, natsOK := probeNATS(deps.NATS)
		cacheStatus, cacheOK := probeCache(ctx, deps.Cache)

		status, code := "ready", fiber.StatusOK
		if !dbOK || !natsOK || !cacheOK {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"database": dbStatus,
				"nats":     natsStatus,
				"cache":    cacheStatus,
			},
		})
	}
}

func probeDatabase(ctx context.Context, db *postgres.DB) (string, bool) {
	if db == nil {
		return "not configured", false
	}
	if err := db.Pool.Ping(ctx); err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

// A configured connection that dropped blocks readiness; never having
// one only disables live updates.
func probeNATS(conn *nats.Conn) (string, bool) {
	if conn == nil {
		return "not configured", true
	}
	if !conn.IsConnected() {
		return "disconnected", false
	}
	return "ok", true
}

// A miss on the probe key still proves Valkey answered.
func probeCache(ctx context.Context, cache *valkey.Cache) (string, bool) {
	if cache == nil {
		return "not configured", true
	}
	if _, err := cache.Get(ctx, "readyz:probe"); err != nil && err.Error() != "valkey nil message" {
		return "error: " + err.Error(), false
	}
	return "ok", true
}
