package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout. /structures/nearby and
	// /channels/viewport must register before their :id siblings so the
	// literal segment is not read as an ID.
	v1 := app.Group("/v1")
	v1.Get("/structures", timeout.NewWithContext(ListStructuresHandler(deps), 15*time.Second))
	v1.Post("/structures", timeout.NewWithContext(CreateStructureHandler(deps), 15*time.Second))
	v1.Get("/structures/nearby", timeout.NewWithContext(NearbyStructuresHandler(deps), 15*time.Second))
	v1.Get("/structures/:id", timeout.NewWithContext(GetStructureHandler(deps), 15*time.Second))
	v1.Put("/structures/:id", timeout.NewWithContext(UpdateStructureHandler(deps), 15*time.Second))
	v1.Delete("/structures/:id", timeout.NewWithContext(DeleteStructureHandler(deps), 15*time.Second))
	v1.Get("/channels", timeout.NewWithContext(ListChannelsHandler(deps), 15*time.Second))
	v1.Post("/channels", timeout.NewWithContext(CreateChannelHandler(deps), 15*time.Second))
	v1.Get("/channels/viewport", timeout.NewWithContext(ViewportChannelsHandler(deps), 15*time.Second))
	v1.Get("/channels/:id", timeout.NewWithContext(GetChannelHandler(deps), 15*time.Second))
	v1.Put("/channels/:id", timeout.NewWithContext(UpdateChannelHandler(deps), 15*time.Second))
	v1.Delete("/channels/:id", timeout.NewWithContext(DeleteChannelHandler(deps), 15*time.Second))
	v1.Get("/channels/:id/structures", timeout.NewWithContext(ChannelStructuresHandler(deps), 15*time.Second))

	// Snap resolution (read-only, but takes a JSON body)
	v1.Post("/snap/resolve", timeout.NewWithContext(SnapResolveHandler(deps), 15*time.Second))

	// Enriched endpoints
	v1.Get("/export/geojson", timeout.NewWithContext(ExportGeoJSONHandler(deps), 15*time.Second))
	v1.Get("/municipalities/:name/stats", timeout.NewWithContext(MunicipalityStatsHandler(deps), 15*time.Second))
	v1.Get("/catalog/stats", timeout.NewWithContext(CatalogStatsHandler(deps), 15*time.Second))

	// Legacy mills listing, sunset scheduled
	deprecated := DeprecationMiddleware([]DeprecatedRoute{{
		Path:        "/v1/mills",
		SunsetDate:  time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/structures?kind=mill",
	}})
	v1.Get("/mills", deprecated, timeout.NewWithContext(MillsHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
