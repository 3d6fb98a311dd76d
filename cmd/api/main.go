package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jmaguas/azenha/internal/adapters/http"
	natsadapter "github.com/jmaguas/azenha/internal/adapters/nats"
	"github.com/jmaguas/azenha/internal/adapters/postgres"
	"github.com/jmaguas/azenha/internal/adapters/valkey"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/jmaguas/azenha/internal/pkg/config"
	"github.com/jmaguas/azenha/internal/pkg/logging"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
	"github.com/jmaguas/azenha/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("azenha-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. The API serves reads without it, so a dead Valkey only
	// costs latency. Assign the interface on success only; a typed nil
	// would slip past the services' nil checks.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, change events disabled", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	structureRepo := postgres.NewStructureRepo(db)
	channelRepo := postgres.NewChannelRepo(db)

	// Use cases
	snapSvc := usecases.NewSnapService(structureRepo, channelRepo, publisher)
	structureSvc := usecases.NewStructureService(structureRepo, cacheSvc, publisher, snapSvc)
	channelSvc := usecases.NewChannelService(channelRepo, cacheSvc, publisher, snapSvc)
	exportSvc := usecases.NewExportService(structureRepo, channelRepo, cacheSvc)

	deps := &http.Dependencies{
		Structures:    structureSvc,
		Channels:      channelSvc,
		Snap:          snapSvc,
		Export:        exportSvc,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
		SnapThreshold: cfg.Snap.DefaultThresholdM,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Azenha Catalog API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.azenha.pt",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Pool gauges for Grafana; cheap enough to sample often
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
