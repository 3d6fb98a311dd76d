package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/jmaguas/azenha/internal/adapters/nats"
	"github.com/jmaguas/azenha/internal/adapters/postgres"
	"github.com/jmaguas/azenha/internal/adapters/valkey"
	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/jmaguas/azenha/internal/pkg/config"
	"github.com/jmaguas/azenha/internal/pkg/logging"
	"github.com/jmaguas/azenha/internal/pkg/telemetry"
	"github.com/jmaguas/azenha/internal/workflows"
)

func main() {
	cfg, err := config.Load("azenha-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

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

	structureRepo := postgres.NewStructureRepo(db)
	channelRepo := postgres.NewChannelRepo(db)
	geometryRepo := postgres.NewGeometryRepo(db)

	// NATS publisher for relink events
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, relink events disabled", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	integritySvc := usecases.NewIntegrityService(geometryRepo, structureRepo, channelRepo, publisher)

	// Catalog change events drop the cached export. Without Valkey
	// there is nothing to invalidate, so skip the subscriptions.
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, export invalidation disabled", "error", err)
	} else {
		defer cache.Close()
		exportSvc := usecases.NewExportService(structureRepo, channelRepo, cache)

		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeStructureEvents(ctx, func(ctx context.Context, _ *domain.Structure) error {
				return exportSvc.Invalidate(ctx)
			}); err != nil {
				slog.Warn("subscribe structure events", "error", err)
			}
			if err := sub.SubscribeChannelEvents(ctx, func(ctx context.Context, _ *domain.Channel) error {
				return exportSvc.Invalidate(ctx)
			}); err != nil {
				slog.Warn("subscribe channel events", "error", err)
			}
		}
	}

	// Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, "geometry-audit", worker.Options{})

	w.RegisterWorkflow(workflows.GeometryAuditWorkflow)
	w.RegisterActivity(&workflows.AuditActivities{
		Integrity: integritySvc,
	})

	slog.Info("audit worker started", "queue", "geometry-audit")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
