package http

import (
	"github.com/jmaguas/azenha/internal/adapters/postgres"
	"github.com/jmaguas/azenha/internal/adapters/valkey"
	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/nats-io/nats.go"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Structures *usecases.StructureService
	Channels   *usecases.ChannelService
	Snap       *usecases.SnapService
	Export     *usecases.ExportService
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache

	// SnapThreshold is the configured match radius in meters, applied
	// when a request does not carry its own. Zero falls through to the
	// engine default.
	SnapThreshold float64
}
