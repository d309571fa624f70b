package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/core/usecases"
)

// Pinger is a backing service that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Publisher, NATS,
// DB and Cache may be nil.
type Dependencies struct {
	Labels    *usecases.LabelService
	Numbers   *usecases.NumberingService
	Proximity *usecases.ProximityService
	Publisher ports.EventPublisher
	NATS      *nats.Conn
	DB        Pinger
	Cache     Pinger
}
