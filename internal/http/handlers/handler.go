package handlers

import (
	"delixmi-order-services/internal/config"
	"delixmi-order-services/internal/dispatch"
	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/payments"
	"delixmi-order-services/internal/pricing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *pgxpool.Pool
	Logger   *zap.Logger
	Config   config.Config
	Events   *events.Emitter
	Dispatch *dispatch.Engine
	Gateway  payments.Gateway
	Distance pricing.DistanceFn
}
