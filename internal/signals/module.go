// Package signals provides the signal and follow-up queue module: the read
// and command surface over detected conditions and scheduled outbound work.
package signals

import (
	apphttp "opspulse_backend/internal/http"
	"opspulse_backend/internal/signals/handler"
	"opspulse_backend/internal/signals/repository"
	"opspulse_backend/internal/signals/service"
	"opspulse_backend/platform/events"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the signals domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
	Store   repository.Store
}

// NewModule creates a new signals module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, log *logger.Logger) *Module {
	store := repository.New(pool)
	svc := service.New(store, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
		Store:   store,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "signals"
}

// RegisterRoutes registers the module's routes under /api/v1/signals and
// /api/v1/followups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	signals := ctx.Protected.Group("/signals")
	followUps := ctx.Protected.Group("/followups")
	m.handler.RegisterRoutes(signals, followUps)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
