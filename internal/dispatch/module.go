// Package dispatch provides the action dispatcher module: the approval queue,
// the dispatch audit log, and the outbound channel wiring.
package dispatch

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/channels"
	"opspulse_backend/internal/dispatch/handler"
	"opspulse_backend/internal/dispatch/repository"
	"opspulse_backend/internal/dispatch/service"
	"opspulse_backend/internal/events"
	apphttp "opspulse_backend/internal/http"
	signalsrepo "opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/config"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/validator"
)

// Config is the configuration surface the dispatch module needs.
type Config interface {
	config.MailConfig
	config.GatewayConfig
	config.RouteServiceConfig
	config.DispatchConfig
}

// Module represents the dispatch domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
	Store   repository.Store
}

// NewModule creates a new dispatch module with all dependencies wired. The
// channel set depends on configuration: unconfigured channels are left out of
// the registry and surface as dispatch failures rather than silent no-ops.
func NewModule(pool *pgxpool.Pool, items signalsrepo.Store, settings service.SettingsProvider, val *validator.Validator, bus events.Bus, log *logger.Logger, cfg Config) *Module {
	store := repository.New(pool)

	perSecond := cfg.GetChannelRatePerSecond()
	burst := cfg.GetChannelBurst()

	var set []channels.Channel
	if gw := channels.NewGatewayClient(cfg, log); gw != nil {
		set = append(set,
			channels.RateLimited(channels.NewCallChannel(gw), perSecond, burst),
			channels.RateLimited(channels.NewSMSChannel(gw), perSecond, burst),
		)
	}
	if email := channels.NewEmailChannel(cfg); email != nil {
		set = append(set, channels.RateLimited(email, perSecond, burst))
	}
	if route := channels.NewRouteChannel(cfg); route != nil {
		set = append(set, route)
	}
	set = append(set, channels.NewLedgerChannel(pool))
	registry := channels.NewRegistry(set...)

	svc := service.New(store, items, settings, registry, bus, log, cfg)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
		Store:   store,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "dispatch"
}

// RegisterRoutes registers the approval queue under /api/v1/approvals and the
// dispatch routes under /api/v1/followups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	approvals := ctx.Protected.Group("/approvals")
	followUps := ctx.Protected.Group("/followups")
	m.handler.RegisterRoutes(approvals, followUps, httpkit.RequireRole("admin"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
