package scan

import (
	apphttp "opspulse_backend/internal/http"
	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/platform/events"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the scan domain module.
type Module struct {
	Service *Service
}

// NewModule creates a new scan module over pg-backed fact sources.
func NewModule(pool *pgxpool.Pool, settings SettingsProvider, lifecycle Lifecycle, bus events.Bus, log *logger.Logger) *Module {
	svc := New(facts.NewPostgresSources(pool), settings, lifecycle, bus, log)
	return &Module{Service: svc}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "scan"
}

// RegisterRoutes registers the on-demand scan trigger under /api/v1/scan.
// Running a scan by hand is an admin operation.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	scan := ctx.Protected.Group("/scan")
	scan.POST("/run", httpkit.RequireRole("admin"), m.handleRun)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
