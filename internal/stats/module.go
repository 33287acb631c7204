package stats

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "opspulse_backend/internal/http"
)

// Module represents the stats domain module.
type Module struct {
	Service *Service
}

// NewModule creates a new stats module backed by the queue tables.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{Service: New(NewPostgresSource(pool))}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "stats"
}

// RegisterRoutes registers the dashboard routes under /api/v1/stats.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	stats := ctx.Protected.Group("/stats")
	stats.GET("/counts", m.handleCounts)
	stats.GET("/health", m.handleHealth)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
