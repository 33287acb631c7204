package settings

import (
	"fmt"

	apphttp "opspulse_backend/internal/http"
	"opspulse_backend/internal/settings/handler"
	"opspulse_backend/internal/settings/repository"
	"opspulse_backend/internal/settings/service"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the settings domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new settings module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) (*Module, error) {
	defaults, err := DefaultSettings()
	if err != nil {
		return nil, fmt.Errorf("settings module: %w", err)
	}

	repo := repository.New(pool)
	svc := service.New(repo, defaults, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}, nil
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "settings"
}

// RegisterRoutes registers the module's routes under /api/v1/settings.
// Mutations require the admin role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	settings := ctx.Protected.Group("/settings")
	m.handler.RegisterRoutes(settings, httpkit.RequireRole("admin"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
