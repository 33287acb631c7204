package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opspulse_backend/internal/settings/service"
	"opspulse_backend/internal/settings/transport"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for domain settings.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new settings handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the settings routes. Mutations run behind the
// given admin-only middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:category", h.Get)
	rg.PUT("/:category", adminOnly, h.Update)
}

// List handles GET /api/v1/settings
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSettingsList(list))
}

// Get handles GET /api/v1/settings/:category
func (h *Handler) Get(c *gin.Context) {
	settings, err := h.svc.Get(c.Request.Context(), domain.Category(c.Param("category")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSettings(settings))
}

// Update handles PUT /api/v1/settings/:category
func (h *Handler) Update(c *gin.Context) {
	var req transport.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	settings := req.ToDomain(domain.Category(c.Param("category")))
	saved, err := h.svc.Update(c.Request.Context(), settings, req.Version)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSettings(saved))
}
