package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/internal/signals/repository"
	"opspulse_backend/internal/signals/service"
	"opspulse_backend/internal/signals/transport"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	defaultPageSize = 50
)

// Handler handles HTTP requests for signals and follow-up items.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new signals handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the signal and follow-up routes.
func (h *Handler) RegisterRoutes(signals, followUps *gin.RouterGroup) {
	signals.GET("", h.ListSignals)
	signals.GET("/:id", h.GetSignal)
	signals.POST("/:id/process", h.MarkProcessing)
	signals.POST("/:id/resolve", h.Resolve)
	signals.POST("/:id/dismiss", h.Dismiss)

	followUps.GET("", h.ListFollowUps)
	followUps.GET("/:id", h.GetFollowUp)
	followUps.POST("/:id/complete", h.Complete)
	followUps.POST("/:id/cancel", h.Cancel)
	followUps.POST("/:id/reschedule", h.Reschedule)
}

// ListSignals handles GET /api/v1/signals
func (h *Handler) ListSignals(c *gin.Context) {
	var req transport.ListSignalsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	filter := repository.SignalFilter{TriggerType: req.TriggerType}
	if req.Category != nil {
		category := domain.Category(*req.Category)
		filter.Category = &category
	}
	if req.Severity != nil {
		severity := domain.Severity(*req.Severity)
		filter.Severity = &severity
	}
	if req.Status != nil {
		status := domain.SignalStatus(*req.Status)
		filter.Status = &status
	}
	filter.Limit, filter.Offset = pageWindow(req.Page, req.PageSize)

	signals, err := h.svc.ListSignals(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSignals(signals))
}

// GetSignal handles GET /api/v1/signals/:id
func (h *Handler) GetSignal(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	signal, err := h.svc.GetSignal(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSignal(signal))
}

// MarkProcessing handles POST /api/v1/signals/:id/process
func (h *Handler) MarkProcessing(c *gin.Context) {
	h.transitionSignal(c, h.svc.MarkProcessing)
}

// Resolve handles POST /api/v1/signals/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	h.transitionSignal(c, h.svc.Resolve)
}

// Dismiss handles POST /api/v1/signals/:id/dismiss
func (h *Handler) Dismiss(c *gin.Context) {
	h.transitionSignal(c, h.svc.Dismiss)
}

// ListFollowUps handles GET /api/v1/followups
func (h *Handler) ListFollowUps(c *gin.Context) {
	var req transport.ListFollowUpsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	filter := repository.FollowUpFilter{
		NeedsHuman: req.NeedsHuman,
		Active:     req.Active,
	}
	if req.Reason != nil {
		reason := domain.Reason(*req.Reason)
		filter.Reason = &reason
	}
	if req.Status != nil {
		status := domain.FollowUpStatus(*req.Status)
		filter.Status = &status
	}
	if req.Category != nil {
		category := domain.Category(*req.Category)
		filter.Category = &category
	}
	filter.Limit, filter.Offset = pageWindow(req.Page, req.PageSize)

	items, err := h.svc.ListFollowUps(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromFollowUps(items))
}

// GetFollowUp handles GET /api/v1/followups/:id
func (h *Handler) GetFollowUp(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := h.svc.GetFollowUp(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromFollowUp(item))
}

// Complete handles POST /api/v1/followups/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	h.transitionFollowUp(c, h.svc.Complete)
}

// Cancel handles POST /api/v1/followups/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.transitionFollowUp(c, h.svc.Cancel)
}

// Reschedule handles POST /api/v1/followups/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	item, err := h.svc.Reschedule(c.Request.Context(), id, req.DueAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromFollowUp(item))
}

func (h *Handler) transitionSignal(c *gin.Context, op func(context.Context, uuid.UUID) (domain.Signal, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	signal, err := op(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromSignal(signal))
}

func (h *Handler) transitionFollowUp(c *gin.Context, op func(context.Context, uuid.UUID) (domain.FollowUpItem, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := op(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromFollowUp(item))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func pageWindow(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
