// Package handler exposes the approval queue and dispatch audit log over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"opspulse_backend/internal/dispatch/repository"
	"opspulse_backend/internal/dispatch/service"
	"opspulse_backend/internal/dispatch/transport"
	"opspulse_backend/platform/httpkit"
	"opspulse_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for approvals and dispatch records.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new dispatch handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers approval routes (decisions gated to admins) and the
// per-item dispatch routes.
func (h *Handler) RegisterRoutes(approvals, followUps *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	approvals.GET("", h.ListApprovals)
	approvals.POST("/:id/approve", adminOnly, h.Approve)
	approvals.POST("/:id/reject", adminOnly, h.Reject)

	followUps.GET("/:id/dispatches", h.ListDispatches)
	followUps.POST("/:id/dispatch", adminOnly, h.TriggerNow)
}

// ListApprovals handles GET /api/v1/approvals
func (h *Handler) ListApprovals(c *gin.Context) {
	var req transport.ListApprovalsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	status := repository.ApprovalStatus("")
	if req.Status != nil {
		status = repository.ApprovalStatus(*req.Status)
	}
	approvals, err := h.svc.ListApprovals(c.Request.Context(), status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromApprovals(approvals))
}

// Approve handles POST /api/v1/approvals/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Reject handles POST /api/v1/approvals/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, false)
}

func (h *Handler) decide(c *gin.Context, approved bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	approval, outcome, err := h.svc.Decide(c.Request.Context(), id, approved, identity.OperatorID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DecisionResponse{
		Approval: transport.FromApproval(approval),
		Outcome:  transport.FromOutcome(outcome),
	})
}

// ListDispatches handles GET /api/v1/followups/:id/dispatches
func (h *Handler) ListDispatches(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	records, err := h.svc.ListDispatches(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromRecords(records))
}

// TriggerNow handles POST /api/v1/followups/:id/dispatch
func (h *Handler) TriggerNow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	outcome, err := h.svc.TriggerNow(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromOutcome(outcome))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
