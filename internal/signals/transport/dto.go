package transport

import (
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/signals/domain"
)

// ListSignalsRequest is the query parameters for listing signals.
type ListSignalsRequest struct {
	Category    *string `form:"category" validate:"omitempty,oneof=finance crm inventory operations personal ambassador"`
	Severity    *string `form:"severity" validate:"omitempty,oneof=critical high medium low"`
	Status      *string `form:"status" validate:"omitempty,oneof=open processing resolved dismissed"`
	TriggerType *string `form:"triggerType"`
	Page        int     `form:"page" validate:"omitempty,min=1"`
	PageSize    int     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ListFollowUpsRequest is the query parameters for listing follow-up items.
type ListFollowUpsRequest struct {
	Reason     *string `form:"reason"`
	Status     *string `form:"status" validate:"omitempty,oneof=pending due_today overdue completed cancelled"`
	Category   *string `form:"category" validate:"omitempty,oneof=finance crm inventory operations personal ambassador"`
	NeedsHuman *bool   `form:"needsHuman"`
	Active     bool    `form:"active"`
	Page       int     `form:"page" validate:"omitempty,min=1"`
	PageSize   int     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// RescheduleRequest is the request body for moving a follow-up due date.
type RescheduleRequest struct {
	DueAt time.Time `json:"dueAt" validate:"required"`
}

// SignalResponse is the response body for a signal.
type SignalResponse struct {
	ID                uuid.UUID           `json:"id"`
	Category          domain.Category     `json:"category"`
	Severity          domain.Severity     `json:"severity"`
	TriggerType       string              `json:"triggerType"`
	Subject           domain.SubjectRef   `json:"subject"`
	ConditionDetected string              `json:"conditionDetected"`
	RecommendedAction string              `json:"recommendedAction"`
	Status            domain.SignalStatus `json:"status"`
	ResolvedAt        *time.Time          `json:"resolvedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// FollowUpResponse is the response body for a follow-up item.
type FollowUpResponse struct {
	ID                uuid.UUID             `json:"id"`
	Reason            domain.Reason         `json:"reason"`
	RecommendedAction domain.ActionType     `json:"recommendedAction"`
	Severity          domain.Severity       `json:"severity"`
	Priority          int                   `json:"priority"`
	DueAt             time.Time             `json:"dueAt"`
	Status            domain.FollowUpStatus `json:"status"`
	Subject           domain.SubjectRef     `json:"subject"`
	ContactName       string                `json:"contactName,omitempty"`
	ContactPhone      string                `json:"contactPhone,omitempty"`
	ContactEmail      string                `json:"contactEmail,omitempty"`
	StepIndex         int                   `json:"stepIndex"`
	LastEscalatedAt   *time.Time            `json:"lastEscalatedAt,omitempty"`
	NeedsHuman        bool                  `json:"needsHuman"`
	DispatchFailures  int                   `json:"dispatchFailures"`
	CompletedAt       *time.Time            `json:"completedAt,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// FromSignal maps a domain signal to its response shape.
func FromSignal(s domain.Signal) SignalResponse {
	return SignalResponse{
		ID:                s.ID,
		Category:          s.Category,
		Severity:          s.Severity,
		TriggerType:       s.TriggerType,
		Subject:           s.Subject,
		ConditionDetected: s.ConditionDetected,
		RecommendedAction: s.RecommendedAction,
		Status:            s.Status,
		ResolvedAt:        s.ResolvedAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// FromSignals maps a slice of domain signals.
func FromSignals(signals []domain.Signal) []SignalResponse {
	out := make([]SignalResponse, len(signals))
	for i, s := range signals {
		out[i] = FromSignal(s)
	}
	return out
}

// FromFollowUp maps a domain follow-up item to its response shape.
func FromFollowUp(f domain.FollowUpItem) FollowUpResponse {
	return FollowUpResponse{
		ID:                f.ID,
		Reason:            f.Reason,
		RecommendedAction: f.RecommendedAction,
		Severity:          f.Severity,
		Priority:          f.Priority,
		DueAt:             f.DueAt,
		Status:            f.Status,
		Subject:           f.Subject,
		ContactName:       f.ContactName,
		ContactPhone:      f.ContactPhone,
		ContactEmail:      f.ContactEmail,
		StepIndex:         f.StepIndex,
		LastEscalatedAt:   f.LastEscalatedAt,
		NeedsHuman:        f.NeedsHuman,
		DispatchFailures:  f.DispatchFailures,
		CompletedAt:       f.CompletedAt,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// FromFollowUps maps a slice of domain follow-up items.
func FromFollowUps(items []domain.FollowUpItem) []FollowUpResponse {
	out := make([]FollowUpResponse, len(items))
	for i, f := range items {
		out[i] = FromFollowUp(f)
	}
	return out
}
