// Package transport defines the HTTP request and response shapes for the
// dispatch module.
package transport

import (
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/dispatch/repository"
	"opspulse_backend/internal/signals/domain"
)

// ListApprovalsRequest filters the approval queue.
type ListApprovalsRequest struct {
	Status *string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// ApprovalResponse is the API representation of one queued human decision.
type ApprovalResponse struct {
	ID        uuid.UUID  `json:"id"`
	ItemID    uuid.UUID  `json:"itemId"`
	Kind      string     `json:"kind"`
	StepIndex int        `json:"stepIndex"`
	Category  string     `json:"category"`
	Severity  string     `json:"severity"`
	Action    string     `json:"action"`
	Channel   string     `json:"channel"`
	Message   string     `json:"message"`
	Entity    string     `json:"entity"`
	Mandatory bool       `json:"mandatory"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	DecidedBy *uuid.UUID `json:"decidedBy,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FromApproval maps a repository approval to its API shape.
func FromApproval(a repository.Approval) ApprovalResponse {
	return ApprovalResponse{
		ID:        a.ID,
		ItemID:    a.Request.ItemID,
		Kind:      string(a.Request.Kind),
		StepIndex: a.Request.StepIndex,
		Category:  string(a.Request.Category),
		Severity:  string(a.Request.Severity),
		Action:    string(a.Request.Action),
		Channel:   string(a.Request.Channel),
		Message:   a.Request.Message,
		Entity:    a.Request.Subject.String(),
		Mandatory: a.Request.Mandatory,
		Reason:    a.Reason,
		Status:    string(a.Status),
		DecidedBy: a.DecidedBy,
		DecidedAt: a.DecidedAt,
		CreatedAt: a.CreatedAt,
	}
}

// FromApprovals maps a slice of approvals.
func FromApprovals(approvals []repository.Approval) []ApprovalResponse {
	out := make([]ApprovalResponse, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, FromApproval(a))
	}
	return out
}

// RecordResponse is the API representation of one dispatch-log entry.
type RecordResponse struct {
	ID         uuid.UUID  `json:"id"`
	StepIndex  int        `json:"stepIndex"`
	Channel    string     `json:"channel"`
	Action     string     `json:"action"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	Mandatory  bool       `json:"mandatory"`
	OutOfBand  bool       `json:"outOfBand"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// FromRecord maps a dispatch record to its API shape.
func FromRecord(r repository.Record) RecordResponse {
	return RecordResponse{
		ID:         r.ID,
		StepIndex:  r.StepIndex,
		Channel:    string(r.Channel),
		Action:     string(r.Action),
		Message:    r.Message,
		Status:     string(r.Status),
		Detail:     r.Detail,
		Mandatory:  r.Mandatory,
		OutOfBand:  r.OutOfBand,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
}

// FromRecords maps a slice of dispatch records.
func FromRecords(records []repository.Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, FromRecord(r))
	}
	return out
}

// OutcomeResponse reports what happened to a dispatch attempt.
type OutcomeResponse struct {
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// FromOutcome maps a dispatch outcome to its API shape.
func FromOutcome(o domain.Outcome) OutcomeResponse {
	return OutcomeResponse{Status: string(o.Status), Detail: o.Detail, At: o.At}
}

// DecisionResponse pairs the decided approval with the execution outcome.
type DecisionResponse struct {
	Approval ApprovalResponse `json:"approval"`
	Outcome  OutcomeResponse  `json:"outcome"`
}
