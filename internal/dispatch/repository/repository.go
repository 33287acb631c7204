// Package repository persists the dispatch audit log and the human approval
// queue. The dispatch log doubles as the idempotency claim: at most one
// live record exists per (item, step).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/signals/domain"
)

// ErrAlreadyClaimed is returned when a (item, step) pair already has a live
// dispatch record. Callers treat it as "someone else sent this step".
var ErrAlreadyClaimed = errors.New("dispatch step already claimed")

// RecordStatus is the lifecycle of one dispatch-log record. in_flight, sent,
// queued_approval, and rejected hold the idempotency claim; failed, discarded,
// and skipped release it so a later pass can retry.
type RecordStatus string

const (
	StatusInFlight       RecordStatus = "in_flight"
	StatusSent           RecordStatus = "sent"
	StatusFailed         RecordStatus = "failed"
	StatusDiscarded      RecordStatus = "discarded"
	StatusSkipped        RecordStatus = "skipped"
	StatusQueuedApproval RecordStatus = "queued_approval"
	StatusRejected       RecordStatus = "rejected"
)

// Record is one entry in the dispatch audit log.
type Record struct {
	ID         uuid.UUID           `json:"id"`
	ItemID     uuid.UUID           `json:"itemId"`
	Kind       domain.ItemKind     `json:"kind"`
	StepIndex  int                 `json:"stepIndex"`
	Category   domain.Category     `json:"category"`
	Channel    domain.ChannelKind  `json:"channel"`
	Action     domain.ActionType   `json:"action"`
	Message    string              `json:"message"`
	Status     RecordStatus        `json:"status"`
	Detail     string              `json:"detail,omitempty"`
	Mandatory  bool                `json:"mandatory"`
	OutOfBand  bool                `json:"outOfBand"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}

// ApprovalStatus is the lifecycle of a human approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is one queued human decision, carrying everything needed to
// execute the dispatch once approved.
type Approval struct {
	ID        uuid.UUID              `json:"id"`
	RecordID  uuid.UUID              `json:"recordId"`
	Request   domain.DispatchRequest `json:"request"`
	Reason    string                 `json:"reason"`
	Status    ApprovalStatus         `json:"status"`
	DecidedBy *uuid.UUID             `json:"decidedBy,omitempty"`
	DecidedAt *time.Time             `json:"decidedAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Store persists dispatch records and approvals.
type Store interface {
	// Claim opens an in_flight record for the request, or returns
	// ErrAlreadyClaimed when a live record already covers (item, step).
	Claim(ctx context.Context, req domain.DispatchRequest) (Record, error)
	// Finish closes a record with its final status and detail.
	Finish(ctx context.Context, recordID uuid.UUID, status RecordStatus, detail string) error
	// ListByItem returns the audit trail for one item, newest first.
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]Record, error)
	// CountFailedSince counts failed dispatches at or after the cutoff.
	CountFailedSince(ctx context.Context, cutoff time.Time) (int, error)

	EnqueueApproval(ctx context.Context, recordID uuid.UUID, req domain.DispatchRequest, reason string) (Approval, error)
	GetApproval(ctx context.Context, id uuid.UUID) (Approval, error)
	ListApprovals(ctx context.Context, status ApprovalStatus) ([]Approval, error)
	// DecideApproval moves a pending approval to its decision. Deciding a
	// non-pending approval is a conflict.
	DecideApproval(ctx context.Context, id uuid.UUID, approved bool, decidedBy uuid.UUID) (Approval, error)
}
