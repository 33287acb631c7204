package repository

import (
	"context"
	"errors"
	"time"

	"opspulse_backend/internal/signals/domain"

	"github.com/google/uuid"
)

// ErrDuplicateActive is returned by inserts when an active row already exists
// for the dedup key. Callers re-read and treat the existing row as the result.
var ErrDuplicateActive = errors.New("active item already exists for dedup key")

// SignalFilter narrows signal list queries. Nil fields match everything.
type SignalFilter struct {
	Category    *domain.Category
	Severity    *domain.Severity
	Status      *domain.SignalStatus
	TriggerType *string
	Limit       int
	Offset      int
}

// FollowUpFilter narrows follow-up list queries. Nil fields match everything.
// DueBefore/DueAfter bound the due-window; Active selects all non-terminal
// statuses regardless of the Status field.
type FollowUpFilter struct {
	Reason     *domain.Reason
	Status     *domain.FollowUpStatus
	Category   *domain.Category
	NeedsHuman *bool
	Active     bool
	DueBefore  *time.Time
	DueAfter   *time.Time
	Limit      int
	Offset     int
}

// SignalReader provides read operations for signals.
type SignalReader interface {
	GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error)
	// FindOpenSignal looks up the single non-terminal signal for a
	// (category, trigger type, subject) tuple, if one exists.
	FindOpenSignal(ctx context.Context, category domain.Category, triggerType string, subject domain.SubjectRef) (domain.Signal, bool, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]domain.Signal, error)
}

// SignalWriter provides write operations for signals. All mutations take the
// expected version and fail with a conflict when another worker already
// transitioned the row.
type SignalWriter interface {
	InsertSignal(ctx context.Context, signal domain.Signal) (domain.Signal, error)
	// RefreshSignal updates the detected condition and severity of an
	// already-open signal on re-detection, without touching its status.
	RefreshSignal(ctx context.Context, id uuid.UUID, condition string, severity domain.Severity, expectedVersion int64) (domain.Signal, error)
	UpdateSignalStatus(ctx context.Context, id uuid.UUID, to domain.SignalStatus, resolvedAt *time.Time, expectedVersion int64) (domain.Signal, error)
}

// FollowUpReader provides read operations for follow-up items.
type FollowUpReader interface {
	GetFollowUp(ctx context.Context, id uuid.UUID) (domain.FollowUpItem, error)
	// FindActiveFollowUp looks up the single non-terminal item for a
	// (reason, subject) pair, if one exists.
	FindActiveFollowUp(ctx context.Context, reason domain.Reason, subject domain.SubjectRef) (domain.FollowUpItem, bool, error)
	ListFollowUps(ctx context.Context, filter FollowUpFilter) ([]domain.FollowUpItem, error)
}

// FollowUpWriter provides write operations for follow-up items.
type FollowUpWriter interface {
	InsertFollowUp(ctx context.Context, item domain.FollowUpItem) (domain.FollowUpItem, error)
	UpdateFollowUpStatus(ctx context.Context, id uuid.UUID, to domain.FollowUpStatus, completedAt *time.Time, expectedVersion int64) (domain.FollowUpItem, error)
	RescheduleFollowUp(ctx context.Context, id uuid.UUID, dueAt time.Time, status domain.FollowUpStatus, expectedVersion int64) (domain.FollowUpItem, error)
	// CacheFollowUpStatus refreshes the persisted derived-status cache.
	// It is a best-effort write guarded by the current cached value, never by
	// version: the derivation is authoritative, so a lost cache write is
	// harmless and is recomputed on the next read.
	CacheFollowUpStatus(ctx context.Context, id uuid.UUID, from, to domain.FollowUpStatus) error
	// AdvanceFollowUpStep moves the escalation step counter forward. The step
	// index is monotonic; a smaller or equal index is a conflict.
	AdvanceFollowUpStep(ctx context.Context, id uuid.UUID, stepIndex int, at time.Time, expectedVersion int64) (domain.FollowUpItem, error)
	FlagNeedsHuman(ctx context.Context, id uuid.UUID) error
	IncrementDispatchFailures(ctx context.Context, id uuid.UUID) error
}

// Store combines all queue persistence operations.
type Store interface {
	SignalReader
	SignalWriter
	FollowUpReader
	FollowUpWriter
}
