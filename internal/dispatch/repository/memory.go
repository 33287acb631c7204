package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
)

// MemoryStore is an in-memory Store implementation mirroring the Postgres
// claim semantics, for unit tests.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[uuid.UUID]Record
	approvals map[uuid.UUID]Approval
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory dispatch store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[uuid.UUID]Record),
		approvals: make(map[uuid.UUID]Approval),
		now:       time.Now,
	}
}

// SetClock overrides the store clock, for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// claiming reports whether a record status holds the (item, step) claim.
func claiming(status RecordStatus) bool {
	switch status {
	case StatusInFlight, StatusSent, StatusQueuedApproval, StatusRejected:
		return true
	}
	return false
}

func (m *MemoryStore) Claim(_ context.Context, req domain.DispatchRequest) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ItemID == req.ItemID && rec.StepIndex == req.StepIndex && claiming(rec.Status) {
			return Record{}, fmt.Errorf("claim dispatch: %w", ErrAlreadyClaimed)
		}
	}

	rec := Record{
		ID:        uuid.New(),
		ItemID:    req.ItemID,
		Kind:      req.Kind,
		StepIndex: req.StepIndex,
		Category:  req.Category,
		Channel:   req.Channel,
		Action:    req.Action,
		Message:   req.Message,
		Status:    StatusInFlight,
		Mandatory: req.Mandatory,
		OutOfBand: req.OutOfBand,
		CreatedAt: m.now(),
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *MemoryStore) Finish(_ context.Context, recordID uuid.UUID, status RecordStatus, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return apperr.NotFound(recordNotFoundMessage)
	}
	finishedAt := m.now()
	rec.Status = status
	rec.Detail = detail
	rec.FinishedAt = &finishedAt
	m.records[recordID] = rec
	return nil
}

func (m *MemoryStore) ListByItem(_ context.Context, itemID uuid.UUID) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.records {
		if rec.ItemID == itemID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CountFailedSince(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.records {
		if rec.Status == StatusFailed && !rec.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) EnqueueApproval(_ context.Context, recordID uuid.UUID, req domain.DispatchRequest, reason string) (Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	approval := Approval{
		ID:        uuid.New(),
		RecordID:  recordID,
		Request:   req,
		Reason:    reason,
		Status:    ApprovalPending,
		CreatedAt: m.now(),
	}
	m.approvals[approval.ID] = approval
	return approval, nil
}

func (m *MemoryStore) GetApproval(_ context.Context, id uuid.UUID) (Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	approval, ok := m.approvals[id]
	if !ok {
		return Approval{}, apperr.NotFound(approvalNotFoundMessage)
	}
	return approval, nil
}

func (m *MemoryStore) ListApprovals(_ context.Context, status ApprovalStatus) ([]Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Approval
	for _, approval := range m.approvals {
		if approval.Status == status {
			out = append(out, approval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DecideApproval(_ context.Context, id uuid.UUID, approved bool, decidedBy uuid.UUID) (Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	approval, ok := m.approvals[id]
	if !ok {
		return Approval{}, apperr.NotFound(approvalNotFoundMessage)
	}
	if approval.Status != ApprovalPending {
		return Approval{}, apperr.Conflict(approvalDecidedMessage)
	}

	approval.Status = ApprovalRejected
	if approved {
		approval.Status = ApprovalApproved
	}
	decidedAt := m.now()
	approval.DecidedBy = &decidedBy
	approval.DecidedAt = &decidedAt
	m.approvals[id] = approval
	return approval, nil
}
