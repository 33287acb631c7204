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

// MemoryStore is an in-memory Store implementation with the same semantics as
// the Postgres repository: version-guarded writes, dedup on active keys, and a
// monotonic escalation step counter. It backs unit tests and local runs
// without a database.
type MemoryStore struct {
	mu        sync.Mutex
	signals   map[uuid.UUID]domain.Signal
	followUps map[uuid.UUID]domain.FollowUpItem
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:   make(map[uuid.UUID]domain.Signal),
		followUps: make(map[uuid.UUID]domain.FollowUpItem),
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

// =============================================================================
// Signals
// =============================================================================

func (m *MemoryStore) GetSignal(_ context.Context, id uuid.UUID) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signal, ok := m.signals[id]
	if !ok {
		return domain.Signal{}, apperr.NotFound(signalNotFoundMessage)
	}
	return signal, nil
}

func (m *MemoryStore) FindOpenSignal(_ context.Context, category domain.Category, triggerType string, subject domain.SubjectRef) (domain.Signal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signal, ok := m.findOpenSignalLocked(category, triggerType, subject)
	return signal, ok, nil
}

func (m *MemoryStore) findOpenSignalLocked(category domain.Category, triggerType string, subject domain.SubjectRef) (domain.Signal, bool) {
	for _, s := range m.signals {
		if s.Category == category && s.TriggerType == triggerType && s.Subject == subject && !s.Status.Terminal() {
			return s, true
		}
	}
	return domain.Signal{}, false
}

func (m *MemoryStore) ListSignals(_ context.Context, filter SignalFilter) ([]domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]domain.Signal, 0)
	for _, s := range m.signals {
		if filter.Category != nil && s.Category != *filter.Category {
			continue
		}
		if filter.Severity != nil && s.Severity != *filter.Severity {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.TriggerType != nil && s.TriggerType != *filter.TriggerType {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) InsertSignal(_ context.Context, signal domain.Signal) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findOpenSignalLocked(signal.Category, signal.TriggerType, signal.Subject); exists {
		return domain.Signal{}, fmt.Errorf("insert signal: %w", ErrDuplicateActive)
	}

	now := m.now()
	signal.Version = 1
	signal.CreatedAt = now
	signal.UpdatedAt = now
	m.signals[signal.ID] = signal
	return signal, nil
}

func (m *MemoryStore) RefreshSignal(_ context.Context, id uuid.UUID, condition string, severity domain.Severity, expectedVersion int64) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signal, ok := m.signals[id]
	if !ok {
		return domain.Signal{}, apperr.NotFound(signalNotFoundMessage)
	}
	if signal.Version != expectedVersion {
		return domain.Signal{}, apperr.Conflict(staleVersionMessage)
	}

	signal.ConditionDetected = condition
	signal.Severity = severity
	signal.Version++
	signal.UpdatedAt = m.now()
	m.signals[id] = signal
	return signal, nil
}

func (m *MemoryStore) UpdateSignalStatus(_ context.Context, id uuid.UUID, to domain.SignalStatus, resolvedAt *time.Time, expectedVersion int64) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signal, ok := m.signals[id]
	if !ok {
		return domain.Signal{}, apperr.NotFound(signalNotFoundMessage)
	}
	if signal.Version != expectedVersion {
		return domain.Signal{}, apperr.Conflict(staleVersionMessage)
	}

	signal.Status = to
	signal.ResolvedAt = resolvedAt
	signal.Version++
	signal.UpdatedAt = m.now()
	m.signals[id] = signal
	return signal, nil
}

// =============================================================================
// Follow-up items
// =============================================================================

func (m *MemoryStore) GetFollowUp(_ context.Context, id uuid.UUID) (domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return domain.FollowUpItem{}, apperr.NotFound(followUpNotFoundMessage)
	}
	return item, nil
}

func (m *MemoryStore) FindActiveFollowUp(_ context.Context, reason domain.Reason, subject domain.SubjectRef) (domain.FollowUpItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.findActiveFollowUpLocked(reason, subject)
	return item, ok, nil
}

func (m *MemoryStore) findActiveFollowUpLocked(reason domain.Reason, subject domain.SubjectRef) (domain.FollowUpItem, bool) {
	for _, f := range m.followUps {
		if f.Reason == reason && f.Subject == subject && f.Status.Active() {
			return f, true
		}
	}
	return domain.FollowUpItem{}, false
}

func (m *MemoryStore) ListFollowUps(_ context.Context, filter FollowUpFilter) ([]domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]domain.FollowUpItem, 0)
	for _, f := range m.followUps {
		if filter.Reason != nil && f.Reason != *filter.Reason {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && f.Subject.Domain != *filter.Category {
			continue
		}
		if filter.NeedsHuman != nil && f.NeedsHuman != *filter.NeedsHuman {
			continue
		}
		if filter.Active && !f.Status.Active() {
			continue
		}
		if filter.DueBefore != nil && !f.DueAt.Before(*filter.DueBefore) {
			continue
		}
		if filter.DueAfter != nil && f.DueAt.Before(*filter.DueAfter) {
			continue
		}
		matched = append(matched, f)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].DueAt.Before(matched[j].DueAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) InsertFollowUp(_ context.Context, item domain.FollowUpItem) (domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findActiveFollowUpLocked(item.Reason, item.Subject); exists {
		return domain.FollowUpItem{}, fmt.Errorf("insert follow-up: %w", ErrDuplicateActive)
	}

	now := m.now()
	item.Version = 1
	item.NeedsHuman = false
	item.DispatchFailures = 0
	item.CreatedAt = now
	item.UpdatedAt = now
	m.followUps[item.ID] = item
	return item, nil
}

func (m *MemoryStore) UpdateFollowUpStatus(_ context.Context, id uuid.UUID, to domain.FollowUpStatus, completedAt *time.Time, expectedVersion int64) (domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return domain.FollowUpItem{}, apperr.NotFound(followUpNotFoundMessage)
	}
	if item.Version != expectedVersion {
		return domain.FollowUpItem{}, apperr.Conflict(staleVersionMessage)
	}

	item.Status = to
	item.CompletedAt = completedAt
	item.Version++
	item.UpdatedAt = m.now()
	m.followUps[id] = item
	return item, nil
}

func (m *MemoryStore) RescheduleFollowUp(_ context.Context, id uuid.UUID, dueAt time.Time, status domain.FollowUpStatus, expectedVersion int64) (domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return domain.FollowUpItem{}, apperr.NotFound(followUpNotFoundMessage)
	}
	if item.Version != expectedVersion {
		return domain.FollowUpItem{}, apperr.Conflict(staleVersionMessage)
	}

	item.DueAt = dueAt
	item.Status = status
	item.Version++
	item.UpdatedAt = m.now()
	m.followUps[id] = item
	return item, nil
}

func (m *MemoryStore) CacheFollowUpStatus(_ context.Context, id uuid.UUID, from, to domain.FollowUpStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok || item.Status != from || item.Status.Terminal() {
		return nil
	}
	item.Status = to
	m.followUps[id] = item
	return nil
}

func (m *MemoryStore) AdvanceFollowUpStep(_ context.Context, id uuid.UUID, stepIndex int, at time.Time, expectedVersion int64) (domain.FollowUpItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return domain.FollowUpItem{}, apperr.NotFound(followUpNotFoundMessage)
	}
	if item.Version != expectedVersion || item.StepIndex >= stepIndex {
		return domain.FollowUpItem{}, apperr.Conflict(staleVersionMessage)
	}

	item.StepIndex = stepIndex
	escalatedAt := at
	item.LastEscalatedAt = &escalatedAt
	item.Version++
	item.UpdatedAt = m.now()
	m.followUps[id] = item
	return item, nil
}

func (m *MemoryStore) FlagNeedsHuman(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return apperr.NotFound(followUpNotFoundMessage)
	}
	item.NeedsHuman = true
	item.UpdatedAt = m.now()
	m.followUps[id] = item
	return nil
}

func (m *MemoryStore) IncrementDispatchFailures(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.followUps[id]
	if !ok {
		return apperr.NotFound(followUpNotFoundMessage)
	}
	item.DispatchFailures++
	item.UpdatedAt = m.now()
	m.followUps[id] = item
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
