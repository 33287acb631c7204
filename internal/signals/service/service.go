// Package service implements the dedup and lifecycle manager for the queue:
// it is the only writer of signal and follow-up state besides the dispatcher,
// enforces the transition tables, and guarantees at most one active item per
// dedup key.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/events"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/apperr"
	"opspulse_backend/platform/logger"
)

// Service is the dedup and lifecycle manager.
type Service struct {
	store repository.Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

// New creates a new lifecycle service.
func New(store repository.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store: store,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// =============================================================================
// Creation (dedup)
// =============================================================================

// UpsertSignal records a detected condition. If an open signal already exists
// for the (category, trigger type, subject) tuple, its detected condition and
// severity are refreshed instead of creating a duplicate; a signal that was
// being processed reverts to open, since the condition evidently persists.
func (s *Service) UpsertSignal(ctx context.Context, cand domain.SignalCandidate) (domain.Signal, bool, error) {
	existing, found, err := s.store.FindOpenSignal(ctx, cand.Category, cand.TriggerType, cand.Subject)
	if err != nil {
		return domain.Signal{}, false, err
	}
	if found {
		return s.refreshExistingSignal(ctx, existing, cand)
	}

	signal := domain.Signal{
		ID:                uuid.New(),
		Category:          cand.Category,
		Severity:          cand.Severity,
		TriggerType:       cand.TriggerType,
		Subject:           cand.Subject,
		ConditionDetected: cand.ConditionDetected,
		RecommendedAction: cand.RecommendedAction,
		Status:            domain.SignalOpen,
	}

	created, err := s.store.InsertSignal(ctx, signal)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			// Lost the race against a concurrent scan; refresh the winner.
			winner, found, findErr := s.store.FindOpenSignal(ctx, cand.Category, cand.TriggerType, cand.Subject)
			if findErr != nil {
				return domain.Signal{}, false, findErr
			}
			if found {
				return s.refreshExistingSignal(ctx, winner, cand)
			}
		}
		return domain.Signal{}, false, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.SignalRaised{
			BaseEvent:   events.NewBaseEvent(),
			SignalID:    created.ID,
			Category:    created.Category,
			Severity:    created.Severity,
			TriggerType: created.TriggerType,
		})
	}
	return created, true, nil
}

func (s *Service) refreshExistingSignal(ctx context.Context, existing domain.Signal, cand domain.SignalCandidate) (domain.Signal, bool, error) {
	// Identical facts mean an idempotent re-scan; leave the row untouched so
	// repeated scans cause no version churn.
	if existing.ConditionDetected == cand.ConditionDetected &&
		existing.Severity == cand.Severity &&
		existing.Status == domain.SignalOpen {
		return existing, false, nil
	}

	if existing.Status == domain.SignalProcessing {
		// Re-detected while being worked: still unresolved, escalate attention.
		reverted, err := s.store.UpdateSignalStatus(ctx, existing.ID, domain.SignalOpen, nil, existing.Version)
		if err != nil {
			return domain.Signal{}, false, err
		}
		existing = reverted
	}

	refreshed, err := s.store.RefreshSignal(ctx, existing.ID, cand.ConditionDetected, cand.Severity, existing.Version)
	if err != nil {
		return domain.Signal{}, false, err
	}
	return refreshed, false, nil
}

// UpsertFollowUp records a follow-up candidate, deduplicating on
// (reason, subject): at most one active item exists per pair.
func (s *Service) UpsertFollowUp(ctx context.Context, cand domain.FollowUpCandidate) (domain.FollowUpItem, bool, error) {
	existing, found, err := s.store.FindActiveFollowUp(ctx, cand.Reason, cand.Subject)
	if err != nil {
		return domain.FollowUpItem{}, false, err
	}
	if found {
		return s.withDerivedStatus(ctx, existing), false, nil
	}

	item := domain.FollowUpItem{
		ID:                uuid.New(),
		Reason:            cand.Reason,
		RecommendedAction: cand.RecommendedAction,
		Severity:          cand.Severity,
		Priority:          cand.Priority,
		DueAt:             cand.DueAt,
		Status:            domain.DeriveFollowUpStatus(cand.DueAt, s.now()),
		Subject:           cand.Subject,
		ContactName:       cand.ContactName,
		ContactPhone:      cand.ContactPhone,
		ContactEmail:      cand.ContactEmail,
		StepIndex:         -1,
	}

	created, err := s.store.InsertFollowUp(ctx, item)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			winner, found, findErr := s.store.FindActiveFollowUp(ctx, cand.Reason, cand.Subject)
			if findErr != nil {
				return domain.FollowUpItem{}, false, findErr
			}
			if found {
				return s.withDerivedStatus(ctx, winner), false, nil
			}
		}
		return domain.FollowUpItem{}, false, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.FollowUpCreated{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    created.ID,
			Reason:    created.Reason,
			Subject:   created.Subject,
		})
	}
	return created, true, nil
}

// =============================================================================
// Signal transitions
// =============================================================================

// MarkProcessing moves an open signal to processing.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	return s.transitionSignal(ctx, id, domain.SignalProcessing)
}

// Resolve closes a signal as handled.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	return s.transitionSignal(ctx, id, domain.SignalResolved)
}

// Dismiss closes a signal as not actionable.
func (s *Service) Dismiss(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	return s.transitionSignal(ctx, id, domain.SignalDismissed)
}

func (s *Service) transitionSignal(ctx context.Context, id uuid.UUID, to domain.SignalStatus) (domain.Signal, error) {
	signal, err := s.store.GetSignal(ctx, id)
	if err != nil {
		return domain.Signal{}, err
	}

	if err := domain.CheckSignalTransition(signal.Status, to); err != nil {
		return domain.Signal{}, apperr.Wrap(apperr.KindConflict, err.Error(), err)
	}

	var resolvedAt *time.Time
	if to.Terminal() {
		now := s.now()
		resolvedAt = &now
	}

	updated, err := s.store.UpdateSignalStatus(ctx, id, to, resolvedAt, signal.Version)
	if err != nil {
		return domain.Signal{}, err
	}
	return updated, nil
}

// =============================================================================
// Follow-up transitions
// =============================================================================

// Complete marks a follow-up item done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (domain.FollowUpItem, error) {
	return s.closeFollowUp(ctx, id, domain.FollowUpCompleted)
}

// Cancel withdraws a follow-up item. Takes effect even when a dispatch is in
// flight: the dispatcher re-checks status before committing its outcome.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.FollowUpItem, error) {
	return s.closeFollowUp(ctx, id, domain.FollowUpCancelled)
}

func (s *Service) closeFollowUp(ctx context.Context, id uuid.UUID, to domain.FollowUpStatus) (domain.FollowUpItem, error) {
	item, err := s.store.GetFollowUp(ctx, id)
	if err != nil {
		return domain.FollowUpItem{}, err
	}

	if err := domain.CheckFollowUpTransition(item.Status, to); err != nil {
		return domain.FollowUpItem{}, apperr.Wrap(apperr.KindConflict, err.Error(), err)
	}

	now := s.now()
	updated, err := s.store.UpdateFollowUpStatus(ctx, id, to, &now, item.Version)
	if err != nil {
		return domain.FollowUpItem{}, err
	}
	return updated, nil
}

// Reschedule moves the due date of an active item. The status is rederived
// from the new due date: a future date resets the item to pending, a past one
// lands directly on due_today or overdue.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, dueAt time.Time) (domain.FollowUpItem, error) {
	item, err := s.store.GetFollowUp(ctx, id)
	if err != nil {
		return domain.FollowUpItem{}, err
	}

	if item.Status.Terminal() {
		transitionErr := &domain.InvalidTransitionError{
			Kind: domain.KindFollowUp,
			From: string(item.Status),
			To:   string(domain.DeriveFollowUpStatus(dueAt, s.now())),
		}
		return domain.FollowUpItem{}, apperr.Wrap(apperr.KindConflict, transitionErr.Error(), transitionErr)
	}

	status := domain.DeriveFollowUpStatus(dueAt, s.now())
	updated, err := s.store.RescheduleFollowUp(ctx, id, dueAt, status, item.Version)
	if err != nil {
		return domain.FollowUpItem{}, err
	}
	return updated, nil
}

// =============================================================================
// Reads (lazy status refresh)
// =============================================================================

// GetSignal retrieves a signal by ID.
func (s *Service) GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	return s.store.GetSignal(ctx, id)
}

// ListSignals retrieves signals matching the filter.
func (s *Service) ListSignals(ctx context.Context, filter repository.SignalFilter) ([]domain.Signal, error) {
	return s.store.ListSignals(ctx, filter)
}

// GetFollowUp retrieves a follow-up item with its status derived from the
// clock; the persisted status is only a cache and is refreshed on the way out.
func (s *Service) GetFollowUp(ctx context.Context, id uuid.UUID) (domain.FollowUpItem, error) {
	item, err := s.store.GetFollowUp(ctx, id)
	if err != nil {
		return domain.FollowUpItem{}, err
	}
	return s.withDerivedStatus(ctx, item), nil
}

// ListFollowUps retrieves follow-up items matching the filter, each with its
// derived status.
func (s *Service) ListFollowUps(ctx context.Context, filter repository.FollowUpFilter) ([]domain.FollowUpItem, error) {
	items, err := s.store.ListFollowUps(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = s.withDerivedStatus(ctx, items[i])
	}
	return items, nil
}

// RefreshStatuses recomputes the persisted status cache for every active item.
// Called once per scan pass so the cache is never more than one interval stale.
func (s *Service) RefreshStatuses(ctx context.Context) error {
	items, err := s.store.ListFollowUps(ctx, repository.FollowUpFilter{Active: true})
	if err != nil {
		return err
	}
	for _, item := range items {
		derived := item.EffectiveStatus(s.now())
		if derived == item.Status {
			continue
		}
		if err := s.store.CacheFollowUpStatus(ctx, item.ID, item.Status, derived); err != nil {
			s.log.DatabaseError("refresh follow-up status", err)
		}
	}
	return nil
}

func (s *Service) withDerivedStatus(ctx context.Context, item domain.FollowUpItem) domain.FollowUpItem {
	derived := item.EffectiveStatus(s.now())
	if derived != item.Status {
		// Best effort cache refresh; the derived value is returned regardless.
		if err := s.store.CacheFollowUpStatus(ctx, item.ID, item.Status, derived); err != nil {
			s.log.DatabaseError("cache follow-up status", err)
		}
		item.Status = derived
	}
	return item
}
