// Package service implements the action dispatcher: the gate between a
// DispatchRequest and the outside world. Gates run in a fixed order
// (enabled, severity threshold, autopilot flag); whatever fails a gate goes
// to the human approval queue instead of being silently dropped.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/channels"
	dispatchrepo "opspulse_backend/internal/dispatch/repository"
	"opspulse_backend/internal/escalation"
	"opspulse_backend/internal/events"
	"opspulse_backend/internal/signals/domain"
	signalsrepo "opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/apperr"
	"opspulse_backend/platform/config"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/phone"
)

// SettingsProvider yields the effective settings for a domain.
type SettingsProvider interface {
	Effective(ctx context.Context, category domain.Category) (domain.DomainSettings, error)
}

// Service is the action dispatcher.
type Service struct {
	store    dispatchrepo.Store
	items    signalsrepo.Store
	settings SettingsProvider
	registry *channels.Registry
	bus      events.Bus
	log      *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// New creates a new dispatch service.
func New(store dispatchrepo.Store, items signalsrepo.Store, settings SettingsProvider, registry *channels.Registry, bus events.Bus, log *logger.Logger, cfg config.DispatchConfig) *Service {
	return &Service{
		store:    store,
		items:    items,
		settings: settings,
		registry: registry,
		bus:      bus,
		log:      log,
		timeout:  cfg.GetDispatchTimeout(),
		now:      time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Dispatch executes one request end to end: claim, gates, channel call,
// step advance. The returned Outcome classifies what happened; an error is
// returned only for infrastructure failures, never for gate decisions.
func (s *Service) Dispatch(ctx context.Context, req domain.DispatchRequest) (domain.Outcome, error) {
	if terminal, err := s.itemClosed(ctx, req); err != nil {
		return domain.Outcome{}, err
	} else if terminal {
		return s.outcome(domain.OutcomeDiscarded, "item already closed"), nil
	}

	rec, err := s.store.Claim(ctx, req)
	if err != nil {
		if errors.Is(err, dispatchrepo.ErrAlreadyClaimed) {
			return s.outcome(domain.OutcomeDuplicateSkip, "step already dispatched"), nil
		}
		return domain.Outcome{}, err
	}

	if req.Mandatory {
		return s.queueApproval(ctx, rec, req, "mandatory human escalation past ceiling")
	}

	settings, err := s.settings.Effective(ctx, req.Category)
	if err != nil {
		s.finish(ctx, rec.ID, dispatchrepo.StatusFailed, err.Error())
		return domain.Outcome{}, err
	}

	// Gate order: enabled, severity threshold, autopilot flag.
	if !settings.Enabled {
		s.finish(ctx, rec.ID, dispatchrepo.StatusSkipped, "domain disabled")
		return s.outcome(domain.OutcomeSkippedOff, "domain disabled"), nil
	}
	if !req.Severity.AtLeast(settings.SeverityThreshold) {
		return s.queueApproval(ctx, rec, req, "below autopilot severity threshold")
	}
	if !req.Action.Automated() {
		return s.queueApproval(ctx, rec, req, "manual action tier requires a human")
	}
	if reason, ok := autopilotBlocked(req.Channel, settings); ok {
		return s.queueApproval(ctx, rec, req, reason)
	}

	return s.execute(ctx, rec, req)
}

// autopilotBlocked checks the per-channel autopilot sub-flag.
func autopilotBlocked(channel domain.ChannelKind, settings domain.DomainSettings) (string, bool) {
	switch channel {
	case domain.ChannelCall, domain.ChannelSMS, domain.ChannelEmail:
		if !settings.AutoSendComms {
			return "auto_send_communications disabled", true
		}
	case domain.ChannelRoute:
		if !settings.AutoAssignRoutes {
			return "auto_assign_routes disabled", true
		}
	case domain.ChannelLedger:
		if !settings.AutoFinancial {
			return "auto_financial_corrections disabled", true
		}
	}
	return "", false
}

// execute performs the channel call with no lock held, then commits the
// outcome. A cancellation that raced the send wins: the outcome is discarded
// and the step never advances.
func (s *Service) execute(ctx context.Context, rec dispatchrepo.Record, req domain.DispatchRequest) (domain.Outcome, error) {
	if req.Kind != domain.KindFollowUp {
		// Signals carry no ladder; anything non-mandatory lands with a human.
		return s.queueApproval(ctx, rec, req, "signal dispatch requires a human")
	}

	item, err := s.items.GetFollowUp(ctx, req.ItemID)
	if err != nil {
		s.finish(ctx, rec.ID, dispatchrepo.StatusFailed, err.Error())
		return domain.Outcome{}, err
	}

	out, buildErr := s.outbound(req, item)
	if buildErr != nil {
		return s.fail(ctx, rec, req, buildErr), nil
	}

	ch, err := s.registry.Get(req.Channel)
	if err != nil {
		return s.fail(ctx, rec, req, err), nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = ch.Send(sendCtx, out)
	cancel()
	if err != nil {
		return s.fail(ctx, rec, req, err), nil
	}

	// Re-read after the send: a human may have completed or cancelled the
	// item while the channel call was in flight.
	fresh, err := s.items.GetFollowUp(ctx, req.ItemID)
	if err != nil {
		s.finish(ctx, rec.ID, dispatchrepo.StatusFailed, err.Error())
		return domain.Outcome{}, err
	}
	if fresh.Status.Terminal() {
		s.finish(ctx, rec.ID, dispatchrepo.StatusDiscarded, "item closed during dispatch")
		return s.outcome(domain.OutcomeDiscarded, "item closed during dispatch"), nil
	}

	s.advanceStep(ctx, fresh, req.StepIndex)
	s.finish(ctx, rec.ID, dispatchrepo.StatusSent, "")

	if s.bus != nil {
		s.bus.Publish(ctx, events.EscalationAdvanced{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    req.ItemID,
			StepIndex: req.StepIndex,
			Channel:   req.Channel,
		})
	}
	s.log.DispatchOutcome(req.ItemID.String(), req.StepIndex, string(req.Channel), true, "")
	return s.outcome(domain.OutcomeSent, ""), nil
}

// advanceStep moves the item's step counter forward. A version conflict from
// a concurrent write is retried once against the fresh row; the repository's
// monotonic guard makes double-advancing impossible.
func (s *Service) advanceStep(ctx context.Context, item domain.FollowUpItem, stepIndex int) {
	if _, err := s.items.AdvanceFollowUpStep(ctx, item.ID, stepIndex, s.now(), item.Version); err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			s.log.DatabaseError("advance follow-up step", err)
			return
		}
		fresh, readErr := s.items.GetFollowUp(ctx, item.ID)
		if readErr != nil {
			s.log.DatabaseError("advance follow-up step", readErr)
			return
		}
		if fresh.StepIndex >= stepIndex {
			return
		}
		if _, err := s.items.AdvanceFollowUpStep(ctx, item.ID, stepIndex, s.now(), fresh.Version); err != nil {
			s.log.DatabaseError("advance follow-up step", err)
		}
	}
}

func (s *Service) outbound(req domain.DispatchRequest, item domain.FollowUpItem) (channels.Outbound, error) {
	out := channels.Outbound{
		Name:    item.ContactName,
		Body:    req.Message,
		Subject: req.Subject,
	}
	switch req.Channel {
	case domain.ChannelEmail:
		if item.ContactEmail == "" {
			return channels.Outbound{}, errors.New("no email address on file")
		}
		out.To = item.ContactEmail
	case domain.ChannelCall, domain.ChannelSMS:
		normalized := phone.NormalizeE164(item.ContactPhone)
		if normalized == "" {
			return channels.Outbound{}, errors.New("no phone number on file")
		}
		out.To = normalized
	default:
		out.To = req.Subject.EntityID
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, rec dispatchrepo.Record, req domain.DispatchRequest, cause error) domain.Outcome {
	s.finish(ctx, rec.ID, dispatchrepo.StatusFailed, cause.Error())
	if req.Kind == domain.KindFollowUp {
		if err := s.items.IncrementDispatchFailures(ctx, req.ItemID); err != nil {
			s.log.DatabaseError("increment dispatch failures", err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.DispatchFailed{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    req.ItemID,
			StepIndex: req.StepIndex,
			Channel:   req.Channel,
			Reason:    cause.Error(),
		})
	}
	s.log.DispatchOutcome(req.ItemID.String(), req.StepIndex, string(req.Channel), false, cause.Error())
	return s.outcome(domain.OutcomeFailed, cause.Error())
}

func (s *Service) queueApproval(ctx context.Context, rec dispatchrepo.Record, req domain.DispatchRequest, reason string) (domain.Outcome, error) {
	if _, err := s.store.EnqueueApproval(ctx, rec.ID, req, reason); err != nil {
		s.finish(ctx, rec.ID, dispatchrepo.StatusFailed, err.Error())
		return domain.Outcome{}, err
	}
	s.finish(ctx, rec.ID, dispatchrepo.StatusQueuedApproval, reason)
	return s.outcome(domain.OutcomeQueuedHuman, reason), nil
}

func (s *Service) itemClosed(ctx context.Context, req domain.DispatchRequest) (bool, error) {
	switch req.Kind {
	case domain.KindFollowUp:
		item, err := s.items.GetFollowUp(ctx, req.ItemID)
		if err != nil {
			return false, err
		}
		return item.Status.Terminal(), nil
	default:
		signal, err := s.items.GetSignal(ctx, req.ItemID)
		if err != nil {
			return false, err
		}
		return signal.Status.Terminal(), nil
	}
}

func (s *Service) finish(ctx context.Context, recordID uuid.UUID, status dispatchrepo.RecordStatus, detail string) {
	if err := s.store.Finish(ctx, recordID, status, detail); err != nil {
		s.log.DatabaseError("finish dispatch record", err)
	}
}

func (s *Service) outcome(status domain.OutcomeStatus, detail string) domain.Outcome {
	return domain.Outcome{Status: status, Detail: detail, At: s.now()}
}

// =============================================================================
// Out-of-band trigger
// =============================================================================

// TriggerNow dispatches the item's next ladder step immediately, bypassing
// ladder timing but not the gates.
func (s *Service) TriggerNow(ctx context.Context, itemID uuid.UUID) (domain.Outcome, error) {
	item, err := s.items.GetFollowUp(ctx, itemID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if item.Status.Terminal() {
		return domain.Outcome{}, apperr.Conflict("item already closed")
	}

	settings, err := s.settings.Effective(ctx, item.Subject.Domain)
	if err != nil {
		return domain.Outcome{}, err
	}
	if len(settings.EscalationSteps) == 0 {
		return domain.Outcome{}, apperr.Validation("domain has no escalation ladder")
	}

	step := item.StepIndex + 1
	if step >= len(settings.EscalationSteps) {
		step = len(settings.EscalationSteps) - 1
	}
	ladder := settings.EscalationSteps[step]

	req := domain.DispatchRequest{
		ItemID:    item.ID,
		Kind:      domain.KindFollowUp,
		StepIndex: step,
		Category:  item.Subject.Domain,
		Severity:  item.Severity,
		Action:    ladder.ActionTier,
		Channel:   escalation.ChannelFor(ladder.ActionTier, item),
		Message:   escalation.RenderMessage(ladder.MessageTemplate, item),
		Subject:   item.Subject,
		OutOfBand: true,
	}
	return s.Dispatch(ctx, req)
}

// =============================================================================
// Approvals
// =============================================================================

// ListApprovals returns approvals in the given state, pending by default.
func (s *Service) ListApprovals(ctx context.Context, status dispatchrepo.ApprovalStatus) ([]dispatchrepo.Approval, error) {
	if status == "" {
		status = dispatchrepo.ApprovalPending
	}
	return s.store.ListApprovals(ctx, status)
}

// ListDispatches returns the audit trail for one item.
func (s *Service) ListDispatches(ctx context.Context, itemID uuid.UUID) ([]dispatchrepo.Record, error) {
	return s.store.ListByItem(ctx, itemID)
}

// Decide resolves a pending approval. Approving executes the dispatch with
// the gates bypassed; rejecting records the decision and leaves the item for
// human handling.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, approved bool, decidedBy uuid.UUID) (dispatchrepo.Approval, domain.Outcome, error) {
	approval, err := s.store.DecideApproval(ctx, id, approved, decidedBy)
	if err != nil {
		return dispatchrepo.Approval{}, domain.Outcome{}, err
	}

	if !approved {
		s.finish(ctx, approval.RecordID, dispatchrepo.StatusRejected, "rejected by operator")
		return approval, s.outcome(domain.OutcomeDiscarded, "rejected by operator"), nil
	}

	if approval.Request.Kind == domain.KindSignal {
		// Approving a signal escalation means an operator takes ownership.
		s.finish(ctx, approval.RecordID, dispatchrepo.StatusSent, "assigned to operator")
		return approval, s.outcome(domain.OutcomeSent, "assigned to operator"), nil
	}

	rec := dispatchrepo.Record{ID: approval.RecordID}
	outcome, err := s.execute(ctx, rec, approval.Request)
	if err != nil {
		return dispatchrepo.Approval{}, domain.Outcome{}, err
	}
	return approval, outcome, nil
}
