// Package escalation advances unresolved items along their domain's ladder.
// Each pass yields at most one DispatchRequest per item; step indexes only
// move forward, and every item hits the mandatory human ceiling eventually.
package escalation

import (
	"bytes"
	"context"
	"text/template"
	"time"

	"opspulse_backend/internal/events"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/logger"
)

// SettingsProvider yields the effective settings for a domain.
type SettingsProvider interface {
	Effective(ctx context.Context, category domain.Category) (domain.DomainSettings, error)
}

// Service is the escalation ladder engine.
type Service struct {
	store    repository.Store
	settings SettingsProvider
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new escalation service.
func New(store repository.Store, settings SettingsProvider, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		settings: settings,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AdvanceDue walks every active item and returns the dispatch requests due
// now. Step state is not advanced here; the dispatcher advances it only after
// a successful send, so a failed dispatch retries the same step next pass.
func (s *Service) AdvanceDue(ctx context.Context) ([]domain.DispatchRequest, error) {
	now := s.now()
	var requests []domain.DispatchRequest

	settingsByCategory := make(map[domain.Category]domain.DomainSettings)
	effective := func(category domain.Category) (domain.DomainSettings, error) {
		if cached, ok := settingsByCategory[category]; ok {
			return cached, nil
		}
		loaded, err := s.settings.Effective(ctx, category)
		if err != nil {
			return domain.DomainSettings{}, err
		}
		settingsByCategory[category] = loaded
		return loaded, nil
	}

	items, err := s.store.ListFollowUps(ctx, repository.FollowUpFilter{Active: true})
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		settings, err := effective(item.Subject.Domain)
		if err != nil {
			s.log.ScanFailure(string(item.Subject.Domain), err)
			continue
		}

		if req, ok := s.followUpRequest(ctx, item, settings, now); ok {
			requests = append(requests, req)
		}
	}

	signalRequests, err := s.staleSignalRequests(ctx, effective, now)
	if err != nil {
		return nil, err
	}
	return append(requests, signalRequests...), nil
}

func (s *Service) followUpRequest(ctx context.Context, item domain.FollowUpItem, settings domain.DomainSettings, now time.Time) (domain.DispatchRequest, bool) {
	elapsed := domain.ElapsedDays(item.CreatedAt, now)

	ceiling := settings.EscalationAfterDays
	if ceiling < domain.MinEscalationAfterDays {
		ceiling = domain.MinEscalationAfterDays
	}
	if elapsed >= ceiling {
		if !item.NeedsHuman {
			if err := s.store.FlagNeedsHuman(ctx, item.ID); err != nil {
				s.log.DatabaseError("flag needs human", err)
			}
			if s.bus != nil {
				s.bus.Publish(ctx, events.HumanEscalationRequired{
					BaseEvent: events.NewBaseEvent(),
					ItemID:    item.ID,
					Kind:      domain.KindFollowUp,
					Category:  item.Subject.Domain,
					Elapsed:   elapsed,
				})
			}
		}
		return domain.DispatchRequest{
			ItemID:    item.ID,
			Kind:      domain.KindFollowUp,
			StepIndex: len(settings.EscalationSteps),
			Category:  item.Subject.Domain,
			Severity:  item.Severity,
			Action:    domain.ActionManualCall,
			Channel:   domain.ChannelCall,
			Message:   "mandatory human escalation: item unresolved past the ceiling",
			Subject:   item.Subject,
			Mandatory: true,
		}, true
	}

	if !settings.Enabled {
		return domain.DispatchRequest{}, false
	}

	step, ok := NextStep(item, settings.EscalationSteps, elapsed)
	if !ok {
		return domain.DispatchRequest{}, false
	}

	ladder := settings.EscalationSteps[step]
	return domain.DispatchRequest{
		ItemID:    item.ID,
		Kind:      domain.KindFollowUp,
		StepIndex: step,
		Category:  item.Subject.Domain,
		Severity:  item.Severity,
		Action:    ladder.ActionTier,
		Channel:   ChannelFor(ladder.ActionTier, item),
		Message:   RenderMessage(ladder.MessageTemplate, item),
		Subject:   item.Subject,
	}, true
}

// staleSignalRequests flags open signals that sat unresolved past the ceiling.
// Signals have no ladder; the only escalation they get is the mandatory human
// one.
func (s *Service) staleSignalRequests(ctx context.Context, effective func(domain.Category) (domain.DomainSettings, error), now time.Time) ([]domain.DispatchRequest, error) {
	open := domain.SignalOpen
	signals, err := s.store.ListSignals(ctx, repository.SignalFilter{Status: &open})
	if err != nil {
		return nil, err
	}

	var requests []domain.DispatchRequest
	for _, signal := range signals {
		settings, err := effective(signal.Category)
		if err != nil {
			s.log.ScanFailure(string(signal.Category), err)
			continue
		}
		ceiling := settings.EscalationAfterDays
		if ceiling < domain.MinEscalationAfterDays {
			ceiling = domain.MinEscalationAfterDays
		}
		elapsed := domain.ElapsedDays(signal.CreatedAt, now)
		if elapsed < ceiling {
			continue
		}

		if s.bus != nil {
			s.bus.Publish(ctx, events.HumanEscalationRequired{
				BaseEvent: events.NewBaseEvent(),
				ItemID:    signal.ID,
				Kind:      domain.KindSignal,
				Category:  signal.Category,
				Elapsed:   elapsed,
			})
		}
		requests = append(requests, domain.DispatchRequest{
			ItemID:    signal.ID,
			Kind:      domain.KindSignal,
			StepIndex: 0,
			Category:  signal.Category,
			Severity:  signal.Severity,
			Action:    domain.ActionManualCall,
			Channel:   domain.ChannelCall,
			Message:   "mandatory human escalation: signal open past the ceiling",
			Subject:   signal.Subject,
			Mandatory: true,
		})
	}
	return requests, nil
}

// NextStep returns the highest ladder step whose day offset has been reached
// and that lies beyond the item's already-dispatched step. The step index
// never moves backwards.
func NextStep(item domain.FollowUpItem, steps []domain.EscalationStep, elapsedDays int) (int, bool) {
	target := -1
	for i, step := range steps {
		if step.OffsetDays <= elapsedDays {
			target = i
		}
	}
	if target <= item.StepIndex || target < 0 {
		return 0, false
	}
	return target, true
}

// ChannelFor picks the outbound channel for a ladder action, falling back to
// email when the item has no phone on file.
func ChannelFor(action domain.ActionType, item domain.FollowUpItem) domain.ChannelKind {
	switch action {
	case domain.ActionAICall, domain.ActionManualCall:
		if item.ContactPhone == "" && item.ContactEmail != "" {
			return domain.ChannelEmail
		}
		return domain.ChannelCall
	default:
		if item.ContactPhone == "" && item.ContactEmail != "" {
			return domain.ChannelEmail
		}
		return domain.ChannelSMS
	}
}

// messageData is what ladder templates can reference.
type messageData struct {
	Reason  string
	Subject string
	Action  string
	Contact string
}

// RenderMessage expands a ladder message template with the item's fields.
// A malformed template degrades to its raw text rather than blocking dispatch.
func RenderMessage(tmpl string, item domain.FollowUpItem) string {
	parsed, err := template.New("step").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	data := messageData{
		Reason:  string(item.Reason),
		Subject: item.Subject.String(),
		Action:  string(item.RecommendedAction),
		Contact: item.ContactName,
	}
	if err := parsed.Execute(&buf, data); err != nil {
		return tmpl
	}
	return buf.String()
}
