package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/logger"
)

type staticSettings struct {
	byCategory map[domain.Category]domain.DomainSettings
}

func (s *staticSettings) Effective(_ context.Context, category domain.Category) (domain.DomainSettings, error) {
	return s.byCategory[category], nil
}

func financeLadder() domain.DomainSettings {
	return domain.DomainSettings{
		Category:          domain.CategoryFinance,
		Enabled:           true,
		SeverityThreshold: domain.SeverityMedium,
		AutoSendComms:     true,
		EscalationSteps: []domain.EscalationStep{
			{OffsetDays: 0, MessageTemplate: "friendly reminder for {{.Subject}}", ActionTier: domain.ActionAIText},
			{OffsetDays: 2, MessageTemplate: "second reminder", ActionTier: domain.ActionAIText},
			{OffsetDays: 5, MessageTemplate: "final automated notice", ActionTier: domain.ActionAICall},
			{OffsetDays: 7, MessageTemplate: "personal contact needed", ActionTier: domain.ActionManualCall},
		},
		EscalationAfterDays: 15,
	}
}

func newFixture(t *testing.T, now time.Time, settings domain.DomainSettings) (*Service, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	svc := New(store, &staticSettings{byCategory: map[domain.Category]domain.DomainSettings{
		settings.Category: settings,
	}}, nil, logger.New("test"))
	svc.SetClock(func() time.Time { return now })
	return svc, store
}

func insertItem(t *testing.T, store *repository.MemoryStore, subject domain.SubjectRef, dueAt time.Time) domain.FollowUpItem {
	t.Helper()
	item, err := store.InsertFollowUp(context.Background(), domain.FollowUpItem{
		ID:                uuid.New(),
		Reason:            domain.ReasonOverdueInvoice,
		RecommendedAction: domain.ActionAIText,
		Severity:          domain.SeverityHigh,
		Priority:          2,
		DueAt:             dueAt,
		Status:            domain.FollowUpOverdue,
		Subject:           subject,
		ContactName:       "Acme",
		ContactPhone:      "+14155550100",
		StepIndex:         -1,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return item
}

func TestNextStepSelection(t *testing.T) {
	steps := financeLadder().EscalationSteps

	cases := []struct {
		name      string
		stepIndex int
		elapsed   int
		want      int
		ok        bool
	}{
		{"fresh item day zero", -1, 0, 0, true},
		{"fresh item day six skips to step two", -1, 6, 2, true},
		{"already at reached step", 1, 3, 0, false},
		{"advance one rung", 1, 5, 2, true},
		{"sixteen days reaches the top rung", 2, 16, 3, true},
		{"never decreases", 3, 16, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := domain.FollowUpItem{StepIndex: tc.stepIndex}
			got, ok := NextStep(item, steps, tc.elapsed)
			if ok != tc.ok || (ok && got != tc.want) {
				t.Fatalf("NextStep = (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestAdvanceDueProducesOneRequestPerItem(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, store := newFixture(t, now, financeLadder())
	ctx := context.Background()

	// Created six days ago: steps 0, 1, 2 are all reached, only the
	// highest (final automated notice) is dispatched.
	created := now.Add(-6 * 24 * time.Hour)
	store.SetClock(func() time.Time { return created })
	item := insertItem(t, store, domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-9"}, created)
	store.SetClock(func() time.Time { return now })

	requests, err := svc.AdvanceDue(ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(requests))
	}
	req := requests[0]
	if req.ItemID != item.ID || req.StepIndex != 2 {
		t.Fatalf("request = item %s step %d", req.ItemID, req.StepIndex)
	}
	if req.Action != domain.ActionAICall || req.Channel != domain.ChannelCall {
		t.Fatalf("action %s channel %s", req.Action, req.Channel)
	}
	if req.Mandatory {
		t.Fatal("request should not be mandatory below the ceiling")
	}
}

func TestAdvanceDueRendersTemplate(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, store := newFixture(t, now, financeLadder())

	insertItem(t, store, domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-3"}, now)

	requests, err := svc.AdvanceDue(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("got %d requests", len(requests))
	}
	want := "friendly reminder for finance/inv-3"
	if requests[0].Message != want {
		t.Fatalf("message = %q, want %q", requests[0].Message, want)
	}
}

func TestMandatoryHumanCeiling(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	settings := financeLadder()
	settings.EscalationAfterDays = 7
	svc, store := newFixture(t, now, settings)
	ctx := context.Background()

	created := now.Add(-16 * 24 * time.Hour)
	store.SetClock(func() time.Time { return created })
	item := insertItem(t, store, domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-16"}, created)
	store.SetClock(func() time.Time { return now })

	requests, err := svc.AdvanceDue(ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(requests))
	}
	if !requests[0].Mandatory {
		t.Fatal("sixteen-day-old item must escalate to a human")
	}

	flagged, err := store.GetFollowUp(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !flagged.NeedsHuman {
		t.Fatal("needs_human flag not set")
	}
}

func TestMandatoryCeilingIgnoresDisabledDomain(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	settings := financeLadder()
	settings.Enabled = false
	settings.EscalationAfterDays = 7
	svc, store := newFixture(t, now, settings)

	created := now.Add(-10 * 24 * time.Hour)
	store.SetClock(func() time.Time { return created })
	insertItem(t, store, domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-off"}, created)
	store.SetClock(func() time.Time { return now })

	requests, err := svc.AdvanceDue(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 1 || !requests[0].Mandatory {
		t.Fatal("the human ceiling applies even when the domain is disabled")
	}
}

func TestDisabledDomainBelowCeilingStaysQuiet(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	settings := financeLadder()
	settings.Enabled = false
	svc, store := newFixture(t, now, settings)

	insertItem(t, store, domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-quiet"}, now)

	requests, err := svc.AdvanceDue(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("disabled domain produced %d requests", len(requests))
	}
}

func TestStaleOpenSignalEscalatesToHuman(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	settings := financeLadder()
	settings.EscalationAfterDays = 7
	svc, store := newFixture(t, now, settings)
	ctx := context.Background()

	created := now.Add(-9 * 24 * time.Hour)
	store.SetClock(func() time.Time { return created })
	signal, err := store.InsertSignal(ctx, domain.Signal{
		ID:          uuid.New(),
		Category:    domain.CategoryFinance,
		Severity:    domain.SeverityHigh,
		TriggerType: "overdue_invoice",
		Subject:     domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-stale"},
		Status:      domain.SignalOpen,
	})
	if err != nil {
		t.Fatalf("insert signal: %v", err)
	}
	store.SetClock(func() time.Time { return now })

	requests, err := svc.AdvanceDue(ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(requests))
	}
	if requests[0].Kind != domain.KindSignal || requests[0].ItemID != signal.ID || !requests[0].Mandatory {
		t.Fatalf("unexpected request: %+v", requests[0])
	}
}
