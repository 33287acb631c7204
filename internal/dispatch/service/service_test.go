package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"opspulse_backend/internal/channels"
	dispatchrepo "opspulse_backend/internal/dispatch/repository"
	"opspulse_backend/internal/signals/domain"
	signalsrepo "opspulse_backend/internal/signals/repository"
	"opspulse_backend/platform/logger"
)

type staticSettings struct {
	byCategory map[domain.Category]domain.DomainSettings
}

func (s *staticSettings) Effective(_ context.Context, category domain.Category) (domain.DomainSettings, error) {
	return s.byCategory[category], nil
}

type fakeChannel struct {
	kind   domain.ChannelKind
	sends  []channels.Outbound
	err    error
	onSend func()
}

func (f *fakeChannel) Kind() domain.ChannelKind { return f.kind }

func (f *fakeChannel) Send(_ context.Context, out channels.Outbound) error {
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, out)
	return nil
}

type testConfig struct{}

func (testConfig) GetDispatchTimeout() time.Duration { return 5 * time.Second }
func (testConfig) GetChannelRatePerSecond() float64  { return 100 }
func (testConfig) GetChannelBurst() int              { return 100 }

func financeAutopilot() domain.DomainSettings {
	return domain.DomainSettings{
		Category:          domain.CategoryFinance,
		Enabled:           true,
		SeverityThreshold: domain.SeverityMedium,
		AutoSendComms:     true,
		AutoAssignRoutes:  true,
		AutoFinancial:     true,
		EscalationSteps: []domain.EscalationStep{
			{OffsetDays: 0, MessageTemplate: "friendly reminder", ActionTier: domain.ActionAIText},
			{OffsetDays: 3, MessageTemplate: "second notice", ActionTier: domain.ActionAICall},
		},
		EscalationAfterDays: 14,
	}
}

type fixture struct {
	svc      *Service
	dispatch *dispatchrepo.MemoryStore
	items    *signalsrepo.MemoryStore
	sms      *fakeChannel
	call     *fakeChannel
	now      time.Time
}

func newFixture(t *testing.T, settings domain.DomainSettings) *fixture {
	t.Helper()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	dispatch := dispatchrepo.NewMemoryStore()
	dispatch.SetClock(clock)
	items := signalsrepo.NewMemoryStore()
	items.SetClock(clock)

	sms := &fakeChannel{kind: domain.ChannelSMS}
	call := &fakeChannel{kind: domain.ChannelCall}
	registry := channels.NewRegistry(sms, call)

	provider := &staticSettings{byCategory: map[domain.Category]domain.DomainSettings{
		settings.Category: settings,
	}}
	svc := New(dispatch, items, provider, registry, nil, logger.New("test"), testConfig{})
	svc.SetClock(clock)

	return &fixture{svc: svc, dispatch: dispatch, items: items, sms: sms, call: call, now: now}
}

func (f *fixture) insertItem(t *testing.T) domain.FollowUpItem {
	t.Helper()
	item, err := f.items.InsertFollowUp(context.Background(), domain.FollowUpItem{
		ID:                uuid.New(),
		Reason:            domain.ReasonOverdueInvoice,
		RecommendedAction: domain.ActionAIText,
		Severity:          domain.SeverityHigh,
		Priority:          2,
		DueAt:             f.now.AddDate(0, 0, -4),
		Status:            domain.FollowUpOverdue,
		Subject:           domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-9"},
		ContactName:       "Acme Foods",
		ContactPhone:      "+14155550100",
		ContactEmail:      "ap@acme.example",
		StepIndex:         -1,
	})
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return item
}

func request(item domain.FollowUpItem, step int) domain.DispatchRequest {
	return domain.DispatchRequest{
		ItemID:    item.ID,
		Kind:      domain.KindFollowUp,
		StepIndex: step,
		Category:  item.Subject.Domain,
		Severity:  item.Severity,
		Action:    domain.ActionAIText,
		Channel:   domain.ChannelSMS,
		Message:   "friendly reminder",
		Subject:   item.Subject,
	}
}

func TestDispatchSendsAndAdvancesStep(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeSent {
		t.Fatalf("outcome = %s, want sent", outcome.Status)
	}
	if len(f.sms.sends) != 1 {
		t.Fatalf("sms sends = %d, want 1", len(f.sms.sends))
	}
	if f.sms.sends[0].To != "+14155550100" {
		t.Errorf("sent to %q, want normalized contact phone", f.sms.sends[0].To)
	}

	fresh, err := f.items.GetFollowUp(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if fresh.StepIndex != 0 {
		t.Errorf("step index = %d, want 0", fresh.StepIndex)
	}

	records, err := f.dispatch.ListByItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Status != dispatchrepo.StatusSent {
		t.Fatalf("records = %+v, want one sent record", records)
	}
}

func TestDispatchGating(t *testing.T) {
	cases := []struct {
		name   string
		adjust func(*domain.DomainSettings, *domain.DispatchRequest)
		want   domain.OutcomeStatus
	}{
		{
			name:   "domain disabled",
			adjust: func(s *domain.DomainSettings, _ *domain.DispatchRequest) { s.Enabled = false },
			want:   domain.OutcomeSkippedOff,
		},
		{
			name: "below severity threshold",
			adjust: func(s *domain.DomainSettings, r *domain.DispatchRequest) {
				s.SeverityThreshold = domain.SeverityCritical
			},
			want: domain.OutcomeQueuedHuman,
		},
		{
			name: "manual action tier",
			adjust: func(_ *domain.DomainSettings, r *domain.DispatchRequest) {
				r.Action = domain.ActionManualCall
				r.Channel = domain.ChannelCall
			},
			want: domain.OutcomeQueuedHuman,
		},
		{
			name: "comms autopilot off",
			adjust: func(s *domain.DomainSettings, _ *domain.DispatchRequest) {
				s.AutoSendComms = false
			},
			want: domain.OutcomeQueuedHuman,
		},
		{
			name: "mandatory bypasses every gate straight to a human",
			adjust: func(s *domain.DomainSettings, r *domain.DispatchRequest) {
				s.Enabled = false
				r.Mandatory = true
			},
			want: domain.OutcomeQueuedHuman,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := financeAutopilot()
			f := newFixture(t, settings)
			item := f.insertItem(t)
			req := request(item, 0)
			tc.adjust(&settings, &req)
			f.svc.settings = &staticSettings{byCategory: map[domain.Category]domain.DomainSettings{
				settings.Category: settings,
			}}

			outcome, err := f.svc.Dispatch(context.Background(), req)
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if outcome.Status != tc.want {
				t.Fatalf("outcome = %s, want %s", outcome.Status, tc.want)
			}
			if len(f.sms.sends)+len(f.call.sends) != 0 {
				t.Errorf("channel was invoked despite gate")
			}

			if tc.want == domain.OutcomeQueuedHuman {
				pending, err := f.dispatch.ListApprovals(context.Background(), dispatchrepo.ApprovalPending)
				if err != nil {
					t.Fatalf("list approvals: %v", err)
				}
				if len(pending) != 1 {
					t.Fatalf("pending approvals = %d, want 1", len(pending))
				}
			}
		})
	}
}

func TestDispatchDuplicateStepSkipped(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)
	req := request(item, 0)

	if _, err := f.svc.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	outcome, err := f.svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeDuplicateSkip {
		t.Fatalf("outcome = %s, want duplicate_skip", outcome.Status)
	}
	if len(f.sms.sends) != 1 {
		t.Fatalf("sms sends = %d, want 1", len(f.sms.sends))
	}
}

func TestDispatchFailureLeavesStepForRetry(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)
	f.sms.err = errors.New("gateway unavailable")

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome.Status)
	}

	fresh, _ := f.items.GetFollowUp(context.Background(), item.ID)
	if fresh.StepIndex != -1 {
		t.Errorf("step index = %d, want unchanged -1", fresh.StepIndex)
	}
	if fresh.DispatchFailures != 1 {
		t.Errorf("dispatch failures = %d, want 1", fresh.DispatchFailures)
	}

	// A failed record releases the claim, so the next pass retries the step.
	f.sms.err = nil
	outcome, err = f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("retry dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeSent {
		t.Fatalf("retry outcome = %s, want sent", outcome.Status)
	}
}

func TestDispatchDiscardsWhenItemClosedMidFlight(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)

	f.sms.onSend = func() {
		completedAt := f.now
		if _, err := f.items.UpdateFollowUpStatus(context.Background(), item.ID, domain.FollowUpCancelled, &completedAt, item.Version); err != nil {
			t.Fatalf("cancel mid-flight: %v", err)
		}
	}

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeDiscarded {
		t.Fatalf("outcome = %s, want discarded", outcome.Status)
	}

	fresh, _ := f.items.GetFollowUp(context.Background(), item.ID)
	if fresh.StepIndex != -1 {
		t.Errorf("step index = %d, want unchanged -1", fresh.StepIndex)
	}
}

func TestDispatchClosedItemNeverClaims(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)
	completedAt := f.now
	if _, err := f.items.UpdateFollowUpStatus(context.Background(), item.ID, domain.FollowUpCompleted, &completedAt, item.Version); err != nil {
		t.Fatalf("complete: %v", err)
	}

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeDiscarded {
		t.Fatalf("outcome = %s, want discarded", outcome.Status)
	}
	records, _ := f.dispatch.ListByItem(context.Background(), item.ID)
	if len(records) != 0 {
		t.Fatalf("records = %d, want none for a closed item", len(records))
	}
}

func TestDispatchMissingPhoneFails(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item, err := f.items.InsertFollowUp(context.Background(), domain.FollowUpItem{
		ID:                uuid.New(),
		Reason:            domain.ReasonOverdueInvoice,
		RecommendedAction: domain.ActionAIText,
		Severity:          domain.SeverityHigh,
		Priority:          2,
		DueAt:             f.now,
		Status:            domain.FollowUpPending,
		Subject:           domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: "inv-10"},
		ContactName:       "No Phone Ltd",
		StepIndex:         -1,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome.Status)
	}
	if len(f.sms.sends) != 0 {
		t.Errorf("channel invoked without a destination")
	}
}

func TestTriggerNowDispatchesNextStep(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)

	outcome, err := f.svc.TriggerNow(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("trigger now: %v", err)
	}
	if outcome.Status != domain.OutcomeSent {
		t.Fatalf("outcome = %s, want sent", outcome.Status)
	}

	records, _ := f.dispatch.ListByItem(context.Background(), item.ID)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if !records[0].OutOfBand {
		t.Errorf("record not flagged out of band")
	}
	if records[0].StepIndex != 0 {
		t.Errorf("step = %d, want first ladder step", records[0].StepIndex)
	}

	fresh, _ := f.items.GetFollowUp(context.Background(), item.ID)
	if fresh.StepIndex != 0 {
		t.Errorf("item step = %d, want 0", fresh.StepIndex)
	}
}

func TestTriggerNowClosedItemConflicts(t *testing.T) {
	f := newFixture(t, financeAutopilot())
	item := f.insertItem(t)
	completedAt := f.now
	if _, err := f.items.UpdateFollowUpStatus(context.Background(), item.ID, domain.FollowUpCompleted, &completedAt, item.Version); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := f.svc.TriggerNow(context.Background(), item.ID); err == nil {
		t.Fatal("expected conflict for closed item")
	}
}

func TestApproveExecutesQueuedDispatch(t *testing.T) {
	settings := financeAutopilot()
	settings.AutoSendComms = false
	f := newFixture(t, settings)
	item := f.insertItem(t)

	outcome, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != domain.OutcomeQueuedHuman {
		t.Fatalf("outcome = %s, want queued_approval", outcome.Status)
	}

	pending, err := f.svc.ListApprovals(context.Background(), "")
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	operator := uuid.New()
	approval, outcome, err := f.svc.Decide(context.Background(), pending[0].ID, true, operator)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if approval.Status != dispatchrepo.ApprovalApproved {
		t.Errorf("approval status = %s, want approved", approval.Status)
	}
	if outcome.Status != domain.OutcomeSent {
		t.Fatalf("outcome = %s, want sent after approval", outcome.Status)
	}
	if len(f.sms.sends) != 1 {
		t.Fatalf("sms sends = %d, want 1", len(f.sms.sends))
	}

	fresh, _ := f.items.GetFollowUp(context.Background(), item.ID)
	if fresh.StepIndex != 0 {
		t.Errorf("item step = %d, want advanced to 0", fresh.StepIndex)
	}
}

func TestRejectKeepsStepClaimed(t *testing.T) {
	settings := financeAutopilot()
	settings.AutoSendComms = false
	f := newFixture(t, settings)
	item := f.insertItem(t)

	if _, err := f.svc.Dispatch(context.Background(), request(item, 0)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pending, _ := f.svc.ListApprovals(context.Background(), dispatchrepo.ApprovalPending)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	_, outcome, err := f.svc.Decide(context.Background(), pending[0].ID, false, uuid.New())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if outcome.Status != domain.OutcomeDiscarded {
		t.Fatalf("outcome = %s, want discarded", outcome.Status)
	}

	// A rejected step stays claimed: the ladder must not re-offer it.
	again, err := f.svc.Dispatch(context.Background(), request(item, 0))
	if err != nil {
		t.Fatalf("re-dispatch: %v", err)
	}
	if again.Status != domain.OutcomeDuplicateSkip {
		t.Fatalf("outcome = %s, want duplicate_skip", again.Status)
	}
	if len(f.sms.sends) != 0 {
		t.Errorf("channel invoked after rejection")
	}
}

func TestDecideTwiceConflicts(t *testing.T) {
	settings := financeAutopilot()
	settings.AutoSendComms = false
	f := newFixture(t, settings)
	item := f.insertItem(t)

	if _, err := f.svc.Dispatch(context.Background(), request(item, 0)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pending, _ := f.svc.ListApprovals(context.Background(), dispatchrepo.ApprovalPending)
	if _, _, err := f.svc.Decide(context.Background(), pending[0].ID, false, uuid.New()); err != nil {
		t.Fatalf("first decide: %v", err)
	}
	if _, _, err := f.svc.Decide(context.Background(), pending[0].ID, true, uuid.New()); err == nil {
		t.Fatal("expected conflict on second decision")
	}
}
