package service_test

import (
	"context"
	"testing"

	"opspulse_backend/internal/settings"
	"opspulse_backend/internal/settings/repository"
	"opspulse_backend/internal/settings/service"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
	"opspulse_backend/platform/logger"
)

func newTestService(t *testing.T) (*service.Service, *repository.MemoryStore) {
	t.Helper()
	defaults, err := settings.DefaultSettings()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	store := repository.NewMemoryStore()
	return service.New(store, defaults, logger.New("test")), store
}

func validSettings(category domain.Category) domain.DomainSettings {
	return domain.DomainSettings{
		Category:          category,
		Enabled:           true,
		Thresholds:        map[string]float64{"overdue_days": 10},
		SeverityThreshold: domain.SeverityMedium,
		AutoSendComms:     true,
		EscalationSteps: []domain.EscalationStep{
			{OffsetDays: 0, MessageTemplate: "first nudge", ActionTier: domain.ActionAIText},
			{OffsetDays: 2, MessageTemplate: "second nudge", ActionTier: domain.ActionAICall},
		},
		EscalationAfterDays: 5,
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Get(context.Background(), domain.CategoryFinance)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != domain.CategoryFinance {
		t.Fatalf("category = %s", got.Category)
	}
	if !got.Enabled {
		t.Fatal("finance defaults should be enabled")
	}
	if len(got.EscalationSteps) != 4 {
		t.Fatalf("finance default ladder has %d steps, want 4", len(got.EscalationSteps))
	}
}

func TestFinanceDefaultThresholdKeys(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Get(context.Background(), domain.CategoryFinance)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// These keys are the ones the finance scan rules read; drift values are
	// stored in cents like every other money amount.
	if v := got.Thresholds["overdue_days"]; v != 7 {
		t.Fatalf("overdue_days = %v, want 7", v)
	}
	if v := got.Thresholds["ledger_drift_cents"]; v != 5000 {
		t.Fatalf("ledger_drift_cents = %v, want 5000", v)
	}
}

func TestGetUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), domain.Category("astrology"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Update(ctx, validSettings(domain.CategoryCRM), 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d, want 1", saved.Version)
	}

	saved.Enabled = false
	again, err := svc.Update(ctx, saved, saved.Version)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if again.Version != 2 || again.Enabled {
		t.Fatalf("got version %d enabled %v", again.Version, again.Enabled)
	}

	// Stale version is rejected.
	if _, err := svc.Update(ctx, saved, 1); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("stale update: got %v, want conflict", err)
	}
}

func TestUpdateRejectsFloorViolation(t *testing.T) {
	svc, _ := newTestService(t)

	bad := validSettings(domain.CategoryFinance)
	bad.EscalationAfterDays = 2
	if _, err := svc.Update(context.Background(), bad, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestValidateLadder(t *testing.T) {
	base := validSettings(domain.CategoryInventory)

	cases := []struct {
		name   string
		mutate func(*domain.DomainSettings)
		ok     bool
	}{
		{"valid", func(*domain.DomainSettings) {}, true},
		{"empty ladder", func(s *domain.DomainSettings) { s.EscalationSteps = nil }, false},
		{"non-increasing offsets", func(s *domain.DomainSettings) {
			s.EscalationSteps[1].OffsetDays = 0
		}, false},
		{"negative offset", func(s *domain.DomainSettings) {
			s.EscalationSteps[0].OffsetDays = -1
		}, false},
		{"unknown tier", func(s *domain.DomainSettings) {
			s.EscalationSteps[0].ActionTier = "carrier_pigeon"
		}, false},
		{"blank template", func(s *domain.DomainSettings) {
			s.EscalationSteps[0].MessageTemplate = ""
		}, false},
		{"negative threshold", func(s *domain.DomainSettings) {
			s.Thresholds["low_stock_units"] = -1
		}, false},
		{"bad severity", func(s *domain.DomainSettings) {
			s.SeverityThreshold = "catastrophic"
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			s.Thresholds = map[string]float64{"low_stock_units": 5}
			s.EscalationSteps = append([]domain.EscalationStep(nil), base.EscalationSteps...)
			tc.mutate(&s)
			err := service.Validate(s)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEffectiveDisablesInvalidStored(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Bypass service validation to simulate a row corrupted out of band.
	bad := validSettings(domain.CategoryOperations)
	bad.EscalationSteps = nil
	if _, err := store.Save(ctx, bad, 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	effective, err := svc.Effective(ctx, domain.CategoryOperations)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if effective.Enabled {
		t.Fatal("invalid stored settings must render the domain disabled")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	first, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != len(domain.AllCategories()) {
		t.Fatalf("seeded %d rows, want %d", len(first), len(domain.AllCategories()))
	}

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	second, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := range second {
		if second[i].Version != first[i].Version {
			t.Fatalf("seed bumped version for %s", second[i].Category)
		}
	}
}
