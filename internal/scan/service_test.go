package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/settings"
	settingsrepo "opspulse_backend/internal/settings/repository"
	settingssvc "opspulse_backend/internal/settings/service"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/internal/signals/repository"
	signalssvc "opspulse_backend/internal/signals/service"
	"opspulse_backend/platform/logger"
)

type fakeSource struct {
	category domain.Category
	set      facts.Set
	err      error
}

func (f *fakeSource) Category() domain.Category { return f.category }

func (f *fakeSource) Fetch(context.Context) (facts.Set, error) {
	if f.err != nil {
		return facts.Set{}, f.err
	}
	return f.set, nil
}

func newScanFixture(t *testing.T, now time.Time, sources []facts.Source) (*Service, *signalssvc.Service, *settingssvc.Service) {
	t.Helper()

	defaults, err := settings.DefaultSettings()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	log := logger.New("test")
	setSvc := settingssvc.New(settingsrepo.NewMemoryStore(), defaults, log)

	store := repository.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	lifecycle := signalssvc.New(store, nil, log)
	lifecycle.SetClock(func() time.Time { return now })

	svc := New(sources, setSvc, lifecycle, nil, log)
	svc.SetClock(func() time.Time { return now })
	return svc, lifecycle, setSvc
}

func overdueInvoiceFacts(now time.Time) facts.Set {
	return facts.Set{
		Invoices: []facts.Invoice{{
			ID:           "inv-7",
			CustomerName: "Acme Bakery",
			Phone:        "+14155550100",
			AmountCents:  125000,
			DueAt:        now.Add(-16 * 24 * time.Hour),
		}},
	}
}

func TestRunCreatesAndIsIdempotent(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	source := &fakeSource{category: domain.CategoryFinance, set: overdueInvoiceFacts(now)}
	svc, lifecycle, _ := newScanFixture(t, now, []facts.Source{source})
	ctx := context.Background()

	first, err := svc.Run(ctx, []domain.Category{domain.CategoryFinance})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.NewSignals != 1 || first.NewFollowUps != 1 {
		t.Fatalf("first run created %d signals, %d follow-ups; want 1 and 1",
			first.NewSignals, first.NewFollowUps)
	}
	if len(first.FailedDomains) != 0 {
		t.Fatalf("unexpected failures: %v", first.FailedDomains)
	}

	// 16 days over a 7-day threshold breaches the critical ratio.
	signals, err := lifecycle.ListSignals(ctx, repository.SignalFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if signals[0].Severity != domain.SeverityCritical {
		t.Fatalf("severity = %s, want critical", signals[0].Severity)
	}

	second, err := svc.Run(ctx, []domain.Category{domain.CategoryFinance})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.NewSignals != 0 || second.NewFollowUps != 0 {
		t.Fatalf("re-scan with unchanged facts created %d signals, %d follow-ups; want 0 and 0",
			second.NewSignals, second.NewFollowUps)
	}
}

func TestRunIsolatesDomainFailures(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	healthy := &fakeSource{category: domain.CategoryFinance, set: overdueInvoiceFacts(now)}
	broken := &fakeSource{category: domain.CategoryInventory, err: errors.New("warehouse api down")}
	svc, _, _ := newScanFixture(t, now, []facts.Source{healthy, broken})

	report, err := svc.Run(context.Background(), []domain.Category{
		domain.CategoryFinance, domain.CategoryInventory,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.NewSignals != 1 {
		t.Fatalf("healthy domain was blocked: %d new signals", report.NewSignals)
	}
	if _, failed := report.FailedDomains[domain.CategoryInventory]; !failed {
		t.Fatalf("inventory failure not reported: %v", report.FailedDomains)
	}
	if len(report.ScannedDomains) != 1 || report.ScannedDomains[0] != domain.CategoryFinance {
		t.Fatalf("scanned = %v", report.ScannedDomains)
	}
}

func TestRunSkipsDisabledDomains(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	source := &fakeSource{category: domain.CategoryFinance, set: overdueInvoiceFacts(now)}
	svc, _, setSvc := newScanFixture(t, now, []facts.Source{source})
	ctx := context.Background()

	current, err := setSvc.Get(ctx, domain.CategoryFinance)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	current.Enabled = false
	if _, err := setSvc.Update(ctx, current, 0); err != nil {
		t.Fatalf("disable finance: %v", err)
	}

	report, err := svc.Run(ctx, []domain.Category{domain.CategoryFinance})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.NewSignals != 0 || report.NewFollowUps != 0 {
		t.Fatal("disabled domain still produced items")
	}
	if len(report.SkippedDomains) != 1 {
		t.Fatalf("skipped = %v", report.SkippedDomains)
	}
}

func TestRunReportsMissingSource(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newScanFixture(t, now, nil)

	report, err := svc.Run(context.Background(), []domain.Category{domain.CategoryCRM})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, failed := report.FailedDomains[domain.CategoryCRM]; !failed {
		t.Fatalf("missing source not reported: %v", report.FailedDomains)
	}
}
