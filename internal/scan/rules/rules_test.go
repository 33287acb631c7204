package rules

import (
	"testing"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func financeSettings(overdueDays float64) domain.DomainSettings {
	return domain.DomainSettings{
		Category:          domain.CategoryFinance,
		Enabled:           true,
		Thresholds:        map[string]float64{"overdue_days": overdueDays},
		SeverityThreshold: domain.SeverityMedium,
	}
}

func TestOverdueInvoiceSeverityScaling(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	settings := financeSettings(7)

	cases := []struct {
		daysLate int
		want     domain.Severity
		hit      bool
	}{
		{3, "", false},
		{6, "", false},
		{7, domain.SeverityMedium, true},
		{11, domain.SeverityHigh, true},
		{14, domain.SeverityCritical, true},
		{30, domain.SeverityCritical, true},
	}

	for _, tc := range cases {
		set := facts.Set{Invoices: []facts.Invoice{{
			ID:           "inv-1",
			CustomerName: "Acme",
			DueAt:        now.Add(-time.Duration(tc.daysLate) * 24 * time.Hour),
		}}}

		signals, followUps := evaluateOverdueInvoices(set, settings, now)
		if !tc.hit {
			if len(signals) != 0 || len(followUps) != 0 {
				t.Fatalf("%d days late: unexpected candidates", tc.daysLate)
			}
			continue
		}
		if len(signals) != 1 || len(followUps) != 1 {
			t.Fatalf("%d days late: got %d signals, %d follow-ups", tc.daysLate, len(signals), len(followUps))
		}
		if signals[0].Severity != tc.want {
			t.Fatalf("%d days late: severity = %s, want %s", tc.daysLate, signals[0].Severity, tc.want)
		}
		if followUps[0].Priority != domain.PriorityForSeverity(tc.want) {
			t.Fatalf("%d days late: priority = %d", tc.daysLate, followUps[0].Priority)
		}
	}
}

func TestPaidInvoicesIgnored(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-24 * time.Hour)
	set := facts.Set{Invoices: []facts.Invoice{{
		ID:     "inv-2",
		DueAt:  now.Add(-30 * 24 * time.Hour),
		PaidAt: &paidAt,
	}}}

	signals, followUps := evaluateOverdueInvoices(set, financeSettings(7), now)
	if len(signals) != 0 || len(followUps) != 0 {
		t.Fatal("paid invoice produced candidates")
	}
}

func TestLedgerDriftHonorsConfiguredThreshold(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	set := facts.Set{LedgerGaps: []facts.LedgerGap{{
		AccountID:   "acct-1",
		DriftCents:  6000,
		Description: "cash drawer vs recorded sales",
	}}}

	cases := []struct {
		name       string
		thresholds map[string]float64
		want       int
	}{
		{"configured below drift", map[string]float64{"ledger_drift_cents": 5000}, 1},
		{"configured above drift", map[string]float64{"ledger_drift_cents": 999999}, 0},
		{"unset falls back to default", nil, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := domain.DomainSettings{
				Category:   domain.CategoryFinance,
				Enabled:    true,
				Thresholds: tc.thresholds,
			}
			signals, _ := evaluateLedgerDrift(set, settings, now)
			if len(signals) != tc.want {
				t.Fatalf("got %d signals, want %d", len(signals), tc.want)
			}
		})
	}
}

func TestLowStockUsesReorderPoint(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	settings := domain.DomainSettings{
		Category:   domain.CategoryInventory,
		Enabled:    true,
		Thresholds: map[string]float64{"low_stock_units": 10},
	}

	set := facts.Set{StockItems: []facts.StockItem{
		{SKU: "A", Name: "Flour", OnHandUnits: 50, ReorderPoint: 20},
		{SKU: "B", Name: "Sugar", OnHandUnits: 4, ReorderPoint: 20},
		{SKU: "C", Name: "Salt", OnHandUnits: 0, ReorderPoint: 0},
	}}

	signals, followUps := evaluateLowStock(set, settings, now)
	if len(signals) != 2 || len(followUps) != 2 {
		t.Fatalf("got %d signals, %d follow-ups, want 2 each", len(signals), len(followUps))
	}
	// Sugar: 20/4 = 5x deficit, Salt: empty shelf. Both critical.
	for _, s := range signals {
		if s.Severity != domain.SeverityCritical {
			t.Fatalf("%s severity = %s, want critical", s.Subject.EntityID, s.Severity)
		}
	}
}

func TestAmbassadorSentimentBranches(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	set := facts.Set{Ambassadors: []facts.Ambassador{
		{ID: "amb-1", Name: "Kim", LastSentiment: facts.SentimentNegative},
		{ID: "amb-2", Name: "Lee", LastSentiment: facts.SentimentPositive},
		{ID: "amb-3", Name: "Sam", LastSentiment: facts.SentimentNeutral},
	}}

	signals, followUps := evaluateAmbassadorSentiment(set, domain.DomainSettings{}, now)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1 (negative only)", len(signals))
	}
	if len(followUps) != 2 {
		t.Fatalf("got %d follow-ups, want 2", len(followUps))
	}
	if followUps[0].Reason != domain.ReasonNegativeSentiment {
		t.Fatalf("first follow-up reason = %s", followUps[0].Reason)
	}
	if followUps[1].Reason != domain.ReasonPositiveSentiment {
		t.Fatalf("second follow-up reason = %s", followUps[1].Reason)
	}
	if !followUps[1].DueAt.After(now) {
		t.Fatal("positive-sentiment touch should be scheduled, not immediate")
	}
}

func TestRegistryCoversEveryCategory(t *testing.T) {
	seen := make(map[domain.Category]bool)
	for _, r := range Registry() {
		seen[r.Category] = true
		if r.TriggerType == "" || r.Evaluate == nil {
			t.Fatalf("rule for %s is incomplete", r.Category)
		}
	}
	for _, category := range domain.AllCategories() {
		if !seen[category] {
			t.Fatalf("no rules registered for %s", category)
		}
	}
}
