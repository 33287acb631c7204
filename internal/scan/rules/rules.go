// Package rules holds the per-domain rule tables the scanner applies to
// fetched facts. Every rule is a pure function of facts, settings, and the
// clock, so identical inputs always produce identical candidates.
package rules

import (
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

// Rule is one tagged evaluation entry in the registry.
type Rule struct {
	Category    domain.Category
	TriggerType string
	Evaluate    EvaluateFunc
}

// EvaluateFunc turns one domain's facts into candidate items. It must not
// perform IO.
type EvaluateFunc func(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate)

// Registry returns every rule, grouped by domain in stable order.
func Registry() []Rule {
	return []Rule{
		{domain.CategoryFinance, TriggerOverdueInvoice, evaluateOverdueInvoices},
		{domain.CategoryFinance, TriggerLedgerDrift, evaluateLedgerDrift},
		{domain.CategoryCRM, TriggerDealStalled, evaluateStalledDeals},
		{domain.CategoryCRM, TriggerChurnRisk, evaluateChurnRisk},
		{domain.CategoryCRM, TriggerOnboarding, evaluateOnboarding},
		{domain.CategoryInventory, TriggerLowStock, evaluateLowStock},
		{domain.CategoryOperations, TriggerIdleRoute, evaluateIdleRoutes},
		{domain.CategoryOperations, TriggerDeliveryFollowup, evaluateDeliveryFollowups},
		{domain.CategoryPersonal, TriggerMissedCheckin, evaluateMissedCheckins},
		{domain.CategoryAmbassador, TriggerAmbassadorIdle, evaluateIdleAmbassadors},
		{domain.CategoryAmbassador, TriggerAmbassadorSentiment, evaluateAmbassadorSentiment},
	}
}

// ForCategory returns the rules registered for one domain.
func ForCategory(category domain.Category) []Rule {
	var out []Rule
	for _, r := range Registry() {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Trigger types emitted by the registry.
const (
	TriggerOverdueInvoice      = "overdue_invoice"
	TriggerLedgerDrift         = "ledger_drift"
	TriggerDealStalled         = "deal_stalled"
	TriggerChurnRisk           = "churn_risk"
	TriggerOnboarding          = "onboarding"
	TriggerLowStock            = "low_stock"
	TriggerIdleRoute           = "idle_route"
	TriggerDeliveryFollowup    = "delivery_followup"
	TriggerMissedCheckin       = "missed_checkin"
	TriggerAmbassadorIdle      = "ambassador_idle"
	TriggerAmbassadorSentiment = "ambassador_sentiment"
)

// Default thresholds used when a domain has no stored value.
const (
	defaultOverdueDays        = 7.0
	defaultLedgerDriftCents   = 5000.0
	defaultStaleDays          = 5.0
	defaultChurnDays          = 30.0
	defaultOnboardingDays     = 3.0
	defaultLowStockUnits      = 10.0
	defaultIdleRouteHours     = 12.0
	defaultDeliveryDelayHours = 24.0
	defaultMissedCheckinDays  = 2.0
	defaultAmbassadorIdleDays = 14.0
)

// actionForSeverity picks the outbound tier for a candidate: urgent breaches
// get a call, the rest a text.
func actionForSeverity(s domain.Severity) domain.ActionType {
	if s.AtLeast(domain.SeverityHigh) {
		return domain.ActionAICall
	}
	return domain.ActionAIText
}
