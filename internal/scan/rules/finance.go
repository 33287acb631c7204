package rules

import (
	"fmt"
	"math"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateOverdueInvoices(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	overdueDays := s.Threshold("overdue_days", defaultOverdueDays)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, inv := range f.Invoices {
		if inv.PaidAt != nil || now.Before(inv.DueAt) {
			continue
		}
		daysLate := float64(domain.ElapsedDays(inv.DueAt, now))
		if daysLate < overdueDays {
			continue
		}

		severity := domain.SeverityForRatio(daysLate / overdueDays)
		subject := domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: inv.ID}
		condition := fmt.Sprintf("invoice %s for %s is %d days overdue (%s)",
			inv.ID, inv.CustomerName, int(daysLate), formatCents(inv.AmountCents))

		signals = append(signals, domain.SignalCandidate{
			Category:          domain.CategoryFinance,
			Severity:          severity,
			TriggerType:       TriggerOverdueInvoice,
			Subject:           subject,
			ConditionDetected: condition,
			RecommendedAction: "contact customer about overdue payment",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonOverdueInvoice,
			RecommendedAction: actionForSeverity(severity),
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       inv.CustomerName,
			ContactPhone:      inv.Phone,
			ContactEmail:      inv.Email,
		})
	}
	return signals, followUps
}

func evaluateLedgerDrift(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	driftCents := s.Threshold("ledger_drift_cents", defaultLedgerDriftCents)

	var signals []domain.SignalCandidate
	for _, gap := range f.LedgerGaps {
		drift := math.Abs(float64(gap.DriftCents))
		if drift < driftCents {
			continue
		}

		signals = append(signals, domain.SignalCandidate{
			Category:    domain.CategoryFinance,
			Severity:    domain.SeverityForRatio(drift / driftCents),
			TriggerType: TriggerLedgerDrift,
			Subject:     domain.SubjectRef{Domain: domain.CategoryFinance, EntityID: gap.AccountID},
			ConditionDetected: fmt.Sprintf("ledger account %s drifted by %s (%s)",
				gap.AccountID, formatCents(gap.DriftCents), gap.Description),
			RecommendedAction: "post a correcting ledger entry",
		})
	}
	return signals, nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
