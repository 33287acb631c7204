package rules

import (
	"fmt"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateLowStock(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	lowUnits := s.Threshold("low_stock_units", defaultLowStockUnits)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, item := range f.StockItems {
		threshold := lowUnits
		if item.ReorderPoint > 0 {
			threshold = float64(item.ReorderPoint)
		}
		if float64(item.OnHandUnits) > threshold {
			continue
		}

		// Deficit ratio: empty shelves grade critical, a just-crossed
		// reorder point grades medium.
		onHand := float64(item.OnHandUnits)
		if onHand < 1 {
			onHand = 0.5
		}
		severity := domain.SeverityForRatio(threshold / onHand)
		subject := domain.SubjectRef{Domain: domain.CategoryInventory, EntityID: item.SKU}

		condition := fmt.Sprintf("%s (%s) down to %d units, reorder point %d",
			item.Name, item.SKU, item.OnHandUnits, int(threshold))
		if item.DailyBurnUnits > 0 {
			daysLeft := float64(item.OnHandUnits) / item.DailyBurnUnits
			condition = fmt.Sprintf("%s, about %.1f days of stock left", condition, daysLeft)
		}

		signals = append(signals, domain.SignalCandidate{
			Category:          domain.CategoryInventory,
			Severity:          severity,
			TriggerType:       TriggerLowStock,
			Subject:           subject,
			ConditionDetected: condition,
			RecommendedAction: "reorder stock",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonLowStock,
			RecommendedAction: domain.ActionManualCall,
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
		})
	}
	return signals, followUps
}
