package rules

import (
	"fmt"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateIdleRoutes(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	idleHours := s.Threshold("idle_route_hours", defaultIdleRouteHours)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, route := range f.Routes {
		idle := now.Sub(route.LastActivityAt).Hours()
		if idle < idleHours {
			continue
		}

		severity := domain.SeverityForRatio(idle / idleHours)
		subject := domain.SubjectRef{Domain: domain.CategoryOperations, EntityID: route.ID}

		signals = append(signals, domain.SignalCandidate{
			Category:    domain.CategoryOperations,
			Severity:    severity,
			TriggerType: TriggerIdleRoute,
			Subject:     subject,
			ConditionDetected: fmt.Sprintf("route %s (driver %s) idle for %.0f hours",
				route.ID, route.DriverName, idle),
			RecommendedAction: "check on the driver or reassign the route",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonIdleRoute,
			RecommendedAction: actionForSeverity(severity),
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       route.DriverName,
			ContactPhone:      route.DriverPhone,
		})
	}
	return signals, followUps
}

// evaluateDeliveryFollowups schedules the post-delivery customer touch. Work
// only, no signal.
func evaluateDeliveryFollowups(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	delayHours := s.Threshold("delivery_delay_hours", defaultDeliveryDelayHours)

	var followUps []domain.FollowUpCandidate
	for _, delivery := range f.Deliveries {
		if delivery.FollowedUpAt != nil {
			continue
		}
		if now.Sub(delivery.DeliveredAt).Hours() < delayHours {
			continue
		}

		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonDeliveryFollowup,
			RecommendedAction: domain.ActionAIText,
			Severity:          domain.SeverityLow,
			Priority:          domain.PriorityForSeverity(domain.SeverityLow),
			DueAt:             now.Add(24 * time.Hour),
			Subject:           domain.SubjectRef{Domain: domain.CategoryOperations, EntityID: delivery.ID},
			ContactName:       delivery.CustomerName,
			ContactPhone:      delivery.Phone,
		})
	}
	return nil, followUps
}
