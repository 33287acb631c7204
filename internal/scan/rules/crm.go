package rules

import (
	"fmt"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateStalledDeals(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	staleDays := s.Threshold("stale_days", defaultStaleDays)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, deal := range f.Deals {
		idle := float64(domain.ElapsedDays(deal.UpdatedAt, now))
		if idle < staleDays {
			continue
		}

		severity := domain.SeverityForRatio(idle / staleDays)
		subject := domain.SubjectRef{Domain: domain.CategoryCRM, EntityID: deal.ID}

		signals = append(signals, domain.SignalCandidate{
			Category:    domain.CategoryCRM,
			Severity:    severity,
			TriggerType: TriggerDealStalled,
			Subject:     subject,
			ConditionDetected: fmt.Sprintf("deal %s (%s, stage %s) has had no activity for %d days",
				deal.ID, deal.ContactName, deal.Stage, int(idle)),
			RecommendedAction: "re-engage the contact to unblock the deal",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonDealStalled,
			RecommendedAction: actionForSeverity(severity),
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       deal.ContactName,
			ContactPhone:      deal.Phone,
			ContactEmail:      deal.Email,
		})
	}
	return signals, followUps
}

func evaluateChurnRisk(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	churnDays := s.Threshold("churn_inactivity_days", defaultChurnDays)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, contact := range f.Contacts {
		if contact.LastContactAt == nil {
			continue
		}
		idle := float64(domain.ElapsedDays(*contact.LastContactAt, now))
		if idle < churnDays {
			continue
		}

		severity := domain.SeverityForRatio(idle / churnDays)
		subject := domain.SubjectRef{Domain: domain.CategoryCRM, EntityID: contact.ID}

		signals = append(signals, domain.SignalCandidate{
			Category:    domain.CategoryCRM,
			Severity:    severity,
			TriggerType: TriggerChurnRisk,
			Subject:     subject,
			ConditionDetected: fmt.Sprintf("no contact with %s for %d days",
				contact.Name, int(idle)),
			RecommendedAction: "reach out before the relationship lapses",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonChurnRisk,
			RecommendedAction: actionForSeverity(severity),
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       contact.Name,
			ContactPhone:      contact.Phone,
			ContactEmail:      contact.Email,
		})
	}
	return signals, followUps
}

// evaluateOnboarding schedules a welcome touch for contacts created recently
// that nobody has reached out to yet. It produces no signal: a missing welcome
// call is work to do, not an anomaly.
func evaluateOnboarding(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	windowDays := s.Threshold("onboarding_days", defaultOnboardingDays)

	var followUps []domain.FollowUpCandidate
	for _, contact := range f.Contacts {
		if contact.LastContactAt != nil {
			continue
		}
		age := float64(domain.ElapsedDays(contact.CreatedAt, now))
		if age > windowDays {
			// Too old for a welcome touch; churn rules own it from here.
			continue
		}

		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonOnboarding,
			RecommendedAction: domain.ActionAIText,
			Severity:          domain.SeverityLow,
			Priority:          domain.PriorityForSeverity(domain.SeverityLow),
			DueAt:             now.Add(24 * time.Hour),
			Subject:           domain.SubjectRef{Domain: domain.CategoryCRM, EntityID: contact.ID},
			ContactName:       contact.Name,
			ContactPhone:      contact.Phone,
			ContactEmail:      contact.Email,
		})
	}
	return nil, followUps
}
