package rules

import (
	"fmt"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateIdleAmbassadors(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	idleDays := s.Threshold("inactivity_days", defaultAmbassadorIdleDays)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, amb := range f.Ambassadors {
		if amb.LastActiveAt == nil {
			continue
		}
		idle := float64(domain.ElapsedDays(*amb.LastActiveAt, now))
		if idle < idleDays {
			continue
		}

		severity := domain.SeverityForRatio(idle / idleDays)
		subject := domain.SubjectRef{Domain: domain.CategoryAmbassador, EntityID: amb.ID}

		signals = append(signals, domain.SignalCandidate{
			Category:    domain.CategoryAmbassador,
			Severity:    severity,
			TriggerType: TriggerAmbassadorIdle,
			Subject:     subject,
			ConditionDetected: fmt.Sprintf("ambassador %s inactive for %d days",
				amb.Name, int(idle)),
			RecommendedAction: "check in with the ambassador",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonNoResponse,
			RecommendedAction: actionForSeverity(severity),
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       amb.Name,
			ContactPhone:      amb.Phone,
			ContactEmail:      amb.Email,
		})
	}
	return signals, followUps
}

func evaluateAmbassadorSentiment(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, amb := range f.Ambassadors {
		subject := domain.SubjectRef{Domain: domain.CategoryAmbassador, EntityID: amb.ID}

		switch amb.LastSentiment {
		case facts.SentimentNegative:
			signals = append(signals, domain.SignalCandidate{
				Category:          domain.CategoryAmbassador,
				Severity:          domain.SeverityHigh,
				TriggerType:       TriggerAmbassadorSentiment,
				Subject:           subject,
				ConditionDetected: fmt.Sprintf("ambassador %s reported negative sentiment", amb.Name),
				RecommendedAction: "call to resolve the complaint",
			})
			followUps = append(followUps, domain.FollowUpCandidate{
				Reason:            domain.ReasonNegativeSentiment,
				RecommendedAction: domain.ActionAICall,
				Severity:          domain.SeverityHigh,
				Priority:          domain.PriorityForSeverity(domain.SeverityHigh),
				DueAt:             now,
				Subject:           subject,
				ContactName:       amb.Name,
				ContactPhone:      amb.Phone,
				ContactEmail:      amb.Email,
			})
		case facts.SentimentPositive:
			// A thank-you touch, scheduled rather than urgent.
			followUps = append(followUps, domain.FollowUpCandidate{
				Reason:            domain.ReasonPositiveSentiment,
				RecommendedAction: domain.ActionAIText,
				Severity:          domain.SeverityLow,
				Priority:          domain.PriorityForSeverity(domain.SeverityLow),
				DueAt:             now.Add(24 * time.Hour),
				Subject:           subject,
				ContactName:       amb.Name,
				ContactPhone:      amb.Phone,
				ContactEmail:      amb.Email,
			})
		}
	}
	return signals, followUps
}
