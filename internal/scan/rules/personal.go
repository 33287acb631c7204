package rules

import (
	"fmt"
	"time"

	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/signals/domain"
)

func evaluateMissedCheckins(f facts.Set, s domain.DomainSettings, now time.Time) ([]domain.SignalCandidate, []domain.FollowUpCandidate) {
	missedDays := s.Threshold("missed_checkin_days", defaultMissedCheckinDays)

	var signals []domain.SignalCandidate
	var followUps []domain.FollowUpCandidate
	for _, checkin := range f.Checkins {
		var sinceDays float64
		if checkin.LastCheckinAt == nil {
			// Never checked in counts as maximally late.
			sinceDays = missedDays * 2
		} else {
			sinceDays = float64(domain.ElapsedDays(*checkin.LastCheckinAt, now))
		}
		if sinceDays < missedDays {
			continue
		}

		severity := domain.SeverityForRatio(sinceDays / missedDays)
		subject := domain.SubjectRef{Domain: domain.CategoryPersonal, EntityID: checkin.StaffID}

		condition := fmt.Sprintf("%s has not checked in for %d days", checkin.Name, int(sinceDays))
		if checkin.LastCheckinAt == nil {
			condition = fmt.Sprintf("%s has never checked in", checkin.Name)
		}

		signals = append(signals, domain.SignalCandidate{
			Category:          domain.CategoryPersonal,
			Severity:          severity,
			TriggerType:       TriggerMissedCheckin,
			Subject:           subject,
			ConditionDetected: condition,
			RecommendedAction: "reach the staff member directly",
		})
		followUps = append(followUps, domain.FollowUpCandidate{
			Reason:            domain.ReasonMissedCheckin,
			RecommendedAction: domain.ActionManualCall,
			Severity:          severity,
			Priority:          domain.PriorityForSeverity(severity),
			DueAt:             now,
			Subject:           subject,
			ContactName:       checkin.Name,
			ContactPhone:      checkin.Phone,
		})
	}
	return signals, followUps
}
