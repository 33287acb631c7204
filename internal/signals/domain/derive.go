package domain

import "time"

// dueTodayWindow is how long an item stays due_today before turning overdue.
const dueTodayWindow = 24 * time.Hour

// DeriveFollowUpStatus computes the active status of a follow-up item from its
// due date and the clock. Terminal statuses are never derived; callers must
// keep completed/cancelled sticky.
//
//	now <  dueAt           -> pending
//	dueAt <= now < dueAt+1d -> due_today
//	now >= dueAt+1d         -> overdue
func DeriveFollowUpStatus(dueAt, now time.Time) FollowUpStatus {
	if now.Before(dueAt) {
		return FollowUpPending
	}
	if now.Before(dueAt.Add(dueTodayWindow)) {
		return FollowUpDueToday
	}
	return FollowUpOverdue
}

// EffectiveStatus returns the item's status with the derived portion refreshed.
// Persisted status is only a cache; this is the authoritative read.
func (f FollowUpItem) EffectiveStatus(now time.Time) FollowUpStatus {
	if f.Status.Terminal() {
		return f.Status
	}
	return DeriveFollowUpStatus(f.DueAt, now)
}

// SeverityForRatio maps how far a measured value exceeds its threshold to a
// severity grade. The mapping is monotonic in the ratio: a larger breach never
// yields a lower severity.
func SeverityForRatio(ratio float64) Severity {
	switch {
	case ratio >= 2.0:
		return SeverityCritical
	case ratio >= 1.5:
		return SeverityHigh
	case ratio >= 1.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PriorityForSeverity maps severity to the follow-up priority scale, where
// lower means more urgent.
func PriorityForSeverity(s Severity) int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	default:
		return 4
	}
}

// ElapsedDays returns whole days between two instants, never negative.
func ElapsedDays(since, now time.Time) int {
	if now.Before(since) {
		return 0
	}
	return int(now.Sub(since) / (24 * time.Hour))
}
