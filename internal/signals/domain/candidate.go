package domain

import "time"

// SignalCandidate is a rule evaluator output that has not been deduplicated
// yet. The lifecycle service decides whether it becomes a new Signal or
// refreshes an already-open one.
type SignalCandidate struct {
	Category          Category
	Severity          Severity
	TriggerType       string
	Subject           SubjectRef
	ConditionDetected string
	RecommendedAction string
}

// FollowUpCandidate is a rule evaluator output for a follow-up item.
type FollowUpCandidate struct {
	Reason            Reason
	RecommendedAction ActionType
	Severity          Severity
	Priority          int
	DueAt             time.Time
	Subject           SubjectRef
	ContactName       string
	ContactPhone      string
	ContactEmail      string
}
