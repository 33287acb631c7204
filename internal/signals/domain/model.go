// Package domain holds the core model of the signal and follow-up engine:
// detected business conditions (signals), scheduled outbound work
// (follow-up items), per-domain automation settings, and the escalation
// ladder that unresolved items climb.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category identifies a scanned business domain.
type Category string

const (
	CategoryFinance    Category = "finance"
	CategoryCRM        Category = "crm"
	CategoryInventory  Category = "inventory"
	CategoryOperations Category = "operations"
	CategoryPersonal   Category = "personal"
	CategoryAmbassador Category = "ambassador"
)

// AllCategories lists every scannable domain in stable order.
func AllCategories() []Category {
	return []Category{
		CategoryFinance,
		CategoryCRM,
		CategoryInventory,
		CategoryOperations,
		CategoryPersonal,
		CategoryAmbassador,
	}
}

// Valid reports whether the category is a known domain.
func (c Category) Valid() bool {
	switch c {
	case CategoryFinance, CategoryCRM, CategoryInventory,
		CategoryOperations, CategoryPersonal, CategoryAmbassador:
		return true
	}
	return false
}

// Severity grades how urgent a detected condition is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank maps severity to an ordinal for threshold comparison. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AtLeast reports whether s meets or exceeds the given minimum severity.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// SignalStatus is the lifecycle state of a Signal.
type SignalStatus string

const (
	SignalOpen       SignalStatus = "open"
	SignalProcessing SignalStatus = "processing"
	SignalResolved   SignalStatus = "resolved"
	SignalDismissed  SignalStatus = "dismissed"
)

// Terminal reports whether the status admits no further transitions.
func (s SignalStatus) Terminal() bool {
	return s == SignalResolved || s == SignalDismissed
}

// FollowUpStatus is the lifecycle state of a FollowUpItem. The three active
// states are a pure function of the due date and the clock; only the terminal
// states are sticky.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpDueToday  FollowUpStatus = "due_today"
	FollowUpOverdue   FollowUpStatus = "overdue"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s FollowUpStatus) Terminal() bool {
	return s == FollowUpCompleted || s == FollowUpCancelled
}

// Active reports whether the item still represents outstanding work.
func (s FollowUpStatus) Active() bool {
	return !s.Terminal()
}

// Reason classifies why a follow-up item exists.
type Reason string

const (
	ReasonNoResponse        Reason = "no_response"
	ReasonLowStock          Reason = "low_stock"
	ReasonChurnRisk         Reason = "churn_risk"
	ReasonDealStalled       Reason = "deal_stalled"
	ReasonDeliveryFollowup  Reason = "delivery_followup"
	ReasonOnboarding        Reason = "onboarding"
	ReasonPositiveSentiment Reason = "positive_sentiment"
	ReasonNegativeSentiment Reason = "negative_sentiment"
	ReasonOverdueInvoice    Reason = "overdue_invoice"
	ReasonIdleRoute         Reason = "idle_route"
	ReasonMissedCheckin     Reason = "missed_checkin"
)

// ActionType is the recommended outbound action for a follow-up item.
type ActionType string

const (
	ActionAICall     ActionType = "ai_call"
	ActionAIText     ActionType = "ai_text"
	ActionManualCall ActionType = "manual_call"
	ActionManualText ActionType = "manual_text"
)

// Automated reports whether the action is eligible for autopilot execution.
func (a ActionType) Automated() bool {
	return a == ActionAICall || a == ActionAIText
}

// ChannelKind identifies an external action channel.
type ChannelKind string

const (
	ChannelCall   ChannelKind = "call"
	ChannelSMS    ChannelKind = "sms"
	ChannelEmail  ChannelKind = "email"
	ChannelRoute  ChannelKind = "route"
	ChannelLedger ChannelKind = "ledger_correction"
)

// SubjectRef identifies the business entity a signal or follow-up is about.
type SubjectRef struct {
	Domain   Category `json:"domain"`
	EntityID string   `json:"entityId"`
}

// String renders the reference as "domain/entityID" for dedup keys and logs.
func (r SubjectRef) String() string {
	return fmt.Sprintf("%s/%s", r.Domain, r.EntityID)
}

// Signal is a detected anomalous business condition requiring attention.
// At most one open signal exists per (category, trigger type, subject) tuple;
// re-detection refreshes the open one instead of duplicating it.
type Signal struct {
	ID                uuid.UUID    `json:"id"`
	Category          Category     `json:"category"`
	Severity          Severity     `json:"severity"`
	TriggerType       string       `json:"triggerType"`
	Subject           SubjectRef   `json:"subject"`
	ConditionDetected string       `json:"conditionDetected"`
	RecommendedAction string       `json:"recommendedAction"`
	Status            SignalStatus `json:"status"`
	Version           int64        `json:"version"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	ResolvedAt        *time.Time   `json:"resolvedAt,omitempty"`
}

// FollowUpItem is a scheduled, due-dated unit of outbound work.
// StepIndex records the highest escalation step already dispatched; -1 means
// no step has been sent yet.
type FollowUpItem struct {
	ID                uuid.UUID      `json:"id"`
	Reason            Reason         `json:"reason"`
	RecommendedAction ActionType     `json:"recommendedAction"`
	Priority          int            `json:"priority"`
	DueAt             time.Time      `json:"dueAt"`
	Status            FollowUpStatus `json:"status"`
	Subject           SubjectRef     `json:"subject"`
	Severity          Severity       `json:"severity"`
	ContactName       string         `json:"contactName,omitempty"`
	ContactPhone      string         `json:"contactPhone,omitempty"`
	ContactEmail      string         `json:"contactEmail,omitempty"`
	StepIndex         int            `json:"stepIndex"`
	LastEscalatedAt   *time.Time     `json:"lastEscalatedAt,omitempty"`
	NeedsHuman        bool           `json:"needsHuman"`
	DispatchFailures  int            `json:"dispatchFailures"`
	Version           int64          `json:"version"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

// EscalationStep is one rung of a domain's escalation ladder.
type EscalationStep struct {
	OffsetDays      int        `json:"offsetDays" yaml:"offset_days"`
	MessageTemplate string     `json:"messageTemplate" yaml:"message_template"`
	ActionTier      ActionType `json:"actionTier" yaml:"action_tier"`
}

// MinEscalationAfterDays is the hard floor for the mandatory human-escalation
// ceiling. Settings may raise it, never lower it, so no item can be
// auto-handled forever.
const MinEscalationAfterDays = 3

// DomainSettings is the per-category automation configuration.
type DomainSettings struct {
	Category            Category           `json:"category"`
	Enabled             bool               `json:"enabled"`
	Thresholds          map[string]float64 `json:"thresholds"`
	SeverityThreshold   Severity           `json:"severityThreshold"`
	AutoCreateTasks     bool               `json:"autoCreateTasks"`
	AutoAssignRoutes    bool               `json:"autoAssignRoutes"`
	AutoSendComms       bool               `json:"autoSendCommunications"`
	AutoFinancial       bool               `json:"autoFinancialCorrections"`
	EscalationSteps     []EscalationStep   `json:"escalationSteps"`
	EscalationAfterDays int                `json:"escalationAfterDays"`
	Version             int64              `json:"version"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// Threshold returns a named numeric threshold, or the fallback when unset.
func (s DomainSettings) Threshold(name string, fallback float64) float64 {
	if v, ok := s.Thresholds[name]; ok && v > 0 {
		return v
	}
	return fallback
}

// ItemKind distinguishes the two queue item types in shared records
// (dispatch log, approval queue).
type ItemKind string

const (
	KindSignal   ItemKind = "signal"
	KindFollowUp ItemKind = "followup"
)

// DispatchRequest asks the dispatcher to execute one escalation step for one item.
type DispatchRequest struct {
	ItemID    uuid.UUID   `json:"itemId"`
	Kind      ItemKind    `json:"kind"`
	StepIndex int         `json:"stepIndex"`
	Category  Category    `json:"category"`
	Severity  Severity    `json:"severity"`
	Action    ActionType  `json:"action"`
	Channel   ChannelKind `json:"channel"`
	Message   string      `json:"message"`
	Subject   SubjectRef  `json:"subject"`
	// Mandatory marks the hard human-escalation ceiling: the item exceeded
	// escalation_after_days and must reach a human regardless of autopilot flags.
	Mandatory bool `json:"mandatory"`
	// OutOfBand marks a TriggerNow request that bypassed ladder timing.
	OutOfBand bool `json:"outOfBand"`
}

// OutcomeStatus is the result classification of one dispatch attempt.
type OutcomeStatus string

const (
	OutcomeSent          OutcomeStatus = "sent"
	OutcomeFailed        OutcomeStatus = "failed"
	OutcomeQueuedHuman   OutcomeStatus = "queued_approval"
	OutcomeSkippedOff    OutcomeStatus = "skipped_disabled"
	OutcomeDiscarded     OutcomeStatus = "discarded"
	OutcomeDuplicateSkip OutcomeStatus = "duplicate_skip"
)

// Outcome records what happened to one DispatchRequest.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
	At     time.Time     `json:"at"`
}
