// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/events"
	"opspulse_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Queue Events
// =============================================================================

// SignalRaised is published when the evaluator detects a new condition.
type SignalRaised struct {
	BaseEvent
	SignalID    uuid.UUID       `json:"signalId"`
	Category    domain.Category `json:"category"`
	Severity    domain.Severity `json:"severity"`
	TriggerType string          `json:"triggerType"`
}

func (e SignalRaised) EventName() string { return "queue.signal.raised" }

// FollowUpCreated is published when a new follow-up item enters the queue.
type FollowUpCreated struct {
	BaseEvent
	ItemID  uuid.UUID         `json:"itemId"`
	Reason  domain.Reason     `json:"reason"`
	Subject domain.SubjectRef `json:"subject"`
}

func (e FollowUpCreated) EventName() string { return "queue.followup.created" }

// =============================================================================
// Scan Events
// =============================================================================

// ScanCompleted is published after every evaluator pass, including partial ones.
type ScanCompleted struct {
	BaseEvent
	NewSignals     int      `json:"newSignals"`
	NewFollowUps   int      `json:"newFollowUps"`
	FailedDomains  []string `json:"failedDomains,omitempty"`
	ScannedDomains int      `json:"scannedDomains"`
}

func (e ScanCompleted) EventName() string { return "scan.completed" }

// =============================================================================
// Dispatch Events
// =============================================================================

// EscalationAdvanced is published when a ladder step was successfully dispatched.
type EscalationAdvanced struct {
	BaseEvent
	ItemID    uuid.UUID          `json:"itemId"`
	StepIndex int                `json:"stepIndex"`
	Channel   domain.ChannelKind `json:"channel"`
}

func (e EscalationAdvanced) EventName() string { return "dispatch.escalation.advanced" }

// DispatchFailed is published when an external channel call failed. The step
// is not advanced and the same message is retried on the next ladder pass.
type DispatchFailed struct {
	BaseEvent
	ItemID    uuid.UUID          `json:"itemId"`
	StepIndex int                `json:"stepIndex"`
	Channel   domain.ChannelKind `json:"channel"`
	Reason    string             `json:"reason"`
}

func (e DispatchFailed) EventName() string { return "dispatch.failed" }

// HumanEscalationRequired is published when an item exceeded the
// escalation_after_days ceiling and must reach a human regardless of
// autopilot settings.
type HumanEscalationRequired struct {
	BaseEvent
	ItemID   uuid.UUID       `json:"itemId"`
	Kind     domain.ItemKind `json:"kind"`
	Category domain.Category `json:"category"`
	Elapsed  int             `json:"elapsedDays"`
}

func (e HumanEscalationRequired) EventName() string { return "dispatch.human_escalation.required" }
