package domain

import "fmt"

// InvalidTransitionError reports a rejected lifecycle mutation. The state is
// left unchanged by the caller.
type InvalidTransitionError struct {
	Kind ItemKind
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Kind, e.From, e.To)
}

// signalTransitions is the legal signal state machine:
// open -> processing -> {resolved, dismissed}, plus open -> dismissed directly,
// and processing -> open when the condition is re-detected before resolution.
var signalTransitions = map[SignalStatus]map[SignalStatus]bool{
	SignalOpen: {
		SignalProcessing: true,
		SignalDismissed:  true,
	},
	SignalProcessing: {
		SignalOpen:      true, // condition re-detected, still unresolved
		SignalResolved:  true,
		SignalDismissed: true,
	},
	SignalResolved:  {},
	SignalDismissed: {},
}

// CheckSignalTransition validates a signal status change, returning an
// *InvalidTransitionError when the move is not in the transition table.
func CheckSignalTransition(from, to SignalStatus) error {
	if signalTransitions[from][to] {
		return nil
	}
	return &InvalidTransitionError{Kind: KindSignal, From: string(from), To: string(to)}
}

// CheckFollowUpTransition validates a follow-up status change. The active
// statuses (pending, due_today, overdue) are derived, not commanded, so the
// only commanded transitions are into the terminal states, reachable from any
// non-terminal state and from nowhere else.
func CheckFollowUpTransition(from, to FollowUpStatus) error {
	if from.Terminal() {
		return &InvalidTransitionError{Kind: KindFollowUp, From: string(from), To: string(to)}
	}
	if to == FollowUpCompleted || to == FollowUpCancelled {
		return nil
	}
	return &InvalidTransitionError{Kind: KindFollowUp, From: string(from), To: string(to)}
}
