package domain

import (
	"errors"
	"testing"
)

func TestSignalTransitionTable(t *testing.T) {
	allowed := map[[2]SignalStatus]bool{
		{SignalOpen, SignalProcessing}:      true,
		{SignalOpen, SignalDismissed}:       true,
		{SignalProcessing, SignalOpen}:      true,
		{SignalProcessing, SignalResolved}:  true,
		{SignalProcessing, SignalDismissed}: true,
	}

	statuses := []SignalStatus{SignalOpen, SignalProcessing, SignalResolved, SignalDismissed}
	for _, from := range statuses {
		for _, to := range statuses {
			err := CheckSignalTransition(from, to)
			if allowed[[2]SignalStatus{from, to}] {
				if err != nil {
					t.Errorf("expected %s -> %s to be allowed, got %v", from, to, err)
				}
				continue
			}
			if err == nil {
				t.Errorf("expected %s -> %s to be rejected", from, to)
				continue
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("expected InvalidTransitionError for %s -> %s, got %T", from, to, err)
			}
		}
	}
}

func TestTerminalSignalStatusesAreSticky(t *testing.T) {
	for _, terminal := range []SignalStatus{SignalResolved, SignalDismissed} {
		for _, to := range []SignalStatus{SignalOpen, SignalProcessing, SignalResolved, SignalDismissed} {
			if err := CheckSignalTransition(terminal, to); err == nil {
				t.Errorf("terminal status %s allowed transition to %s", terminal, to)
			}
		}
	}
}

func TestFollowUpTransitions(t *testing.T) {
	active := []FollowUpStatus{FollowUpPending, FollowUpDueToday, FollowUpOverdue}
	terminal := []FollowUpStatus{FollowUpCompleted, FollowUpCancelled}

	for _, from := range active {
		for _, to := range terminal {
			if err := CheckFollowUpTransition(from, to); err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", from, to, err)
			}
		}
		// Derived statuses are never commanded through the transition check.
		for _, to := range active {
			if err := CheckFollowUpTransition(from, to); err == nil {
				t.Errorf("expected commanded %s -> %s to be rejected", from, to)
			}
		}
	}

	for _, from := range terminal {
		for _, to := range append(active, terminal...) {
			err := CheckFollowUpTransition(from, to)
			if err == nil {
				t.Errorf("expected terminal %s -> %s to be rejected", from, to)
				continue
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("expected InvalidTransitionError, got %T", err)
			}
		}
	}
}
