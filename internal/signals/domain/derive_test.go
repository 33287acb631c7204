package domain

import (
	"testing"
	"time"
)

func TestDeriveFollowUpStatus(t *testing.T) {
	dueAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want FollowUpStatus
	}{
		{"well before due", dueAt.Add(-72 * time.Hour), FollowUpPending},
		{"one second before due", dueAt.Add(-time.Second), FollowUpPending},
		{"exactly due", dueAt, FollowUpDueToday},
		{"within the day", dueAt.Add(23 * time.Hour), FollowUpDueToday},
		{"exactly one day after", dueAt.Add(24 * time.Hour), FollowUpOverdue},
		{"long overdue", dueAt.Add(400 * time.Hour), FollowUpOverdue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveFollowUpStatus(dueAt, tc.now); got != tc.want {
				t.Fatalf("DeriveFollowUpStatus(%v) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestEffectiveStatusKeepsTerminalSticky(t *testing.T) {
	dueAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	item := FollowUpItem{DueAt: dueAt, Status: FollowUpCompleted}

	// Even far past due, a completed item never becomes overdue.
	if got := item.EffectiveStatus(dueAt.Add(30 * 24 * time.Hour)); got != FollowUpCompleted {
		t.Fatalf("terminal status recomputed to %s", got)
	}

	item.Status = FollowUpPending
	if got := item.EffectiveStatus(dueAt.Add(48 * time.Hour)); got != FollowUpOverdue {
		t.Fatalf("active status not refreshed, got %s", got)
	}
}

func TestSeverityForRatioIsMonotonic(t *testing.T) {
	prev := Severity("")
	prevRank := -1
	for ratio := 0.0; ratio <= 4.0; ratio += 0.05 {
		sev := SeverityForRatio(ratio)
		if sev.Rank() < prevRank {
			t.Fatalf("severity decreased from %s to %s at ratio %.2f", prev, sev, ratio)
		}
		prev = sev
		prevRank = sev.Rank()
	}

	if SeverityForRatio(0.5) != SeverityLow {
		t.Fatalf("sub-threshold ratio should be low")
	}
	if SeverityForRatio(1.0) != SeverityMedium {
		t.Fatalf("at threshold should be medium")
	}
	if SeverityForRatio(2.0) != SeverityCritical {
		t.Fatalf("double threshold should be critical")
	}
}

func TestPriorityForSeverityOrdering(t *testing.T) {
	if PriorityForSeverity(SeverityCritical) >= PriorityForSeverity(SeverityLow) {
		t.Fatalf("critical must be more urgent (lower) than low")
	}
}

func TestElapsedDays(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if d := ElapsedDays(start, start.Add(25*time.Hour)); d != 1 {
		t.Fatalf("ElapsedDays = %d, want 1", d)
	}
	if d := ElapsedDays(start, start.Add(-time.Hour)); d != 0 {
		t.Fatalf("ElapsedDays negative window = %d, want 0", d)
	}
	if d := ElapsedDays(start, start.Add(16*24*time.Hour)); d != 16 {
		t.Fatalf("ElapsedDays = %d, want 16", d)
	}
}
