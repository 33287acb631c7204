package stats

import (
	"context"
	"testing"
	"time"

	"opspulse_backend/internal/signals/domain"
)

type fakeSource struct {
	buckets       []SeverityCount
	resolved      int
	failed        int
	resolvedSince time.Time
	failedSince   time.Time
}

func (f *fakeSource) OpenSeverityCounts(_ context.Context) ([]SeverityCount, error) {
	return f.buckets, nil
}

func (f *fakeSource) ResolvedSince(_ context.Context, cutoff time.Time) (int, error) {
	f.resolvedSince = cutoff
	return f.resolved, nil
}

func (f *fakeSource) FailedDispatchesSince(_ context.Context, cutoff time.Time) (int, error) {
	f.failedSince = cutoff
	return f.failed, nil
}

func TestCounts(t *testing.T) {
	source := &fakeSource{
		buckets: []SeverityCount{
			{Category: domain.CategoryFinance, Severity: domain.SeverityCritical, Count: 2},
			{Category: domain.CategoryFinance, Severity: domain.SeverityMedium, Count: 3},
			{Category: domain.CategoryInventory, Severity: domain.SeverityHigh, Count: 1},
			{Category: domain.CategoryCRM, Severity: domain.SeverityLow, Count: 4},
		},
		resolved: 5,
		failed:   2,
	}
	svc := New(source)
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	counts, err := svc.Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}

	want := Counts{Critical: 2, High: 1, Medium: 3, Low: 4, Open: 10, ResolvedToday: 5, FailedDispatches: 2}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}

	midnight := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !source.resolvedSince.Equal(midnight) {
		t.Errorf("resolved cutoff = %v, want UTC midnight", source.resolvedSince)
	}
	if !source.failedSince.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("failed cutoff = %v, want trailing 24h", source.failedSince)
	}
}

func TestHealthScores(t *testing.T) {
	cases := []struct {
		name    string
		buckets []SeverityCount
		want    HealthScores
	}{
		{
			name: "empty queue is perfect health",
			want: HealthScores{Financial: 100, Operational: 100, Overall: 100},
		},
		{
			name: "finance pressure hits the financial score only",
			buckets: []SeverityCount{
				{Category: domain.CategoryFinance, Severity: domain.SeverityCritical, Count: 1},
				{Category: domain.CategoryFinance, Severity: domain.SeverityMedium, Count: 2},
			},
			// 100 - (25 + 2*5) = 65; overall 0.6*65 + 0.4*100 = 79
			want: HealthScores{Financial: 65, Operational: 100, Overall: 79},
		},
		{
			name: "everything else counts as operational",
			buckets: []SeverityCount{
				{Category: domain.CategoryInventory, Severity: domain.SeverityHigh, Count: 2},
				{Category: domain.CategoryOperations, Severity: domain.SeverityLow, Count: 5},
			},
			// 100 - (2*10 + 5*2) = 70; overall 0.6*100 + 0.4*70 = 88
			want: HealthScores{Financial: 100, Operational: 70, Overall: 88},
		},
		{
			name: "score clamps at zero",
			buckets: []SeverityCount{
				{Category: domain.CategoryFinance, Severity: domain.SeverityCritical, Count: 6},
			},
			want: HealthScores{Financial: 0, Operational: 100, Overall: 40},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&fakeSource{buckets: tc.buckets})
			scores, err := svc.HealthScores(context.Background())
			if err != nil {
				t.Fatalf("health scores: %v", err)
			}
			if scores != tc.want {
				t.Fatalf("scores = %+v, want %+v", scores, tc.want)
			}
		})
	}
}
