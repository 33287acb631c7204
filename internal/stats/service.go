// Package stats derives dashboard counts and health scores from current queue
// state. Everything here is a read-side projection; the package never writes.
package stats

import (
	"context"
	"time"

	"opspulse_backend/internal/signals/domain"
)

// Severity weights: each open signal subtracts its weight from the score of
// the side of the business it belongs to. A score never leaves [0, 100].
const (
	weightCritical = 25
	weightHigh     = 10
	weightMedium   = 5
	weightLow      = 2
)

// Overall blend. Financial trouble hurts the business faster than an idle
// route, so it carries the larger share.
const (
	financialShare   = 0.6
	operationalShare = 0.4
)

// Counts is the dashboard tally of current queue state.
type Counts struct {
	Critical         int `json:"critical"`
	High             int `json:"high"`
	Medium           int `json:"medium"`
	Low              int `json:"low"`
	Open             int `json:"open"`
	ResolvedToday    int `json:"resolvedToday"`
	FailedDispatches int `json:"failedDispatches"`
}

// HealthScores grades the business from open signal pressure, 0 to 100.
type HealthScores struct {
	Financial   int `json:"financial"`
	Operational int `json:"operational"`
	Overall     int `json:"overall"`
}

// SeverityCount is one (category, severity) bucket of open signals.
type SeverityCount struct {
	Category domain.Category
	Severity domain.Severity
	Count    int
}

// Source reads the projections the aggregator needs.
type Source interface {
	// OpenSeverityCounts buckets open and processing signals by category
	// and severity.
	OpenSeverityCounts(ctx context.Context) ([]SeverityCount, error)
	// ResolvedSince counts signals resolved at or after the cutoff.
	ResolvedSince(ctx context.Context, cutoff time.Time) (int, error)
	// FailedDispatchesSince counts failed dispatch attempts at or after
	// the cutoff.
	FailedDispatchesSince(ctx context.Context, cutoff time.Time) (int, error)
}

// Service is the stats aggregator.
type Service struct {
	source Source
	now    func() time.Time
}

// New creates a new stats service.
func New(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Counts returns the current dashboard tally. "Today" starts at UTC midnight;
// failed dispatches cover the trailing 24 hours.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	buckets, err := s.source.OpenSeverityCounts(ctx)
	if err != nil {
		return Counts{}, err
	}

	var out Counts
	for _, b := range buckets {
		out.Open += b.Count
		switch b.Severity {
		case domain.SeverityCritical:
			out.Critical += b.Count
		case domain.SeverityHigh:
			out.High += b.Count
		case domain.SeverityMedium:
			out.Medium += b.Count
		case domain.SeverityLow:
			out.Low += b.Count
		}
	}

	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out.ResolvedToday, err = s.source.ResolvedSince(ctx, midnight)
	if err != nil {
		return Counts{}, err
	}
	out.FailedDispatches, err = s.source.FailedDispatchesSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Counts{}, err
	}
	return out, nil
}

// HealthScores recomputes the health grades from open signal counts alone.
func (s *Service) HealthScores(ctx context.Context) (HealthScores, error) {
	buckets, err := s.source.OpenSeverityCounts(ctx)
	if err != nil {
		return HealthScores{}, err
	}

	var financialPenalty, operationalPenalty int
	for _, b := range buckets {
		penalty := severityWeight(b.Severity) * b.Count
		if b.Category == domain.CategoryFinance {
			financialPenalty += penalty
		} else {
			operationalPenalty += penalty
		}
	}

	scores := HealthScores{
		Financial:   clampScore(financialPenalty),
		Operational: clampScore(operationalPenalty),
	}
	scores.Overall = int(financialShare*float64(scores.Financial) + operationalShare*float64(scores.Operational))
	return scores, nil
}

func severityWeight(severity domain.Severity) int {
	switch severity {
	case domain.SeverityCritical:
		return weightCritical
	case domain.SeverityHigh:
		return weightHigh
	case domain.SeverityMedium:
		return weightMedium
	default:
		return weightLow
	}
}

func clampScore(penalty int) int {
	if penalty >= 100 {
		return 0
	}
	return 100 - penalty
}
