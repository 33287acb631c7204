// Package scan runs the rule evaluator: it fetches facts per domain, applies
// the rule registry, and hands candidates to the lifecycle service. A failure
// in one domain never aborts the pass; partial results are reported.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"opspulse_backend/internal/events"
	"opspulse_backend/internal/scan/facts"
	"opspulse_backend/internal/scan/rules"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/logger"
)

// Lifecycle is the slice of the lifecycle service the scanner needs.
type Lifecycle interface {
	UpsertSignal(ctx context.Context, cand domain.SignalCandidate) (domain.Signal, bool, error)
	UpsertFollowUp(ctx context.Context, cand domain.FollowUpCandidate) (domain.FollowUpItem, bool, error)
	RefreshStatuses(ctx context.Context) error
}

// SettingsProvider yields the effective settings for a domain.
type SettingsProvider interface {
	Effective(ctx context.Context, category domain.Category) (domain.DomainSettings, error)
}

// Report summarizes one scan pass, including partial failures.
type Report struct {
	StartedAt      time.Time                  `json:"startedAt"`
	FinishedAt     time.Time                  `json:"finishedAt"`
	ScannedDomains []domain.Category          `json:"scannedDomains"`
	SkippedDomains []domain.Category          `json:"skippedDomains,omitempty"`
	FailedDomains  map[domain.Category]string `json:"failedDomains,omitempty"`
	NewSignals     int                        `json:"newSignals"`
	NewFollowUps   int                        `json:"newFollowUps"`
}

// Service is the scan engine.
type Service struct {
	sources   map[domain.Category]facts.Source
	rules     map[domain.Category][]rules.Rule
	settings  SettingsProvider
	lifecycle Lifecycle
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a scan service over the given fact sources.
func New(sources []facts.Source, settings SettingsProvider, lifecycle Lifecycle, bus events.Bus, log *logger.Logger) *Service {
	byCategory := make(map[domain.Category]facts.Source, len(sources))
	for _, src := range sources {
		byCategory[src.Category()] = src
	}

	ruleTable := make(map[domain.Category][]rules.Rule)
	for _, r := range rules.Registry() {
		ruleTable[r.Category] = append(ruleTable[r.Category], r)
	}

	return &Service{
		sources:   byCategory,
		rules:     ruleTable,
		settings:  settings,
		lifecycle: lifecycle,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes one scan pass over the given domains, or all domains when none
// are named. Re-running with unchanged facts is idempotent: dedup in the
// lifecycle service absorbs repeated candidates.
func (s *Service) Run(ctx context.Context, categories []domain.Category) (Report, error) {
	if len(categories) == 0 {
		categories = domain.AllCategories()
	}

	report := Report{
		StartedAt:     s.now(),
		FailedDomains: make(map[domain.Category]string),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, category := range categories {
		category := category
		source, ok := s.sources[category]
		if !ok {
			mu.Lock()
			report.FailedDomains[category] = "no fact source registered"
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			outcome := s.scanDomain(gctx, category, source)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.err != nil:
				report.FailedDomains[category] = outcome.err.Error()
				s.log.ScanFailure(string(category), outcome.err)
			case outcome.skipped:
				report.SkippedDomains = append(report.SkippedDomains, category)
			default:
				report.ScannedDomains = append(report.ScannedDomains, category)
				report.NewSignals += outcome.newSignals
				report.NewFollowUps += outcome.newFollowUps
			}
			return nil
		})
	}
	// Goroutines always return nil; failures live in the report.
	_ = g.Wait()

	if err := s.lifecycle.RefreshStatuses(ctx); err != nil {
		s.log.DatabaseError("refresh statuses after scan", err)
	}

	report.FinishedAt = s.now()
	if len(report.FailedDomains) == 0 {
		report.FailedDomains = nil
	}

	if s.bus != nil {
		failed := make([]string, 0, len(report.FailedDomains))
		for category := range report.FailedDomains {
			failed = append(failed, string(category))
		}
		s.bus.Publish(ctx, events.ScanCompleted{
			BaseEvent:      events.NewBaseEvent(),
			NewSignals:     report.NewSignals,
			NewFollowUps:   report.NewFollowUps,
			FailedDomains:  failed,
			ScannedDomains: len(report.ScannedDomains),
		})
	}
	return report, nil
}

type domainOutcome struct {
	skipped      bool
	newSignals   int
	newFollowUps int
	err          error
}

func (s *Service) scanDomain(ctx context.Context, category domain.Category, source facts.Source) domainOutcome {
	settings, err := s.settings.Effective(ctx, category)
	if err != nil {
		return domainOutcome{err: fmt.Errorf("load settings: %w", err)}
	}
	if !settings.Enabled {
		return domainOutcome{skipped: true}
	}

	set, err := source.Fetch(ctx)
	if err != nil {
		return domainOutcome{err: fmt.Errorf("fetch facts: %w", err)}
	}

	now := s.now()
	var outcome domainOutcome
	for _, rule := range s.rules[category] {
		signalCands, followUpCands := rule.Evaluate(set, settings, now)

		for _, cand := range signalCands {
			if _, created, err := s.lifecycle.UpsertSignal(ctx, cand); err != nil {
				return domainOutcome{err: fmt.Errorf("upsert signal %s: %w", cand.Subject, err)}
			} else if created {
				outcome.newSignals++
			}
		}
		for _, cand := range followUpCands {
			if _, created, err := s.lifecycle.UpsertFollowUp(ctx, cand); err != nil {
				return domainOutcome{err: fmt.Errorf("upsert follow-up %s: %w", cand.Subject, err)}
			} else if created {
				outcome.newFollowUps++
			}
		}
	}
	return outcome
}
