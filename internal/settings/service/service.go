// Package service implements settings validation and the effective-settings
// view the scanner and dispatcher consume.
package service

import (
	"context"
	"fmt"

	"opspulse_backend/internal/settings/repository"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
	"opspulse_backend/platform/logger"
)

// Service manages per-domain automation settings.
type Service struct {
	store    repository.Store
	defaults map[domain.Category]domain.DomainSettings
	log      *logger.Logger
}

// New creates a new settings service.
func New(store repository.Store, defaults map[domain.Category]domain.DomainSettings, log *logger.Logger) *Service {
	return &Service{store: store, defaults: defaults, log: log}
}

// Seed inserts the factory defaults for every category that has no stored
// row. Safe to run on every boot.
func (s *Service) Seed(ctx context.Context) error {
	for _, category := range domain.AllCategories() {
		if _, err := s.store.Get(ctx, category); err == nil {
			continue
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return fmt.Errorf("seed settings: %w", err)
		}

		if _, err := s.store.Save(ctx, s.defaults[category], 0); err != nil {
			// Conflict means another instance seeded first.
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return fmt.Errorf("seed settings: %w", err)
		}
	}
	return nil
}

// Get returns the stored settings for a category, or the factory defaults
// when none are stored yet.
func (s *Service) Get(ctx context.Context, category domain.Category) (domain.DomainSettings, error) {
	if !category.Valid() {
		return domain.DomainSettings{}, apperr.Validation("unknown category: " + string(category))
	}

	settings, err := s.store.Get(ctx, category)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return s.defaults[category], nil
		}
		return domain.DomainSettings{}, err
	}
	return settings, nil
}

// List returns settings for every category, stored or default.
func (s *Service) List(ctx context.Context) ([]domain.DomainSettings, error) {
	out := make([]domain.DomainSettings, 0, len(domain.AllCategories()))
	for _, category := range domain.AllCategories() {
		settings, err := s.Get(ctx, category)
		if err != nil {
			return nil, err
		}
		out = append(out, settings)
	}
	return out, nil
}

// Update validates and persists new settings for a category. The caller's
// expectedVersion guards against concurrent edits; 0 means the category has
// never been stored.
func (s *Service) Update(ctx context.Context, settings domain.DomainSettings, expectedVersion int64) (domain.DomainSettings, error) {
	if err := Validate(settings); err != nil {
		return domain.DomainSettings{}, err
	}
	return s.store.Save(ctx, settings, expectedVersion)
}

// Effective returns the settings the scanner and dispatcher must obey for a
// category. Stored settings that fail validation render the domain disabled
// rather than letting a bad ladder drive automated outbound actions.
func (s *Service) Effective(ctx context.Context, category domain.Category) (domain.DomainSettings, error) {
	settings, err := s.Get(ctx, category)
	if err != nil {
		return domain.DomainSettings{}, err
	}

	if err := Validate(settings); err != nil {
		s.log.Warn("invalid stored settings, domain treated as disabled",
			"category", category, "error", err)
		settings.Enabled = false
	}
	return settings, nil
}

// Validate checks a settings document for internal consistency.
func Validate(s domain.DomainSettings) error {
	if !s.Category.Valid() {
		return apperr.Validation("unknown category: " + string(s.Category))
	}
	if s.SeverityThreshold.Rank() == 0 {
		return apperr.Validation("invalid severity threshold: " + string(s.SeverityThreshold))
	}
	if s.EscalationAfterDays < domain.MinEscalationAfterDays {
		return apperr.Validation(fmt.Sprintf(
			"escalation_after_days must be at least %d, got %d",
			domain.MinEscalationAfterDays, s.EscalationAfterDays))
	}
	for name, v := range s.Thresholds {
		if v < 0 {
			return apperr.Validation(fmt.Sprintf("threshold %q must not be negative", name))
		}
	}
	if len(s.EscalationSteps) == 0 {
		return apperr.Validation("escalation ladder must have at least one step")
	}
	prev := -1
	for i, step := range s.EscalationSteps {
		if step.OffsetDays < 0 {
			return apperr.Validation(fmt.Sprintf("step %d: offset_days must not be negative", i))
		}
		if step.OffsetDays <= prev && i > 0 {
			return apperr.Validation(fmt.Sprintf("step %d: offsets must strictly increase", i))
		}
		switch step.ActionTier {
		case domain.ActionAICall, domain.ActionAIText, domain.ActionManualCall, domain.ActionManualText:
		default:
			return apperr.Validation(fmt.Sprintf("step %d: unknown action tier %q", i, step.ActionTier))
		}
		if step.MessageTemplate == "" {
			return apperr.Validation(fmt.Sprintf("step %d: message template required", i))
		}
		prev = step.OffsetDays
	}
	return nil
}
