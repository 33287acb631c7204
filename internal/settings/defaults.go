// Package settings provides the per-domain automation settings module,
// including the embedded factory defaults every deployment starts from.
package settings

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"opspulse_backend/internal/signals/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultsFile struct {
	Defaults defaultEntry            `yaml:"defaults"`
	Domains  map[string]defaultEntry `yaml:"domains"`
}

type defaultEntry struct {
	Enabled             *bool                   `yaml:"enabled"`
	SeverityThreshold   string                  `yaml:"severity_threshold"`
	EscalationAfterDays int                     `yaml:"escalation_after_days"`
	AutoCreateTasks     bool                    `yaml:"auto_create_tasks"`
	AutoAssignRoutes    bool                    `yaml:"auto_assign_routes"`
	AutoSendComms       bool                    `yaml:"auto_send_communications"`
	AutoFinancial       bool                    `yaml:"auto_financial_corrections"`
	Thresholds          map[string]float64      `yaml:"thresholds"`
	EscalationSteps     []domain.EscalationStep `yaml:"escalation_steps"`
}

// DefaultSettings parses the embedded defaults and returns one DomainSettings
// per known category. A domain absent from the file inherits the shared
// default block.
func DefaultSettings() (map[domain.Category]domain.DomainSettings, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &file); err != nil {
		return nil, fmt.Errorf("parse default settings: %w", err)
	}

	out := make(map[domain.Category]domain.DomainSettings, len(domain.AllCategories()))
	for _, category := range domain.AllCategories() {
		entry, ok := file.Domains[string(category)]
		if !ok {
			entry = file.Defaults
		}
		out[category] = entry.toSettings(category, file.Defaults)
	}
	return out, nil
}

func (e defaultEntry) toSettings(category domain.Category, base defaultEntry) domain.DomainSettings {
	settings := domain.DomainSettings{
		Category:            category,
		Enabled:             true,
		Thresholds:          e.Thresholds,
		SeverityThreshold:   domain.Severity(e.SeverityThreshold),
		AutoCreateTasks:     e.AutoCreateTasks,
		AutoAssignRoutes:    e.AutoAssignRoutes,
		AutoSendComms:       e.AutoSendComms,
		AutoFinancial:       e.AutoFinancial,
		EscalationSteps:     e.EscalationSteps,
		EscalationAfterDays: e.EscalationAfterDays,
	}
	if e.Enabled != nil {
		settings.Enabled = *e.Enabled
	}
	if settings.SeverityThreshold == "" {
		settings.SeverityThreshold = domain.Severity(base.SeverityThreshold)
	}
	if settings.EscalationAfterDays == 0 {
		settings.EscalationAfterDays = base.EscalationAfterDays
	}
	if len(settings.EscalationSteps) == 0 {
		settings.EscalationSteps = base.EscalationSteps
	}
	if settings.Thresholds == nil {
		settings.Thresholds = map[string]float64{}
	}
	return settings
}
