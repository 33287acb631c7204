package transport

import (
	"time"

	"opspulse_backend/internal/signals/domain"
)

// EscalationStepRequest is one ladder step in an update request.
type EscalationStepRequest struct {
	OffsetDays      int    `json:"offsetDays" validate:"min=0"`
	MessageTemplate string `json:"messageTemplate" validate:"required"`
	ActionTier      string `json:"actionTier" validate:"required,oneof=ai_call ai_text manual_call manual_text"`
}

// UpdateSettingsRequest is the request body for replacing a domain's settings.
// Version must match the stored version; 0 creates the first stored row.
type UpdateSettingsRequest struct {
	Enabled             bool                    `json:"enabled"`
	Thresholds          map[string]float64      `json:"thresholds"`
	SeverityThreshold   string                  `json:"severityThreshold" validate:"required,oneof=critical high medium low"`
	AutoCreateTasks     bool                    `json:"autoCreateTasks"`
	AutoAssignRoutes    bool                    `json:"autoAssignRoutes"`
	AutoSendComms       bool                    `json:"autoSendCommunications"`
	AutoFinancial       bool                    `json:"autoFinancialCorrections"`
	EscalationSteps     []EscalationStepRequest `json:"escalationSteps" validate:"required,min=1,dive"`
	EscalationAfterDays int                     `json:"escalationAfterDays" validate:"required,min=3"`
	Version             int64                   `json:"version" validate:"min=0"`
}

// ToDomain maps the request onto a settings document for the category.
func (r UpdateSettingsRequest) ToDomain(category domain.Category) domain.DomainSettings {
	steps := make([]domain.EscalationStep, len(r.EscalationSteps))
	for i, s := range r.EscalationSteps {
		steps[i] = domain.EscalationStep{
			OffsetDays:      s.OffsetDays,
			MessageTemplate: s.MessageTemplate,
			ActionTier:      domain.ActionType(s.ActionTier),
		}
	}
	thresholds := r.Thresholds
	if thresholds == nil {
		thresholds = map[string]float64{}
	}
	return domain.DomainSettings{
		Category:            category,
		Enabled:             r.Enabled,
		Thresholds:          thresholds,
		SeverityThreshold:   domain.Severity(r.SeverityThreshold),
		AutoCreateTasks:     r.AutoCreateTasks,
		AutoAssignRoutes:    r.AutoAssignRoutes,
		AutoSendComms:       r.AutoSendComms,
		AutoFinancial:       r.AutoFinancial,
		EscalationSteps:     steps,
		EscalationAfterDays: r.EscalationAfterDays,
	}
}

// SettingsResponse is the response body for a domain's settings.
type SettingsResponse struct {
	Category            domain.Category         `json:"category"`
	Enabled             bool                    `json:"enabled"`
	Thresholds          map[string]float64      `json:"thresholds"`
	SeverityThreshold   domain.Severity         `json:"severityThreshold"`
	AutoCreateTasks     bool                    `json:"autoCreateTasks"`
	AutoAssignRoutes    bool                    `json:"autoAssignRoutes"`
	AutoSendComms       bool                    `json:"autoSendCommunications"`
	AutoFinancial       bool                    `json:"autoFinancialCorrections"`
	EscalationSteps     []domain.EscalationStep `json:"escalationSteps"`
	EscalationAfterDays int                     `json:"escalationAfterDays"`
	Version             int64                   `json:"version"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

// FromSettings maps a settings document to its response shape.
func FromSettings(s domain.DomainSettings) SettingsResponse {
	return SettingsResponse{
		Category:            s.Category,
		Enabled:             s.Enabled,
		Thresholds:          s.Thresholds,
		SeverityThreshold:   s.SeverityThreshold,
		AutoCreateTasks:     s.AutoCreateTasks,
		AutoAssignRoutes:    s.AutoAssignRoutes,
		AutoSendComms:       s.AutoSendComms,
		AutoFinancial:       s.AutoFinancial,
		EscalationSteps:     s.EscalationSteps,
		EscalationAfterDays: s.EscalationAfterDays,
		Version:             s.Version,
		UpdatedAt:           s.UpdatedAt,
	}
}

// FromSettingsList maps a slice of settings documents.
func FromSettingsList(list []domain.DomainSettings) []SettingsResponse {
	out := make([]SettingsResponse, len(list))
	for i, s := range list {
		out[i] = FromSettings(s)
	}
	return out
}
