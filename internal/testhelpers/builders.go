// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/services"
	"github.com/faultline/faultline/internal/taxonomy"
)

// ========================================
// Report Builder
// ========================================

// ReportBuilder builds error reports for testing
type ReportBuilder struct {
	report services.Report
}

// NewReportBuilder creates a new report builder with defaults
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{
		report: services.Report{
			Code:       "WO-API-SAVE-001",
			Message:    "work order save failed",
			OccurredAt: time.Now(),
		},
	}
}

// WithCode sets the error code
func (b *ReportBuilder) WithCode(code string) *ReportBuilder {
	b.report.Code = code
	return b
}

// WithMessage sets the message
func (b *ReportBuilder) WithMessage(message string) *ReportBuilder {
	b.report.Message = message
	return b
}

// WithStack sets the stack trace
func (b *ReportBuilder) WithStack(stack string) *ReportBuilder {
	b.report.Stack = stack
	return b
}

// WithHTTPStatus sets the originating HTTP status
func (b *ReportBuilder) WithHTTPStatus(status int) *ReportBuilder {
	b.report.HTTPStatus = status
	return b
}

// WithModule overrides the module derived from the code
func (b *ReportBuilder) WithModule(module string) *ReportBuilder {
	b.report.Module = module
	return b
}

// WithContext merges keys into the report context
func (b *ReportBuilder) WithContext(key string, value interface{}) *ReportBuilder {
	if b.report.Context == nil {
		b.report.Context = map[string]interface{}{}
	}
	b.report.Context[key] = value
	return b
}

// WithUser sets the affected user in the context
func (b *ReportBuilder) WithUser(userID string) *ReportBuilder {
	return b.WithContext("user_id", userID)
}

// WithTenant sets the tenant in the context
func (b *ReportBuilder) WithTenant(tenantID string) *ReportBuilder {
	return b.WithContext("tenant_id", tenantID)
}

// WithCorrelationID sets the correlation ID
func (b *ReportBuilder) WithCorrelationID(id string) *ReportBuilder {
	b.report.CorrelationID = id
	return b
}

// At sets the occurrence time
func (b *ReportBuilder) At(t time.Time) *ReportBuilder {
	b.report.OccurredAt = t
	return b
}

// Build returns the constructed report
func (b *ReportBuilder) Build() services.Report {
	return b.report
}

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds Incident rows for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder with defaults. The
// incident is active: its fingerprint is installed as the active key.
func NewIncidentBuilder() *IncidentBuilder {
	fp := "fp-" + uuid.New().String()
	now := time.Now()
	return &IncidentBuilder{
		incident: database.Incident{
			UUID:            uuid.New().String(),
			Fingerprint:     fp,
			ActiveKey:       &fp,
			Code:            "WO-API-SAVE-001",
			Module:          "WO",
			Category:        taxonomy.CategoryAPI,
			Severity:        taxonomy.SeverityError,
			Title:           "Work order save failed",
			State:           database.IncidentStateOpen,
			OccurrenceCount: 1,
			FirstSeenAt:     now,
			LastSeenAt:      now,
		},
	}
}

// WithFingerprint sets the fingerprint and active key together
func (b *IncidentBuilder) WithFingerprint(fp string) *IncidentBuilder {
	b.incident.Fingerprint = fp
	if b.incident.ActiveKey != nil {
		b.incident.ActiveKey = &fp
	}
	return b
}

// WithCode sets the error code
func (b *IncidentBuilder) WithCode(code string) *IncidentBuilder {
	b.incident.Code = code
	return b
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity taxonomy.Severity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// WithState sets the lifecycle state
func (b *IncidentBuilder) WithState(state database.IncidentState) *IncidentBuilder {
	b.incident.State = state
	return b
}

// WithOccurrences sets the occurrence count
func (b *IncidentBuilder) WithOccurrences(n int64) *IncidentBuilder {
	b.incident.OccurrenceCount = n
	return b
}

// Retired clears the active key, making the incident a historical record
func (b *IncidentBuilder) Retired() *IncidentBuilder {
	b.incident.ActiveKey = nil
	return b
}

// QueuedForEscalation marks the threshold as crossed
func (b *IncidentBuilder) QueuedForEscalation() *IncidentBuilder {
	now := time.Now()
	b.incident.EscalationQueuedAt = &now
	return b
}

// SeenBetween sets the first and last seen timestamps
func (b *IncidentBuilder) SeenBetween(first, last time.Time) *IncidentBuilder {
	b.incident.FirstSeenAt = first
	b.incident.LastSeenAt = last
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}

// ========================================
// Settings Builder
// ========================================

// SettingsBuilder builds EscalationSettings rows for testing
type SettingsBuilder struct {
	settings database.EscalationSettings
}

// NewSettingsBuilder creates a builder seeded with the defaults
func NewSettingsBuilder() *SettingsBuilder {
	return &SettingsBuilder{settings: *database.NewDefaultEscalationSettings()}
}

// WithWindowHours sets the aggregation window
func (b *SettingsBuilder) WithWindowHours(hours int) *SettingsBuilder {
	b.settings.WindowHours = hours
	return b
}

// WithErrorThreshold sets the ERROR escalation threshold
func (b *SettingsBuilder) WithErrorThreshold(n int) *SettingsBuilder {
	b.settings.ErrorThreshold = n
	return b
}

// WithCriticalThreshold sets the CRITICAL escalation threshold
func (b *SettingsBuilder) WithCriticalThreshold(n int) *SettingsBuilder {
	b.settings.CriticalThreshold = n
	return b
}

// WithUserCap sets the unique user tracking cap
func (b *SettingsBuilder) WithUserCap(n int) *SettingsBuilder {
	b.settings.UniqueUserCap = n
	return b
}

// WithWarnEscalates enables WARN escalation
func (b *SettingsBuilder) WithWarnEscalates() *SettingsBuilder {
	b.settings.WarnEscalates = true
	return b
}

// Build returns the constructed settings
func (b *SettingsBuilder) Build() database.EscalationSettings {
	return b.settings
}
