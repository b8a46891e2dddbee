package api

import (
	"time"

	"github.com/faultline/faultline/internal/database"
)

// ReportRequest is the ingest body submitted by application call sites.
// Everything in it is untrusted: message, stack and context go through
// redaction before they touch storage.
type ReportRequest struct {
	Code          string                 `json:"code" validate:"required,max=64"`
	Message       string                 `json:"message" validate:"required,max=8192"`
	Stack         string                 `json:"stack"`
	HTTPStatus    int                    `json:"http_status" validate:"omitempty,gte=100,lte=599"`
	Module        string                 `json:"module" validate:"omitempty,max=16"`
	Context       map[string]interface{} `json:"context"`
	CorrelationID string                 `json:"correlation_id" validate:"omitempty,max=128"`
	OccurredAt    *time.Time             `json:"occurred_at"`
}

// IncidentResponse is the management API view of an incident.
type IncidentResponse struct {
	UUID            string     `json:"uuid"`
	Fingerprint     string     `json:"fingerprint"`
	Code            string     `json:"code"`
	Module          string     `json:"module"`
	Category        string     `json:"category"`
	Severity        string     `json:"severity"`
	Title           string     `json:"title"`
	State           string     `json:"state"`
	Active          bool       `json:"active"`
	OccurrenceCount int64      `json:"occurrence_count"`
	UniqueUserCount int64      `json:"unique_user_count"`
	UserCapReached  bool       `json:"user_cap_reached"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	TicketID        *string    `json:"ticket_id,omitempty"`
	TicketFailed    bool       `json:"ticket_failed"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// OccurrenceResponse is the management API view of one occurrence.
// Message, stack and context were redacted before persistence.
type OccurrenceResponse struct {
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	HTTPStatus    int                    `json:"http_status,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	UserID        string                 `json:"user_id,omitempty"`
	TenantID      string                 `json:"tenant_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// EscalationSettingsPayload is the request body for settings updates.
type EscalationSettingsPayload struct {
	Enabled                bool `json:"enabled"`
	WindowHours            int  `json:"window_hours" validate:"gte=1,lte=168"`
	CriticalThreshold      int  `json:"critical_threshold" validate:"gte=1"`
	ErrorThreshold         int  `json:"error_threshold" validate:"gte=1"`
	ErrorWindowMinutes     int  `json:"error_window_minutes" validate:"gte=1"`
	WarnEscalates          bool `json:"warn_escalates"`
	UniqueUserCap          int  `json:"unique_user_cap" validate:"gte=1"`
	DispatchMaxAttempts    int  `json:"dispatch_max_attempts" validate:"gte=1,lte=20"`
	DispatchBackoffSeconds int  `json:"dispatch_backoff_seconds" validate:"gte=1,lte=300"`
}

// MapIncident converts a database incident to its API representation.
func MapIncident(inc *database.Incident) IncidentResponse {
	return IncidentResponse{
		UUID:            inc.UUID,
		Fingerprint:     inc.Fingerprint,
		Code:            inc.Code,
		Module:          inc.Module,
		Category:        string(inc.Category),
		Severity:        string(inc.Severity),
		Title:           inc.Title,
		State:           string(inc.State),
		Active:          inc.IsActive(),
		OccurrenceCount: inc.OccurrenceCount,
		UniqueUserCount: inc.UniqueUserCount,
		UserCapReached:  inc.UserCapReached,
		FirstSeenAt:     inc.FirstSeenAt,
		LastSeenAt:      inc.LastSeenAt,
		TicketID:        inc.TicketID,
		TicketFailed:    inc.TicketFailed,
		ResolvedAt:      inc.ResolvedAt,
	}
}

// MapIncidents converts a list of incidents.
func MapIncidents(incidents []database.Incident) []IncidentResponse {
	out := make([]IncidentResponse, 0, len(incidents))
	for i := range incidents {
		out = append(out, MapIncident(&incidents[i]))
	}
	return out
}

// MapOccurrence converts a database occurrence to its API representation.
// The stored stack is intentionally omitted from API responses.
func MapOccurrence(occ *database.Occurrence) OccurrenceResponse {
	return OccurrenceResponse{
		Code:          occ.Code,
		Message:       occ.Message,
		HTTPStatus:    occ.HTTPStatus,
		Context:       occ.Context,
		CorrelationID: occ.CorrelationID,
		UserID:        occ.UserID,
		TenantID:      occ.TenantID,
		OccurredAt:    occ.OccurredAt,
	}
}

// MapOccurrences converts a list of occurrences.
func MapOccurrences(occurrences []database.Occurrence) []OccurrenceResponse {
	out := make([]OccurrenceResponse, 0, len(occurrences))
	for i := range occurrences {
		out = append(out, MapOccurrence(&occurrences[i]))
	}
	return out
}

// ApplySettings copies a validated payload onto the settings row.
func ApplySettings(settings *database.EscalationSettings, p *EscalationSettingsPayload) {
	settings.Enabled = p.Enabled
	settings.WindowHours = p.WindowHours
	settings.CriticalThreshold = p.CriticalThreshold
	settings.ErrorThreshold = p.ErrorThreshold
	settings.ErrorWindowMinutes = p.ErrorWindowMinutes
	settings.WarnEscalates = p.WarnEscalates
	settings.UniqueUserCap = p.UniqueUserCap
	settings.DispatchMaxAttempts = p.DispatchMaxAttempts
	settings.DispatchBackoffSeconds = p.DispatchBackoffSeconds
}
