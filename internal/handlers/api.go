package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/faultline/faultline/internal/services"
)

// APIHandler handles management API endpoints for the dashboard and ops tooling
type APIHandler struct {
	incidentService  *services.IncidentService
	analyticsService *services.AnalyticsService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(incidentService *services.IncidentService, analyticsService *services.AnalyticsService) *APIHandler {
	return &APIHandler{
		incidentService:  incidentService,
		analyticsService: analyticsService,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Incidents
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("GET /api/incidents/{uuid}", h.handleIncidentByUUID)
	mux.HandleFunc("GET /api/incidents/{uuid}/occurrences", h.handleIncidentOccurrences)
	mux.HandleFunc("POST /api/incidents/{uuid}/resolve", h.handleResolveIncident)

	// Analytics
	mux.HandleFunc("GET /api/analytics/rollups", h.handleRollups)
	mux.HandleFunc("GET /api/analytics/impact", h.handleImpact)
	mux.HandleFunc("GET /api/analytics/spread", h.handleSpread)

	// Escalation settings
	mux.HandleFunc("GET /api/settings/escalation", h.handleGetEscalationSettings)
	mux.HandleFunc("PUT /api/settings/escalation", h.handleUpdateEscalationSettings)
}

// parseTimeParam parses a query parameter as unix seconds.
func parseTimeParam(r *http.Request, name string, fallback time.Time) time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}
