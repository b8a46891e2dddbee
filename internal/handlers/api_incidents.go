package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/services"
)

// handleListIncidents handles GET /api/incidents
func (h *APIHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	filter := services.IncidentFilter{
		Severity: r.URL.Query().Get("severity"),
		Module:   r.URL.Query().Get("module"),
		State:    r.URL.Query().Get("state"),
		From:     parseTimeParam(r, "from", time.Time{}),
		To:       parseTimeParam(r, "to", time.Time{}),
	}

	params := api.ParsePagination(r)

	incidents, total, err := h.incidentService.ListIncidents(filter, params.Offset(), params.PerPage)
	if err != nil {
		log.Printf("APIHandler: failed to list incidents: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incidents")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.NewPagedResponse(api.MapIncidents(incidents), params, total))
}

// handleIncidentByUUID handles GET /api/incidents/{uuid}
func (h *APIHandler) handleIncidentByUUID(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	incident, err := h.incidentService.GetIncidentByUUID(uuid)
	if err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.MapIncident(incident))
}

// handleIncidentOccurrences handles GET /api/incidents/{uuid}/occurrences
func (h *APIHandler) handleIncidentOccurrences(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	incident, err := h.incidentService.GetIncidentByUUID(uuid)
	if err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}

	params := api.ParsePagination(r)

	occurrences, total, err := h.incidentService.GetOccurrences(incident.ID, params.Offset(), params.PerPage)
	if err != nil {
		log.Printf("APIHandler: failed to get occurrences for incident %s: %v", uuid, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get occurrences")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.NewPagedResponse(api.MapOccurrences(occurrences), params, total))
}

// handleResolveIncident handles POST /api/incidents/{uuid}/resolve
func (h *APIHandler) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	incident, err := h.incidentService.Resolve(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Incident not found")
			return
		}
		log.Printf("APIHandler: failed to resolve incident %s: %v", uuid, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to resolve incident")
		return
	}

	log.Printf("APIHandler: incident %s resolved", uuid)
	api.RespondJSON(w, http.StatusOK, api.MapIncident(incident))
}
