package handlers

import (
	"log"
	"net/http"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
)

// handleGetEscalationSettings handles GET /api/settings/escalation
func (h *APIHandler) handleGetEscalationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := database.GetOrCreateEscalationSettings(database.GetDB())
	if err != nil {
		log.Printf("APIHandler: failed to get escalation settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get escalation settings")
		return
	}

	api.RespondJSON(w, http.StatusOK, settings)
}

// handleUpdateEscalationSettings handles PUT /api/settings/escalation
func (h *APIHandler) handleUpdateEscalationSettings(w http.ResponseWriter, r *http.Request) {
	var payload api.EscalationSettingsPayload
	if err := api.DecodeJSON(r, &payload); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if fieldErrors := api.Validate(payload); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	db := database.GetDB()
	settings, err := database.GetOrCreateEscalationSettings(db)
	if err != nil {
		log.Printf("APIHandler: failed to get escalation settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get escalation settings")
		return
	}

	api.ApplySettings(settings, &payload)

	if err := database.UpdateEscalationSettings(db, settings); err != nil {
		log.Printf("APIHandler: failed to update escalation settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to update escalation settings")
		return
	}

	log.Printf("APIHandler: escalation settings updated")
	api.RespondJSON(w, http.StatusOK, settings)
}
