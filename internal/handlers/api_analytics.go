package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/faultline/faultline/internal/api"
)

// handleRollups handles GET /api/analytics/rollups
// Query parameters: from, to (unix seconds), bucket (hour or day).
func (h *APIHandler) handleRollups(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := parseTimeParam(r, "from", now.Add(-24*time.Hour))
	to := parseTimeParam(r, "to", now)

	bucket := time.Hour
	switch r.URL.Query().Get("bucket") {
	case "", "hour":
	case "day":
		bucket = 24 * time.Hour
	default:
		api.RespondError(w, http.StatusBadRequest, "bucket must be 'hour' or 'day'")
		return
	}

	if !to.After(from) {
		api.RespondError(w, http.StatusBadRequest, "'to' must be after 'from'")
		return
	}

	rows, err := h.analyticsService.Rollups(from, to, bucket)
	if err != nil {
		log.Printf("APIHandler: failed to compute rollups: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute rollups")
		return
	}

	api.RespondJSON(w, http.StatusOK, rows)
}

// handleImpact handles GET /api/analytics/impact
func (h *APIHandler) handleImpact(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := parseTimeParam(r, "from", now.Add(-24*time.Hour))
	to := parseTimeParam(r, "to", now)

	if !to.After(from) {
		api.RespondError(w, http.StatusBadRequest, "'to' must be after 'from'")
		return
	}

	rows, err := h.analyticsService.Impact(from, to)
	if err != nil {
		log.Printf("APIHandler: failed to compute impact: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute impact")
		return
	}

	api.RespondJSON(w, http.StatusOK, rows)
}

// handleSpread handles GET /api/analytics/spread
func (h *APIHandler) handleSpread(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := parseTimeParam(r, "from", now.Add(-7*24*time.Hour))
	to := parseTimeParam(r, "to", now)

	if !to.After(from) {
		api.RespondError(w, http.StatusBadRequest, "'to' must be after 'from'")
		return
	}

	rows, err := h.analyticsService.FingerprintSpread(from, to)
	if err != nil {
		log.Printf("APIHandler: failed to compute fingerprint spread: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute fingerprint spread")
		return
	}

	api.RespondJSON(w, http.StatusOK, rows)
}
