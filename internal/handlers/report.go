package handlers

import (
	"log"
	"net/http"
	"sort"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/problem"
	"github.com/faultline/faultline/internal/redact"
	"github.com/faultline/faultline/internal/services"
	"github.com/faultline/faultline/internal/taxonomy"
)

// Error codes raised by the ingest surface itself.
const (
	codeMalformedReport = "CORE-VAL-REPORT-001"
	codeIngestFailed    = "CORE-API-INGEST-001"
)

// ReportHandler handles the error ingest endpoint. Every response it writes
// is problem+json, including its own failures: reporting an error must never
// surface a second, unstructured error to the caller.
type ReportHandler struct {
	incidentService *services.IncidentService
	registry        *taxonomy.Registry
}

// NewReportHandler creates a new report handler
func NewReportHandler(incidentService *services.IncidentService, registry *taxonomy.Registry) *ReportHandler {
	return &ReportHandler{
		incidentService: incidentService,
		registry:        registry,
	}
}

// SetupRoutes sets up the ingest route
func (h *ReportHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/errors/report", h.handleReport)
}

// handleReport handles POST /api/errors/report
func (h *ReportHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Last-resort guard: a panic anywhere below still produces a
	// well-formed problem body.
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ReportHandler: panic while processing report: %v", rec)
			h.writeIngestFailure(w, correlationID)
		}
	}()

	if r.Method != http.MethodPost {
		cls := h.registry.Classify(codeMalformedReport, http.StatusMethodNotAllowed, "")
		problem.Write(w, problem.Render(cls, codeMalformedReport, "Method not allowed", r.URL.Path, correlationID, nil))
		return
	}

	var req api.ReportRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cls := h.registry.Classify(codeMalformedReport, 0, "")
		problem.Write(w, problem.Render(cls, codeMalformedReport, err.Error(), r.URL.Path, correlationID, nil))
		return
	}

	if fieldErrors := api.Validate(req); fieldErrors != nil {
		cls := h.registry.Classify(codeMalformedReport, 0, "")
		problem.Write(w, problem.Render(cls, codeMalformedReport, "Report validation failed", r.URL.Path, correlationID, mapFieldErrors(fieldErrors)))
		return
	}

	if req.CorrelationID != "" {
		correlationID = req.CorrelationID
	}

	report := services.Report{
		Code:          req.Code,
		Message:       req.Message,
		Stack:         req.Stack,
		HTTPStatus:    req.HTTPStatus,
		Module:        req.Module,
		Context:       req.Context,
		CorrelationID: correlationID,
	}
	if req.OccurredAt != nil {
		report.OccurredAt = *req.OccurredAt
	}

	snapshot, err := h.incidentService.RecordOccurrence(report)
	if err != nil {
		log.Printf("ReportHandler: failed to record occurrence for code %s: %v", req.Code, err)
		h.writeIngestFailure(w, correlationID)
		return
	}

	w.Header().Set(middleware.CorrelationIDHeader, snapshot.CorrelationID)
	detail := redact.Text(req.Message)
	instance := "/api/incidents/" + snapshot.Incident.UUID
	problem.Write(w, problem.Render(snapshot.Classification, snapshot.Incident.Code, detail, instance, snapshot.CorrelationID, nil))
}

// writeIngestFailure responds with the generic ingest failure problem.
func (h *ReportHandler) writeIngestFailure(w http.ResponseWriter, correlationID string) {
	cls := h.registry.Classify(codeIngestFailed, 0, "")
	problem.Write(w, problem.Render(cls, codeIngestFailed, "The error report could not be processed", "/api/errors/report", correlationID, nil))
}

// mapFieldErrors converts validator output to problem field errors in a
// stable order.
func mapFieldErrors(fieldErrors map[string]string) []problem.FieldError {
	fields := make([]string, 0, len(fieldErrors))
	for f := range fieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]problem.FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, problem.FieldError{Field: f, Message: fieldErrors[f]})
	}
	return out
}
