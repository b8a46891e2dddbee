package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/handlers"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/problem"
	"github.com/faultline/faultline/internal/services"
	"github.com/faultline/faultline/internal/taxonomy"
	"github.com/faultline/faultline/internal/testhelpers"
)

// newTestServer wires the full handler surface onto a mux the way main does,
// including the correlation middleware the handlers rely on.
func newTestServer(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	registry := taxonomy.NewRegistry()
	incidentService := services.NewIncidentService(db, registry)
	analyticsService := services.NewAnalyticsService(db)

	mux := http.NewServeMux()
	handlers.NewHTTPHandler().SetupRoutes(mux)
	handlers.NewReportHandler(incidentService, registry).SetupRoutes(mux)
	handlers.NewAPIHandler(incidentService, analyticsService).SetupRoutes(mux)

	return middleware.CorrelationIDMiddleware(mux), db
}

func TestReportReturnsProblemResponse(t *testing.T) {
	handler, db := newTestServer(t)

	ctx := testhelpers.NewHTTPTestContext(t, "POST", "/api/errors/report", nil).
		WithJSONBody(map[string]interface{}{
			"code":    "WO-API-SAVE-001",
			"message": "work order save failed for tenant@example.com",
		}).
		Execute(handler)

	ctx.AssertStatus(500).
		AssertHeader("Content-Type", problem.ContentType)

	var body problem.Details
	ctx.DecodeJSON(&body)

	if body.Type != "https://errors.fixzit.app/wo-api-save-001" {
		t.Errorf("type = %q", body.Type)
	}
	if body.Code != "WO-API-SAVE-001" {
		t.Errorf("code = %q", body.Code)
	}
	if body.Title != "Work order save failed" {
		t.Errorf("title = %q", body.Title)
	}
	if strings.Contains(body.Detail, "tenant@example.com") {
		t.Errorf("detail leaked an email address: %q", body.Detail)
	}
	if !strings.Contains(body.Detail, "[EMAIL_REDACTED]") {
		t.Errorf("detail should contain the email placeholder: %q", body.Detail)
	}
	if body.TraceID == "" {
		t.Error("expected a trace ID")
	}
	if !strings.HasPrefix(body.Instance, "/api/incidents/") {
		t.Errorf("instance = %q", body.Instance)
	}
	if got := ctx.Recorder.Header().Get(middleware.CorrelationIDHeader); got != body.TraceID {
		t.Errorf("correlation header %q does not match trace ID %q", got, body.TraceID)
	}

	var count int64
	db.Model(&database.Incident{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 incident, got %d", count)
	}
}

func TestReportEchoesCallerCorrelationID(t *testing.T) {
	handler, _ := newTestServer(t)

	ctx := testhelpers.NewHTTPTestContext(t, "POST", "/api/errors/report", nil).
		WithJSONBody(map[string]interface{}{
			"code":    "WO-API-SAVE-001",
			"message": "save failed",
		}).
		WithHeader(middleware.CorrelationIDHeader, "req-777").
		Execute(handler)

	var body problem.Details
	ctx.DecodeJSON(&body)
	if body.TraceID != "req-777" {
		t.Errorf("trace ID = %q, want req-777", body.TraceID)
	}
}

func TestReportMalformedJSON(t *testing.T) {
	handler, _ := newTestServer(t)

	ctx := testhelpers.NewHTTPTestContext(t, "POST", "/api/errors/report",
		strings.NewReader(`{"code": `)).
		Execute(handler)

	ctx.AssertStatus(400)

	var body problem.Details
	ctx.DecodeJSON(&body)
	if body.Code != "CORE-VAL-REPORT-001" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestReportValidationErrors(t *testing.T) {
	handler, _ := newTestServer(t)

	ctx := testhelpers.NewHTTPTestContext(t, "POST", "/api/errors/report", nil).
		WithJSONBody(map[string]interface{}{
			"message": "missing the code",
		}).
		Execute(handler)

	ctx.AssertStatus(400)

	var body problem.Details
	ctx.DecodeJSON(&body)
	if body.Code != "CORE-VAL-REPORT-001" {
		t.Errorf("code = %q", body.Code)
	}
	if len(body.Errors) != 1 || body.Errors[0].Field != "code" {
		t.Errorf("field errors = %+v", body.Errors)
	}
}

func TestReportUnknownCodeStillAccepted(t *testing.T) {
	handler, db := newTestServer(t)

	ctx := testhelpers.NewHTTPTestContext(t, "POST", "/api/errors/report", nil).
		WithJSONBody(map[string]interface{}{
			"code":    "WO-XYZ-NOVEL-999",
			"message": "something new broke",
		}).
		Execute(handler)

	ctx.AssertStatus(500)

	var body problem.Details
	ctx.DecodeJSON(&body)
	if body.Type != "about:blank" {
		t.Errorf("unregistered code must render about:blank, got %q", body.Type)
	}
	if body.Code != "WO-XYZ-NOVEL-999" {
		t.Errorf("code = %q", body.Code)
	}

	var inc database.Incident
	if err := db.Where("code = ?", "WO-XYZ-NOVEL-999").First(&inc).Error; err != nil {
		t.Fatalf("unknown-code incident was not stored: %v", err)
	}
	if inc.Module != "WO" {
		t.Errorf("module = %q, want WO", inc.Module)
	}
}

func TestReportMethodNotAllowed(t *testing.T) {
	handler, _ := newTestServer(t)

	testhelpers.NewHTTPTestContext(t, "GET", "/api/errors/report", nil).
		Execute(handler).
		AssertStatus(405).
		AssertBodyContains("CORE-VAL-REPORT-001")
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	testhelpers.NewHTTPTestContext(t, "GET", "/health", nil).
		Execute(handler).
		AssertStatus(200).
		AssertBodyContains(`"status"`)
}
