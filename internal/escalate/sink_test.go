package escalate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faultline/faultline/internal/taxonomy"
)

func sampleSummary() Summary {
	now := time.Now().UTC()
	return Summary{
		IncidentUUID:    "0f7a2e54-1111-2222-3333-444455556666",
		Code:            "FIN-PAY-GATEWAY-002",
		Module:          "FIN",
		Category:        taxonomy.CategoryPayment,
		Severity:        taxonomy.SeverityCritical,
		Title:           "Payment gateway rejected charge",
		OccurrenceCount: 12,
		UniqueUserCount: 4,
		FirstSeenAt:     now.Add(-time.Hour),
		LastSeenAt:      now,
	}
}

func TestWebhookSinkCreatesTicket(t *testing.T) {
	var gotSecret, gotContentType string
	var gotBody Summary

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Webhook-Secret")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode webhook payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticket_id": "FIX-9001"}`))
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, "hunter2")
	ticketID, err := sink.CreateTicket(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if ticketID != "FIX-9001" {
		t.Errorf("expected ticket FIX-9001, got %q", ticketID)
	}
	if gotSecret != "hunter2" {
		t.Errorf("expected secret header, got %q", gotSecret)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if gotBody.Code != "FIN-PAY-GATEWAY-002" || gotBody.OccurrenceCount != 12 {
		t.Errorf("payload not forwarded faithfully: %+v", gotBody)
	}
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, "")
	_, err := sink.CreateTicket(context.Background(), sampleSummary())
	if err == nil {
		t.Fatal("expected error on 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestWebhookSinkRejectsMissingTicketID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, "")
	_, err := sink.CreateTicket(context.Background(), sampleSummary())
	if err == nil {
		t.Fatal("expected error when response has no ticket_id")
	}
}

func TestLogSinkAlwaysIssuesTicket(t *testing.T) {
	ticketID, err := LogSink{}.CreateTicket(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("LogSink must never fail: %v", err)
	}
	if !strings.HasPrefix(ticketID, "local-") {
		t.Errorf("expected local ticket ID, got %q", ticketID)
	}
}
