// Package escalate turns threshold-crossing incidents into external tickets.
// The concrete ticketing system is an external collaborator behind the
// TicketSink interface; this package only depends on that contract.
package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/faultline/faultline/internal/taxonomy"
	"github.com/faultline/faultline/internal/utils"
)

// Summary is the incident digest handed to the ticket sink. All free-text
// fields are already redacted by the incident store.
type Summary struct {
	IncidentUUID    string            `json:"incident_uuid"`
	Code            string            `json:"code"`
	Module          string            `json:"module"`
	Category        taxonomy.Category `json:"category"`
	Severity        taxonomy.Severity `json:"severity"`
	Title           string            `json:"title"`
	OccurrenceCount int64             `json:"occurrence_count"`
	UniqueUserCount int64             `json:"unique_user_count"`
	FirstSeenAt     time.Time         `json:"first_seen_at"`
	LastSeenAt      time.Time         `json:"last_seen_at"`
}

// TicketSink creates a ticket for an escalating incident and returns its ID.
type TicketSink interface {
	CreateTicket(ctx context.Context, summary Summary) (string, error)
}

// WebhookSink posts incident summaries as JSON to a generic webhook and
// expects {"ticket_id": "..."} back.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSink creates a webhook-backed ticket sink
func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateTicket posts the summary to the configured webhook.
func (s *WebhookSink) CreateTicket(ctx context.Context, summary Summary) (string, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Webhook-Secret", s.secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ticket webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read ticket webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ticket webhook returned status %d", resp.StatusCode)
	}

	var out struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.TicketID == "" {
		return "", fmt.Errorf("ticket webhook returned no ticket_id")
	}
	return out.TicketID, nil
}

// LogSink is the fallback sink used when no webhook is configured. It logs
// the summary and fabricates a local ticket ID so escalation state still
// advances in development setups.
type LogSink struct{}

// CreateTicket logs the summary and returns a generated ticket ID.
func (LogSink) CreateTicket(_ context.Context, summary Summary) (string, error) {
	id := "local-" + uuid.New().String()
	log.Printf("LogSink: ticket %s for incident %s (%s, %s, %s occurrences over %s): %s",
		id, summary.IncidentUUID, summary.Code, summary.Severity,
		utils.FormatNumber(int(summary.OccurrenceCount)),
		utils.FormatDuration(summary.LastSeenAt.Sub(summary.FirstSeenAt)),
		utils.TruncateText(summary.Title, 80))
	return id, nil
}
