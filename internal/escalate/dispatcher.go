package escalate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
)

const (
	// queueSize bounds the in-flight escalation queue. The periodic sweep
	// recovers incidents whose enqueue was dropped on overflow.
	queueSize = 256

	// sweepInterval is how often the dispatcher re-scans for queued
	// incidents that never got a ticket (dropped enqueues, crashes).
	sweepInterval = time.Minute
)

// Dispatcher consumes threshold-crossing incidents and creates tickets
// through the sink. Dispatch is asynchronous relative to the reporting
// path and idempotent per incident.
type Dispatcher struct {
	db          *gorm.DB
	sink        TicketSink
	queue       chan uint
	maxAttempts int
	baseBackoff time.Duration
}

// NewDispatcher creates a new escalation dispatcher
func NewDispatcher(db *gorm.DB, sink TicketSink, maxAttempts int, baseBackoff time.Duration) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	return &Dispatcher{
		db:          db,
		sink:        sink,
		queue:       make(chan uint, queueSize),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}
}

// Enqueue hands an incident to the dispatcher without ever blocking the
// caller. On a full queue the incident is left for the sweep to pick up.
func (d *Dispatcher) Enqueue(incidentID uint) {
	select {
	case d.queue <- incidentID:
	default:
		log.Printf("Dispatcher: queue full, incident %d deferred to sweep", incidentID)
	}
}

// Start runs the dispatch loop until stop is closed.
func (d *Dispatcher) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case id := <-d.queue:
			if err := d.Dispatch(id, stop); err != nil {
				log.Printf("Dispatcher: incident %d: %v", id, err)
			}
		case <-ticker.C:
			d.sweep(stop)
		case <-stop:
			log.Println("Dispatcher stopped")
			return
		}
	}
}

// sweep re-dispatches still-open incidents that were queued for escalation
// but never ticketed and not yet marked failed. Resolved incidents are
// excluded so a close during dispatch cannot leave a row the sweep keeps
// ticketing forever.
func (d *Dispatcher) sweep(stop <-chan struct{}) {
	var incidents []database.Incident
	err := d.db.Where("escalation_queued_at IS NOT NULL AND ticket_id IS NULL AND ticket_failed = ? AND state = ?",
		false, database.IncidentStateOpen).
		Limit(queueSize).Find(&incidents).Error
	if err != nil {
		log.Printf("Dispatcher: sweep query failed: %v", err)
		return
	}
	for _, inc := range incidents {
		if err := d.Dispatch(inc.ID, stop); err != nil {
			log.Printf("Dispatcher: sweep incident %d: %v", inc.ID, err)
		}
	}
}

// Dispatch creates a ticket for one incident. It is a no-op when the
// incident already has a ticket, retries transient sink failures with
// exponential backoff, and marks the incident failed when the retry budget
// is exhausted. The retry budget, not caller cancellation, bounds the loop.
func (d *Dispatcher) Dispatch(incidentID uint, stop <-chan struct{}) error {
	var inc database.Incident
	if err := d.db.First(&inc, incidentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("incident %d not found", incidentID)
		}
		return err
	}

	// Idempotence: the crossing signal fires once, but a sweep or restart
	// may hand the same incident over again.
	if inc.TicketID != nil {
		return nil
	}
	if inc.TicketFailed {
		return nil
	}

	// Resolution wins: an incident closed before its ticket was created
	// stays ticketless, and the sink must not be touched for it.
	if inc.State != database.IncidentStateOpen {
		return nil
	}

	summary := Summary{
		IncidentUUID:    inc.UUID,
		Code:            inc.Code,
		Module:          inc.Module,
		Category:        inc.Category,
		Severity:        inc.Severity,
		Title:           inc.Title,
		OccurrenceCount: inc.OccurrenceCount,
		UniqueUserCount: inc.UniqueUserCount,
		FirstSeenAt:     inc.FirstSeenAt,
		LastSeenAt:      inc.LastSeenAt,
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ticketID, err := d.sink.CreateTicket(context.Background(), summary)
		if err == nil {
			return d.markEscalated(inc.ID, ticketID)
		}
		lastErr = err
		log.Printf("Dispatcher: ticket creation for incident %s failed (attempt %d/%d): %v",
			inc.UUID, attempt, d.maxAttempts, err)

		if attempt == d.maxAttempts {
			break
		}
		backoff := d.baseBackoff << (attempt - 1)
		select {
		case <-time.After(backoff):
		case <-stop:
			return fmt.Errorf("dispatch aborted during backoff: %w", lastErr)
		}
	}

	// Budget exhausted: record the failure, never fail the original
	// request path retroactively.
	if err := d.db.Model(&database.Incident{}).Where("id = ?", inc.ID).
		Update("ticket_failed", true).Error; err != nil {
		return fmt.Errorf("failed to mark ticket failure: %w", err)
	}
	return fmt.Errorf("ticket creation exhausted %d attempts: %w", d.maxAttempts, lastErr)
}

// markEscalated sets the ticket exactly once and moves the incident to
// ESCALATED. The conditional update keeps a racing dispatch from
// overwriting an existing ticket.
func (d *Dispatcher) markEscalated(incidentID uint, ticketID string) error {
	res := d.db.Model(&database.Incident{}).
		Where("id = ? AND ticket_id IS NULL AND state = ?", incidentID, database.IncidentStateOpen).
		Updates(map[string]interface{}{
			"ticket_id":     ticketID,
			"state":         database.IncidentStateEscalated,
			"ticket_failed": false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("Dispatcher: incident %d already ticketed, discarding ticket %s", incidentID, ticketID)
	}
	return nil
}
