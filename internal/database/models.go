package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/taxonomy"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// IncidentState represents the lifecycle state of an incident
type IncidentState string

const (
	IncidentStateOpen      IncidentState = "OPEN"
	IncidentStateEscalated IncidentState = "ESCALATED"
	IncidentStateResolved  IncidentState = "RESOLVED"
)

// Incident aggregates error occurrences sharing a fingerprint within an
// active time window.
//
// ActiveKey holds the fingerprint while the incident is the aggregation
// target and is cleared when the window elapses or the incident is resolved.
// The unique index on it guarantees at most one active incident per
// fingerprint under concurrent reporters; later occurrences for a retired
// fingerprint start a new incident.
//
// Severity, category and module are copied from the classification of the
// defining occurrence and never changed by later occurrences
// (first-classification-wins).
type Incident struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UUID        string  `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Fingerprint string  `gorm:"size:64;not null;index" json:"fingerprint"`
	ActiveKey   *string `gorm:"size:64;uniqueIndex" json:"-"`

	Code     string            `gorm:"size:64;not null;index" json:"code"`
	Module   string            `gorm:"size:32;index" json:"module"`
	Category taxonomy.Category `gorm:"type:varchar(32);not null" json:"category"`
	Severity taxonomy.Severity `gorm:"type:varchar(16);not null;index" json:"severity"`
	Title    string            `gorm:"size:255" json:"title"`

	State           IncidentState `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"state"`
	OccurrenceCount int64         `gorm:"not null;default:0" json:"occurrence_count"`
	FirstSeenAt     time.Time     `gorm:"not null" json:"first_seen_at"`
	LastSeenAt      time.Time     `gorm:"not null;index" json:"last_seen_at"`

	// Bounded unique-user tracking. Identities live in incident_users up to
	// the configured cap; past the cap, UserCapReached marks the count as a
	// lower bound.
	UniqueUserCount int64 `gorm:"not null;default:0" json:"unique_user_count"`
	UserCapReached  bool  `gorm:"default:false" json:"user_cap_reached"`

	// Escalation bookkeeping. EscalationQueuedAt is set exactly once, inside
	// the same atomic step that updates the count; TicketID is set at most
	// once by the dispatcher.
	EscalationQueuedAt *time.Time `json:"escalation_queued_at,omitempty"`
	TicketID           *string    `gorm:"size:128" json:"ticket_id,omitempty"`
	TicketFailed       bool       `gorm:"default:false" json:"ticket_failed"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate hook keeps first/last seen timestamps sane
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.FirstSeenAt.IsZero() {
		i.FirstSeenAt = time.Now()
	}
	if i.LastSeenAt.IsZero() {
		i.LastSeenAt = i.FirstSeenAt
	}
	return nil
}

// IsActive returns true while the incident is the aggregation target for
// its fingerprint.
func (i *Incident) IsActive() bool {
	return i.ActiveKey != nil
}

// Occurrence is one reported error instance. Message, stack and context are
// stored redacted; user and tenant IDs are kept for scoping.
type Occurrence struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	IncidentID uint `gorm:"not null;index" json:"incident_id"`

	Code          string    `gorm:"size:64;not null;index" json:"code"`
	Message       string    `gorm:"type:text" json:"message"`
	Stack         string    `gorm:"type:text" json:"stack,omitempty"`
	HTTPStatus    int       `json:"http_status,omitempty"`
	Context       JSONB     `gorm:"type:jsonb" json:"context"`
	CorrelationID string    `gorm:"size:64;index" json:"correlation_id"`
	UserID        string    `gorm:"size:64;index" json:"user_id,omitempty"`
	TenantID      string    `gorm:"size:64;index" json:"tenant_id,omitempty"`
	OccurredAt    time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`

	// Belongs to Incident
	Incident Incident `gorm:"foreignKey:IncidentID" json:"-"`
}

// IncidentUser records one distinct affected user per incident. The
// composite primary key makes inserts idempotent per (incident, user).
type IncidentUser struct {
	IncidentID uint      `gorm:"primaryKey" json:"incident_id"`
	UserID     string    `gorm:"primaryKey;size:64" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides for explicit table naming
func (Incident) TableName() string {
	return "incidents"
}

func (Occurrence) TableName() string {
	return "occurrences"
}

func (IncidentUser) TableName() string {
	return "incident_users"
}
