package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/fingerprint"
	"github.com/faultline/faultline/internal/redact"
	"github.com/faultline/faultline/internal/taxonomy"
)

// recordMaxRetries bounds the find-or-create retry loop under concurrent
// reporters racing to create the same fingerprint's incident.
const recordMaxRetries = 3

// rawFallbackLimit caps how much unredacted text is kept when redaction
// itself fails. An imperfect report beats a lost one.
const rawFallbackLimit = 2048

// Report is one raw error as submitted by a call site.
type Report struct {
	Code          string
	Message       string
	Stack         string
	HTTPStatus    int
	Module        string
	Context       map[string]interface{}
	CorrelationID string
	OccurredAt    time.Time
}

// Snapshot is the incident state returned to the reporting path.
type Snapshot struct {
	Incident       database.Incident
	Classification taxonomy.Classification
	CorrelationID  string
	Created        bool
	CrossedThreshold bool
}

// IncidentService owns the incident store: it redacts, classifies and
// fingerprints occurrences, then upserts them into incidents with
// per-fingerprint linearizability.
type IncidentService struct {
	db       *gorm.DB
	registry *taxonomy.Registry

	// notify hands a threshold-crossing incident ID to the escalation
	// dispatcher. It must never block the reporting path.
	notify func(incidentID uint)
}

// NewIncidentService creates a new incident service
func NewIncidentService(db *gorm.DB, registry *taxonomy.Registry) *IncidentService {
	return &IncidentService{db: db, registry: registry}
}

// SetEscalationNotifier wires the asynchronous escalation hand-off.
func (s *IncidentService) SetEscalationNotifier(fn func(incidentID uint)) {
	s.notify = fn
}

// RecordOccurrence processes one error report: redact, classify, fingerprint,
// then atomically find-or-create the incident and apply the occurrence.
// The occurrence is applied in receipt order for its fingerprint; different
// fingerprints proceed in parallel.
func (s *IncidentService) RecordOccurrence(report Report) (*Snapshot, error) {
	if report.CorrelationID == "" {
		report.CorrelationID = uuid.New().String()
	}
	if report.OccurredAt.IsZero() {
		report.OccurredAt = time.Now()
	}

	message := safeRedactText(report.Message)
	stack := safeRedactText(report.Stack)
	ctx := safeRedactContext(report.Context)

	cls := s.registry.Classify(report.Code, report.HTTPStatus, report.Module)
	fp := fingerprint.Compute(report.Code, cls.Category, cls.Module, message)

	settings, err := database.GetOrCreateEscalationSettings(s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation settings: %w", err)
	}

	var snap *Snapshot
	for attempt := 1; attempt <= recordMaxRetries; attempt++ {
		snap, err = s.apply(report, message, stack, ctx, cls, fp, settings)
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// Lost the create race; the incident now exists, retry as increment.
		log.Printf("IncidentService: create conflict for fingerprint %s (attempt %d), retrying", fp, attempt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record occurrence after %d attempts: %w", recordMaxRetries, err)
	}

	if snap.CrossedThreshold && s.notify != nil {
		s.notify(snap.Incident.ID)
	}
	return snap, nil
}

// apply runs one atomic find-or-create-or-increment pass.
func (s *IncidentService) apply(report Report, message, stack string, ctx map[string]interface{}, cls taxonomy.Classification, fp string, settings *database.EscalationSettings) (*Snapshot, error) {
	snap := &Snapshot{Classification: cls, CorrelationID: report.CorrelationID}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inc database.Incident
		found := true
		if err := tx.Where("active_key = ?", fp).First(&inc).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}

		// Sliding window: an idle incident stops being the aggregation
		// target; the occurrence starts a fresh one.
		if found && report.OccurredAt.Sub(inc.LastSeenAt) > settings.Window() {
			if err := tx.Model(&inc).Update("active_key", nil).Error; err != nil {
				return err
			}
			found = false
		}

		if !found {
			activeKey := fp
			inc = database.Incident{
				UUID:            uuid.New().String(),
				Fingerprint:     fp,
				ActiveKey:       &activeKey,
				Code:            report.Code,
				Module:          cls.Module,
				Category:        cls.Category,
				Severity:        cls.Severity,
				Title:           cls.Title,
				State:           database.IncidentStateOpen,
				OccurrenceCount: 1,
				FirstSeenAt:     report.OccurredAt,
				LastSeenAt:      report.OccurredAt,
			}
			// A duplicate key here means a concurrent reporter created the
			// incident first; the caller retries as an increment.
			if err := tx.Create(&inc).Error; err != nil {
				return err
			}
			snap.Created = true
		} else {
			if err := tx.Model(&database.Incident{}).Where("id = ?", inc.ID).
				Update("occurrence_count", gorm.Expr("occurrence_count + 1")).Error; err != nil {
				return err
			}
			// lastSeenAt only moves forward.
			if err := tx.Model(&database.Incident{}).
				Where("id = ? AND last_seen_at < ?", inc.ID, report.OccurredAt).
				Update("last_seen_at", report.OccurredAt).Error; err != nil {
				return err
			}
		}

		occ := database.Occurrence{
			IncidentID:    inc.ID,
			Code:          report.Code,
			Message:       message,
			Stack:         stack,
			Context:       database.JSONB(ctx),
			HTTPStatus:    report.HTTPStatus,
			CorrelationID: report.CorrelationID,
			UserID:        contextString(ctx, "user_id"),
			TenantID:      contextString(ctx, "tenant_id"),
			OccurredAt:    report.OccurredAt,
		}
		if err := tx.Create(&occ).Error; err != nil {
			return err
		}

		if err := s.trackUniqueUser(tx, &inc, occ.UserID, settings.UniqueUserCap); err != nil {
			return err
		}

		crossed, err := s.evaluateThreshold(tx, &inc, cls.Severity, report.OccurredAt, settings)
		if err != nil {
			return err
		}
		snap.CrossedThreshold = crossed

		// Reload so the snapshot reflects all updates from this pass.
		if err := tx.First(&snap.Incident, inc.ID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// trackUniqueUser adds a user to the incident's bounded distinct-user set.
func (s *IncidentService) trackUniqueUser(tx *gorm.DB, inc *database.Incident, userID string, userCap int) error {
	if userID == "" {
		return nil
	}

	var current database.Incident
	if err := tx.Select("unique_user_count", "user_cap_reached").First(&current, inc.ID).Error; err != nil {
		return err
	}
	if current.UserCapReached || (userCap > 0 && current.UniqueUserCount >= int64(userCap)) {
		if !current.UserCapReached {
			return tx.Model(&database.Incident{}).Where("id = ?", inc.ID).
				Update("user_cap_reached", true).Error
		}
		return nil
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.IncidentUser{
		IncidentID: inc.ID,
		UserID:     userID,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return tx.Model(&database.Incident{}).Where("id = ?", inc.ID).
			Update("unique_user_count", gorm.Expr("unique_user_count + 1")).Error
	}
	return nil
}

// evaluateThreshold decides whether this occurrence pushes the incident over
// its escalation threshold. The conditional update on escalation_queued_at
// makes the crossing signal fire exactly once per incident.
func (s *IncidentService) evaluateThreshold(tx *gorm.DB, inc *database.Incident, severity taxonomy.Severity, now time.Time, settings *database.EscalationSettings) (bool, error) {
	if !settings.Enabled {
		return false, nil
	}

	var threshold int
	var within time.Duration
	switch severity {
	case taxonomy.SeverityCritical:
		threshold = settings.CriticalThreshold
	case taxonomy.SeverityError:
		threshold = settings.ErrorThreshold
		within = settings.ErrorWindow()
	case taxonomy.SeverityWarn:
		if !settings.WarnEscalates {
			return false, nil
		}
		threshold = settings.ErrorThreshold
		within = settings.ErrorWindow()
	default:
		return false, nil
	}
	if threshold <= 0 {
		threshold = 1
	}

	var count int64
	q := tx.Model(&database.Occurrence{}).Where("incident_id = ?", inc.ID)
	if within > 0 {
		q = q.Where("occurred_at > ?", now.Add(-within))
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	if count < int64(threshold) {
		return false, nil
	}

	res := tx.Model(&database.Incident{}).
		Where("id = ? AND state = ? AND escalation_queued_at IS NULL", inc.ID, database.IncidentStateOpen).
		Update("escalation_queued_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Resolve transitions an incident to RESOLVED via the explicit external
// resolution call and retires it as the aggregation target.
func (s *IncidentService) Resolve(incidentUUID string) (*database.Incident, error) {
	var inc database.Incident
	if err := s.db.Where("uuid = ?", incidentUUID).First(&inc).Error; err != nil {
		return nil, err
	}
	if inc.State == database.IncidentStateResolved {
		return &inc, nil
	}

	now := time.Now()
	err := s.db.Model(&inc).Updates(map[string]interface{}{
		"state":       database.IncidentStateResolved,
		"resolved_at": now,
		"active_key":  nil,
	}).Error
	if err != nil {
		return nil, err
	}
	return &inc, s.db.First(&inc, inc.ID).Error
}

// GetIncidentByUUID returns an incident by UUID
func (s *IncidentService) GetIncidentByUUID(incidentUUID string) (*database.Incident, error) {
	var inc database.Incident
	err := s.db.Where("uuid = ?", incidentUUID).First(&inc).Error
	return &inc, err
}

// IncidentFilter narrows incident listings.
type IncidentFilter struct {
	Severity string
	Module   string
	State    string
	From     time.Time
	To       time.Time
}

// ListIncidents returns incidents matching the filter, newest first.
func (s *IncidentService) ListIncidents(filter IncidentFilter, offset, limit int) ([]database.Incident, int64, error) {
	q := s.db.Model(&database.Incident{})
	if filter.Severity != "" {
		q = q.Where("severity = ?", taxonomy.ParseSeverity(filter.Severity))
	}
	if filter.Module != "" {
		q = q.Where("module = ?", filter.Module)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if !filter.From.IsZero() {
		q = q.Where("last_seen_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("first_seen_at <= ?", filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []database.Incident
	err := q.Order("last_seen_at DESC").Offset(offset).Limit(limit).Find(&incidents).Error
	return incidents, total, err
}

// GetOccurrences returns an incident's occurrences in receipt order.
func (s *IncidentService) GetOccurrences(incidentID uint, offset, limit int) ([]database.Occurrence, int64, error) {
	q := s.db.Model(&database.Occurrence{}).Where("incident_id = ?", incidentID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var occurrences []database.Occurrence
	err := q.Order("occurred_at ASC, id ASC").Offset(offset).Limit(limit).Find(&occurrences).Error
	return occurrences, total, err
}

// safeRedactText never lets a redaction failure lose the report: on panic it
// falls back to the truncated raw text.
func safeRedactText(s string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("IncidentService: redaction failed, storing truncated raw text: %v", r)
			out = truncate(s, rawFallbackLimit)
		}
	}()
	return redact.Text(s)
}

// safeRedactContext redacts a context map with the same fallback policy.
func safeRedactContext(ctx map[string]interface{}) (out map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("IncidentService: context redaction failed, dropping context values: %v", r)
			out = map[string]interface{}{
				"user_id":   contextString(ctx, "user_id"),
				"tenant_id": contextString(ctx, "tenant_id"),
				"_redacted": redact.Truncated,
			}
		}
	}()
	return redact.Context(ctx)
}

func contextString(ctx map[string]interface{}, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
