package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// EscalationSettings controls incident aggregation and auto-ticket behavior.
// Threshold values are business policy, so they live here rather than in
// code; the illustrative defaults can be changed over the settings API.
type EscalationSettings struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	Enabled bool `gorm:"default:true" json:"enabled"`

	// WindowHours is the sliding aggregation window: once a fingerprint is
	// idle this long, its next occurrence starts a new incident.
	WindowHours int `gorm:"default:24" json:"window_hours"`

	// CRITICAL escalates after this many occurrences (1 = first occurrence).
	CriticalThreshold int `gorm:"default:1" json:"critical_threshold"`

	// ERROR escalates after ErrorThreshold occurrences within
	// ErrorWindowMinutes.
	ErrorThreshold     int `gorm:"default:5" json:"error_threshold"`
	ErrorWindowMinutes int `gorm:"default:10" json:"error_window_minutes"`

	// WARN escalation is off by default; when enabled it uses the ERROR
	// thresholds. INFO never escalates.
	WarnEscalates bool `gorm:"default:false" json:"warn_escalates"`

	// UniqueUserCap bounds per-incident identity tracking.
	UniqueUserCap int `gorm:"default:10000" json:"unique_user_cap"`

	// Ticket dispatch retry budget.
	DispatchMaxAttempts    int `gorm:"default:5" json:"dispatch_max_attempts"`
	DispatchBackoffSeconds int `gorm:"default:2" json:"dispatch_backoff_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EscalationSettings) TableName() string {
	return "escalation_settings"
}

// NewDefaultEscalationSettings returns settings with default values
func NewDefaultEscalationSettings() *EscalationSettings {
	return &EscalationSettings{
		Enabled:                true,
		WindowHours:            24,
		CriticalThreshold:      1,
		ErrorThreshold:         5,
		ErrorWindowMinutes:     10,
		WarnEscalates:          false,
		UniqueUserCap:          10000,
		DispatchMaxAttempts:    5,
		DispatchBackoffSeconds: 2,
	}
}

// Window returns the aggregation window as a duration.
func (s *EscalationSettings) Window() time.Duration {
	return time.Duration(s.WindowHours) * time.Hour
}

// ErrorWindow returns the ERROR threshold evaluation window as a duration.
func (s *EscalationSettings) ErrorWindow() time.Duration {
	return time.Duration(s.ErrorWindowMinutes) * time.Minute
}

// GetOrCreateEscalationSettings retrieves or creates the settings singleton.
// Accepts a db parameter to support transaction contexts and testing.
func GetOrCreateEscalationSettings(db *gorm.DB) (*EscalationSettings, error) {
	var settings EscalationSettings
	result := db.First(&settings)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		settings = *NewDefaultEscalationSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateEscalationSettings persists changed settings.
func UpdateEscalationSettings(db *gorm.DB, settings *EscalationSettings) error {
	return db.Save(settings).Error
}
