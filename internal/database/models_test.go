package database

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Incident{}, &Occurrence{}, &IncidentUser{}, &EscalationSettings{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestJSONBScanValue(t *testing.T) {
	j := JSONB{"user_id": "u-1", "attempt": float64(3)}

	v, err := j.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned JSONB
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned["user_id"] != "u-1" || scanned["attempt"] != float64(3) {
		t.Errorf("round trip changed data: %v", scanned)
	}
}

func TestJSONBScanNil(t *testing.T) {
	var j JSONB
	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if j == nil {
		t.Error("Scan(nil) must produce an empty map")
	}
}

func TestJSONBValueNil(t *testing.T) {
	var j JSONB
	v, err := j.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != nil {
		t.Errorf("nil JSONB must store NULL, got %v", v)
	}
}

func TestIncidentBeforeCreateFillsTimestamps(t *testing.T) {
	db := openTestDB(t)

	fp := "fp-timestamps"
	inc := Incident{
		UUID:        "u-ts",
		Fingerprint: fp,
		ActiveKey:   &fp,
		Code:        "WO-API-SAVE-001",
		Module:      "WO",
		State:       IncidentStateOpen,
	}
	if err := db.Create(&inc).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if inc.FirstSeenAt.IsZero() || inc.LastSeenAt.IsZero() {
		t.Error("seen timestamps must be filled on create")
	}
	if !inc.LastSeenAt.Equal(inc.FirstSeenAt) {
		t.Errorf("last seen should start at first seen, got %v vs %v", inc.LastSeenAt, inc.FirstSeenAt)
	}
}

func TestActiveKeyUniquePerFingerprint(t *testing.T) {
	db := openTestDB(t)

	fp := "fp-unique"
	first := Incident{UUID: "u-1", Fingerprint: fp, ActiveKey: &fp, Code: "WO-API-SAVE-001", Module: "WO", State: IncidentStateOpen}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := Incident{UUID: "u-2", Fingerprint: fp, ActiveKey: &fp, Code: "WO-API-SAVE-001", Module: "WO", State: IncidentStateOpen}
	err := db.Create(&dup).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("second active incident for one fingerprint must conflict, got %v", err)
	}

	// A retired incident with the same fingerprint is fine: NULL keys
	// don't collide.
	retired := Incident{UUID: "u-3", Fingerprint: fp, Code: "WO-API-SAVE-001", Module: "WO", State: IncidentStateOpen}
	if err := db.Create(&retired).Error; err != nil {
		t.Errorf("retired incident must not conflict: %v", err)
	}
}

func TestIsActive(t *testing.T) {
	fp := "fp-1"
	inc := Incident{ActiveKey: &fp}
	if !inc.IsActive() {
		t.Error("incident with active key must be active")
	}
	inc.ActiveKey = nil
	if inc.IsActive() {
		t.Error("incident without active key must be inactive")
	}
}

func TestGetOrCreateEscalationSettings(t *testing.T) {
	db := openTestDB(t)

	settings, err := GetOrCreateEscalationSettings(db)
	if err != nil {
		t.Fatalf("GetOrCreateEscalationSettings failed: %v", err)
	}
	if settings.WindowHours != 24 || settings.CriticalThreshold != 1 {
		t.Errorf("unexpected defaults: %+v", settings)
	}

	settings.ErrorThreshold = 15
	if err := UpdateEscalationSettings(db, settings); err != nil {
		t.Fatalf("UpdateEscalationSettings failed: %v", err)
	}

	again, err := GetOrCreateEscalationSettings(db)
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if again.ID != settings.ID {
		t.Error("settings must stay a singleton")
	}
	if again.ErrorThreshold != 15 {
		t.Errorf("update not persisted: %+v", again)
	}
}

func TestSettingsWindowDurations(t *testing.T) {
	s := EscalationSettings{WindowHours: 24, ErrorWindowMinutes: 10}
	if s.Window() != 24*time.Hour {
		t.Errorf("Window() = %v", s.Window())
	}
	if s.ErrorWindow() != 10*time.Minute {
		t.Errorf("ErrorWindow() = %v", s.ErrorWindow())
	}
}
