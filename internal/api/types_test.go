package api

import (
	"testing"
	"time"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/taxonomy"
)

func TestMapIncidentActiveFlag(t *testing.T) {
	fp := "fp-abc"
	now := time.Now()
	inc := database.Incident{
		UUID:            "u-1",
		Fingerprint:     fp,
		ActiveKey:       &fp,
		Code:            "WO-API-SAVE-001",
		Module:          "WO",
		Category:        taxonomy.CategoryAPI,
		Severity:        taxonomy.SeverityError,
		State:           database.IncidentStateOpen,
		OccurrenceCount: 7,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}

	resp := MapIncident(&inc)
	if !resp.Active {
		t.Error("incident holding the active key must map as active")
	}
	if resp.Severity != "ERROR" || resp.Category != "API" {
		t.Errorf("enum fields mapped wrong: %+v", resp)
	}

	inc.ActiveKey = nil
	resp = MapIncident(&inc)
	if resp.Active {
		t.Error("retired incident must map as inactive")
	}
}

func TestMapOccurrenceOmitsStack(t *testing.T) {
	occ := database.Occurrence{
		Code:          "WO-API-SAVE-001",
		Message:       "save failed for [ID_REDACTED]",
		Stack:         "goroutine 1 [running]: ...",
		CorrelationID: "req-1",
		OccurredAt:    time.Now(),
	}

	resp := MapOccurrence(&occ)
	if resp.Message != occ.Message || resp.CorrelationID != "req-1" {
		t.Errorf("occurrence mapped wrong: %+v", resp)
	}
}
