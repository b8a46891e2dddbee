package services_test

import (
	"testing"
	"time"

	"github.com/faultline/faultline/internal/services"
	"github.com/faultline/faultline/internal/taxonomy"
	"github.com/faultline/faultline/internal/testhelpers"
)

func TestRollupsBucketsBySeverityAndModule(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := services.NewIncidentService(db, taxonomy.NewRegistry())
	analytics := services.NewAnalyticsService(db)

	base := time.Now().UTC().Truncate(time.Hour).Add(-4 * time.Hour)

	// Two WO errors in the first hour, one in the second, one FIN critical
	// in the first.
	reports := []struct {
		code string
		at   time.Time
	}{
		{"WO-API-SAVE-001", base.Add(5 * time.Minute)},
		{"WO-API-SAVE-001", base.Add(20 * time.Minute)},
		{"WO-API-SAVE-001", base.Add(70 * time.Minute)},
		{"FIN-PAY-GATEWAY-002", base.Add(10 * time.Minute)},
	}
	for _, r := range reports {
		if _, err := svc.RecordOccurrence(testhelpers.NewReportBuilder().WithCode(r.code).At(r.at).Build()); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := analytics.Rollups(base, base.Add(3*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("Rollups failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows = %d; want 3: %+v", len(rows), rows)
	}

	// First bucket sorts CRITICAL before ERROR.
	if rows[0].Severity != taxonomy.SeverityCritical || rows[0].Module != "FIN" || rows[0].Count != 1 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Severity != taxonomy.SeverityError || rows[1].Module != "WO" || rows[1].Count != 2 {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2].Count != 1 || !rows[2].Bucket.After(rows[1].Bucket) {
		t.Errorf("row 2 = %+v", rows[2])
	}
}

func TestRollupsRangeIsHalfOpen(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := services.NewIncidentService(db, taxonomy.NewRegistry())
	analytics := services.NewAnalyticsService(db)

	at := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)
	if _, err := svc.RecordOccurrence(testhelpers.NewReportBuilder().At(at).Build()); err != nil {
		t.Fatal(err)
	}

	// 'to' is exclusive.
	rows, err := analytics.Rollups(at.Add(-time.Hour), at, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("occurrence at the exclusive upper bound was counted: %+v", rows)
	}
}

func TestImpactAggregation(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := services.NewIncidentService(db, taxonomy.NewRegistry())
	analytics := services.NewAnalyticsService(db)

	for _, user := range []string{"alice", "bob"} {
		if _, err := svc.RecordOccurrence(testhelpers.NewReportBuilder().WithUser(user).Build()); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.RecordOccurrence(testhelpers.NewReportBuilder().WithCode("FIN-PAY-GATEWAY-002").WithUser("carol").Build()); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	rows, err := analytics.Impact(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Impact failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d; want 2: %+v", len(rows), rows)
	}

	byModule := map[string]services.ImpactRow{}
	for _, r := range rows {
		byModule[r.Module] = r
	}

	wo := byModule["WO"]
	if wo.Incidents != 1 || wo.Occurrences != 2 || wo.UniqueUsers != 2 {
		t.Errorf("WO impact = %+v", wo)
	}
	fin := byModule["FIN"]
	if fin.Incidents != 1 || fin.Occurrences != 1 || fin.UniqueUsers != 1 {
		t.Errorf("FIN impact = %+v", fin)
	}
	if wo.UserCountCapped || fin.UserCountCapped {
		t.Error("capped flag set without hitting the cap")
	}
}

func TestImpactReportsCappedCounts(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	seedSettings(t, db, testhelpers.NewSettingsBuilder().WithUserCap(1).Build())
	svc := services.NewIncidentService(db, taxonomy.NewRegistry())
	analytics := services.NewAnalyticsService(db)

	for _, user := range []string{"alice", "bob"} {
		if _, err := svc.RecordOccurrence(testhelpers.NewReportBuilder().WithUser(user).Build()); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now()
	rows, err := analytics.Impact(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].UserCountCapped {
		t.Errorf("expected capped impact row, got %+v", rows)
	}
}

func TestFingerprintSpread(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	analytics := services.NewAnalyticsService(db)

	now := time.Now()

	// Two retired incidents of the same fingerprint with known spreads.
	first := testhelpers.NewIncidentBuilder().
		WithFingerprint("fp-shared").Retired().
		SeenBetween(now.Add(-3*time.Hour), now.Add(-2*time.Hour)).Build()
	second := testhelpers.NewIncidentBuilder().
		WithFingerprint("fp-shared").
		SeenBetween(now.Add(-90*time.Minute), now.Add(-60*time.Minute)).Build()
	if err := db.Create(&first).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatal(err)
	}

	rows, err := analytics.FingerprintSpread(now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("FingerprintSpread failed: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("rows = %d; want 1", len(rows))
	}
	if rows[0].Incidents != 2 {
		t.Errorf("incidents = %d; want 2", rows[0].Incidents)
	}

	// Mean of 60min and 30min spreads.
	want := (time.Hour + 30*time.Minute).Seconds() / 2
	if diff := rows[0].MeanSpreadSeconds - want; diff > 1 || diff < -1 {
		t.Errorf("mean spread = %f; want ~%f", rows[0].MeanSpreadSeconds, want)
	}
}
