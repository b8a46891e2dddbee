package services

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/taxonomy"
)

// AnalyticsService computes read-side rollups over the incident store.
// It never writes; queries tolerate concurrent mutation by reporters.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// RollupRow is one (severity, module, time bucket) occurrence count.
type RollupRow struct {
	Severity taxonomy.Severity `json:"severity"`
	Module   string            `json:"module"`
	Bucket   time.Time         `json:"bucket"`
	Count    int64             `json:"count"`
}

// occurrencePoint is the projection fetched for bucketing.
type occurrencePoint struct {
	Severity   taxonomy.Severity
	Module     string
	OccurredAt time.Time
}

// Rollups counts occurrences grouped by severity, module and time bucket.
// Bucketing happens in Go so the query stays portable across the PostgreSQL
// production store and the SQLite test store.
func (s *AnalyticsService) Rollups(from, to time.Time, bucket time.Duration) ([]RollupRow, error) {
	if bucket <= 0 {
		bucket = time.Hour
	}

	var points []occurrencePoint
	err := s.db.Model(&database.Occurrence{}).
		Select("incidents.severity AS severity, incidents.module AS module, occurrences.occurred_at AS occurred_at").
		Joins("JOIN incidents ON incidents.id = occurrences.incident_id").
		Where("occurrences.occurred_at >= ? AND occurrences.occurred_at < ?", from, to).
		Scan(&points).Error
	if err != nil {
		return nil, err
	}

	type key struct {
		severity taxonomy.Severity
		module   string
		bucket   int64
	}
	counts := make(map[key]int64)
	for _, p := range points {
		counts[key{p.Severity, p.Module, p.OccurredAt.Unix() / int64(bucket.Seconds())}]++
	}

	rows := make([]RollupRow, 0, len(counts))
	for k, c := range counts {
		rows = append(rows, RollupRow{
			Severity: k.severity,
			Module:   k.module,
			Bucket:   time.Unix(k.bucket*int64(bucket.Seconds()), 0).UTC(),
			Count:    c,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		if rows[i].Severity.Rank() != rows[j].Severity.Rank() {
			return rows[i].Severity.Rank() < rows[j].Severity.Rank()
		}
		return rows[i].Module < rows[j].Module
	})
	return rows, nil
}

// ImpactRow aggregates user impact per (severity, module).
type ImpactRow struct {
	Severity        taxonomy.Severity `json:"severity"`
	Module          string            `json:"module"`
	Incidents       int64             `json:"incidents"`
	Occurrences     int64             `json:"occurrences"`
	UniqueUsers     int64             `json:"unique_users"`
	UserCountCapped bool              `json:"user_count_capped"`
}

// Impact sums incident counts, occurrence counts and unique-user impact
// grouped by severity and module for incidents seen in the range.
func (s *AnalyticsService) Impact(from, to time.Time) ([]ImpactRow, error) {
	// CASE instead of BOOL_OR keeps the aggregate portable between
	// PostgreSQL and SQLite.
	type impactScan struct {
		Severity    taxonomy.Severity
		Module      string
		Incidents   int64
		Occurrences int64
		UniqueUsers int64
		Capped      int64
	}
	var scanned []impactScan
	err := s.db.Model(&database.Incident{}).
		Select("severity, module, COUNT(*) AS incidents, SUM(occurrence_count) AS occurrences, SUM(unique_user_count) AS unique_users, MAX(CASE WHEN user_cap_reached THEN 1 ELSE 0 END) AS capped").
		Where("last_seen_at >= ? AND first_seen_at <= ?", from, to).
		Group("severity, module").
		Order("severity, module").
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}

	rows := make([]ImpactRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, ImpactRow{
			Severity:        r.Severity,
			Module:          r.Module,
			Incidents:       r.Incidents,
			Occurrences:     r.Occurrences,
			UniqueUsers:     r.UniqueUsers,
			UserCountCapped: r.Capped > 0,
		})
	}
	return rows, nil
}

// SpreadRow reports the mean first-to-last occurrence spread per fingerprint.
type SpreadRow struct {
	Fingerprint       string  `json:"fingerprint"`
	Code              string  `json:"code"`
	Incidents         int64   `json:"incidents"`
	MeanSpreadSeconds float64 `json:"mean_spread_seconds"`
}

// FingerprintSpread computes, per fingerprint, how long its incidents
// typically stay active (mean of last_seen_at - first_seen_at).
func (s *AnalyticsService) FingerprintSpread(from, to time.Time) ([]SpreadRow, error) {
	var incidents []database.Incident
	err := s.db.Select("fingerprint", "code", "first_seen_at", "last_seen_at").
		Where("last_seen_at >= ? AND first_seen_at <= ?", from, to).
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}

	type acc struct {
		code  string
		n     int64
		total time.Duration
	}
	byFP := make(map[string]*acc)
	order := make([]string, 0)
	for _, inc := range incidents {
		a, ok := byFP[inc.Fingerprint]
		if !ok {
			a = &acc{code: inc.Code}
			byFP[inc.Fingerprint] = a
			order = append(order, inc.Fingerprint)
		}
		a.n++
		a.total += inc.LastSeenAt.Sub(inc.FirstSeenAt)
	}

	rows := make([]SpreadRow, 0, len(byFP))
	for _, fp := range order {
		a := byFP[fp]
		rows = append(rows, SpreadRow{
			Fingerprint:       fp,
			Code:              a.code,
			Incidents:         a.n,
			MeanSpreadSeconds: a.total.Seconds() / float64(a.n),
		})
	}
	return rows, nil
}
