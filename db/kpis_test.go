// ABOUTME: Tests for KPI snapshot storage and aggregation
// ABOUTME: Covers replace-by-natural-key, trend lookup, and health score queries
package db

import (
	"testing"

	"github.com/opspulse/opspulse/models"
)

func TestReplaceKPISnapshot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	snap := &models.KPISnapshot{
		Department:   "sales",
		KPIName:      "pipeline_value",
		Target:       250000,
		CurrentValue: 120000,
		Status:       models.KPIInProgress,
		Trend:        models.TrendFlat,
		SnapshotDate: "2026-09-01",
	}
	if err := ReplaceKPISnapshot(db, snap); err != nil {
		t.Fatalf("ReplaceKPISnapshot failed: %v", err)
	}

	// Same key again with a new value must replace, not accumulate
	again := &models.KPISnapshot{
		Department:   "sales",
		KPIName:      "pipeline_value",
		Target:       250000,
		CurrentValue: 300000,
		Status:       models.KPIOnTrack,
		Trend:        models.TrendUp,
		SnapshotDate: "2026-09-01",
	}
	if err := ReplaceKPISnapshot(db, again); err != nil {
		t.Fatalf("ReplaceKPISnapshot (second) failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM kpi_snapshots").Scan(&count); err != nil {
		t.Fatalf("Failed to count snapshots: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 snapshot after replace, got %d", count)
	}

	stored, err := GetKPISnapshot(db, "sales", "pipeline_value", "2026-09-01")
	if err != nil {
		t.Fatalf("GetKPISnapshot failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Snapshot not found after replace")
	}
	if stored.CurrentValue != 300000 {
		t.Errorf("Expected replaced value 300000, got %v", stored.CurrentValue)
	}
	if stored.Status != models.KPIOnTrack {
		t.Errorf("Expected status on_track, got %s", stored.Status)
	}
}

func TestGetKPISnapshotMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	snap, err := GetKPISnapshot(db, "sales", "nope", "2026-09-01")
	if err != nil {
		t.Fatalf("GetKPISnapshot failed: %v", err)
	}
	if snap != nil {
		t.Error("Expected nil for missing snapshot")
	}
}

func TestPreviousKPIValue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for date, value := range map[string]float64{
		"2026-08-28": 10,
		"2026-08-30": 20,
		"2026-09-01": 30,
	} {
		snap := &models.KPISnapshot{
			Department: "sales", KPIName: "active_deals",
			CurrentValue: value, Status: models.KPIOnTrack,
			Trend: models.TrendFlat, SnapshotDate: date,
		}
		if err := ReplaceKPISnapshot(db, snap); err != nil {
			t.Fatalf("ReplaceKPISnapshot failed: %v", err)
		}
	}

	value, found, err := PreviousKPIValue(db, "sales", "active_deals", "2026-09-01")
	if err != nil {
		t.Fatalf("PreviousKPIValue failed: %v", err)
	}
	if !found {
		t.Fatal("Expected a previous value")
	}
	if value != 20 {
		t.Errorf("Expected most recent earlier value 20, got %v", value)
	}

	_, found, err = PreviousKPIValue(db, "sales", "active_deals", "2026-08-28")
	if err != nil {
		t.Fatalf("PreviousKPIValue failed: %v", err)
	}
	if found {
		t.Error("Expected no value before the earliest snapshot")
	}
}

func TestLatestHealthScores(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rows := []struct {
		dept  string
		name  string
		value float64
		date  string
	}{
		{"sales", models.HealthKPIName, 60, "2026-08-31"},
		{"sales", models.HealthKPIName, 75, "2026-09-01"},
		{"engineering", models.HealthKPIName, 82, "2026-09-01"},
		{"sales", "pipeline_value", 500, "2026-09-01"}, // not a health row
	}
	for _, r := range rows {
		snap := &models.KPISnapshot{
			Department: r.dept, KPIName: r.name,
			CurrentValue: r.value, Status: models.KPIOnTrack,
			Trend: models.TrendFlat, SnapshotDate: r.date,
		}
		if err := ReplaceKPISnapshot(db, snap); err != nil {
			t.Fatalf("ReplaceKPISnapshot failed: %v", err)
		}
	}

	scores, err := LatestHealthScores(db)
	if err != nil {
		t.Fatalf("LatestHealthScores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("Expected 2 departments, got %d", len(scores))
	}
	if scores[0].Department != "engineering" || scores[0].CurrentValue != 82 {
		t.Errorf("Unexpected first score: %+v", scores[0])
	}
	if scores[1].Department != "sales" || scores[1].CurrentValue != 75 {
		t.Errorf("Expected latest sales score 75, got %+v", scores[1])
	}
}

func TestCountKPIsExcludesHealth(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	snaps := []models.KPISnapshot{
		{Department: "sales", KPIName: "pipeline_value", Status: models.KPIOnTrack},
		{Department: "sales", KPIName: "active_deals", Status: models.KPIBehind},
		{Department: "sales", KPIName: models.HealthKPIName, Status: models.KPIOnTrack},
	}
	for i := range snaps {
		snaps[i].SnapshotDate = "2026-09-01"
		snaps[i].Trend = models.TrendFlat
		if err := ReplaceKPISnapshot(db, &snaps[i]); err != nil {
			t.Fatalf("ReplaceKPISnapshot failed: %v", err)
		}
	}

	total, onTrack, err := CountKPIs(db, "sales", "2026-09-01")
	if err != nil {
		t.Fatalf("CountKPIs failed: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 non-health KPIs, got %d", total)
	}
	if onTrack != 1 {
		t.Errorf("Expected 1 on-track KPI, got %d", onTrack)
	}
}
