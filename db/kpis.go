// ABOUTME: KPI snapshot database operations
// ABOUTME: Enforces the replace-by-natural-key invariant for (department, kpi_name, date)
package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

// ReplaceKPISnapshot stores a snapshot under its natural key
// (department, kpi_name, snapshot_date), deleting any existing row for
// the same key first. Delete and insert run in one transaction so
// recomputation never accumulates duplicates and never leaves the key
// half-written.
func ReplaceKPISnapshot(db *sql.DB, snap *models.KPISnapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM kpi_snapshots WHERE department = ? AND kpi_name = ? AND snapshot_date = ?
	`, snap.Department, snap.KPIName, snap.SnapshotDate)
	if err != nil {
		return fmt.Errorf("failed to delete existing snapshot: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO kpi_snapshots (id, department, kpi_name, target, current_value, status, trend, snapshot_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID.String(), snap.Department, snap.KPIName, snap.Target, snap.CurrentValue, snap.Status, snap.Trend, snap.SnapshotDate)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return tx.Commit()
}

// GetKPISnapshot fetches one snapshot by natural key.
func GetKPISnapshot(db *sql.DB, department, kpiName, snapshotDate string) (*models.KPISnapshot, error) {
	snap := &models.KPISnapshot{}

	err := db.QueryRow(`
		SELECT id, department, kpi_name, target, current_value, status, trend, snapshot_date
		FROM kpi_snapshots
		WHERE department = ? AND kpi_name = ? AND snapshot_date = ?
	`, department, kpiName, snapshotDate).Scan(
		&snap.ID,
		&snap.Department,
		&snap.KPIName,
		&snap.Target,
		&snap.CurrentValue,
		&snap.Status,
		&snap.Trend,
		&snap.SnapshotDate,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// PreviousKPIValue returns the most recent snapshot value for the key
// strictly before the given date, used for trend derivation. The bool is
// false when no earlier snapshot exists.
func PreviousKPIValue(db *sql.DB, department, kpiName, beforeDate string) (float64, bool, error) {
	var value float64
	err := db.QueryRow(`
		SELECT current_value FROM kpi_snapshots
		WHERE department = ? AND kpi_name = ? AND snapshot_date < ?
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, department, kpiName, beforeDate).Scan(&value)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return value, true, nil
}

// FindKPISnapshots lists snapshots for one date, optionally scoped to a
// department or kpi name (empty strings match everything).
func FindKPISnapshots(db *sql.DB, department, kpiName, snapshotDate string) ([]models.KPISnapshot, error) {
	rows, err := db.Query(`
		SELECT id, department, kpi_name, target, current_value, status, trend, snapshot_date
		FROM kpi_snapshots
		WHERE snapshot_date = ? AND (? = '' OR department = ?) AND (? = '' OR kpi_name = ?)
		ORDER BY department, kpi_name
	`, snapshotDate, department, department, kpiName, kpiName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.KPISnapshot
	for rows.Next() {
		var s models.KPISnapshot
		if err := rows.Scan(&s.ID, &s.Department, &s.KPIName, &s.Target, &s.CurrentValue, &s.Status, &s.Trend, &s.SnapshotDate); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}

	return snaps, rows.Err()
}

// LatestHealthScores returns the most recent department_health snapshot
// for every department that has one, ordered by department.
func LatestHealthScores(db *sql.DB) ([]models.KPISnapshot, error) {
	rows, err := db.Query(`
		SELECT id, department, kpi_name, target, current_value, status, trend, snapshot_date
		FROM kpi_snapshots k
		WHERE kpi_name = ?
		  AND snapshot_date = (
			SELECT MAX(snapshot_date) FROM kpi_snapshots
			WHERE department = k.department AND kpi_name = ?
		  )
		ORDER BY department
	`, models.HealthKPIName, models.HealthKPIName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.KPISnapshot
	for rows.Next() {
		var s models.KPISnapshot
		if err := rows.Scan(&s.ID, &s.Department, &s.KPIName, &s.Target, &s.CurrentValue, &s.Status, &s.Trend, &s.SnapshotDate); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}

	return snaps, rows.Err()
}

// CountKPIs aggregates non-health KPI snapshots for a department on a
// date, returning total count and how many sit in the on_track bucket.
func CountKPIs(db *sql.DB, department, snapshotDate string) (total, onTrack int, err error) {
	err = db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'on_track' THEN 1 END)
		FROM kpi_snapshots
		WHERE department = ? AND snapshot_date = ? AND kpi_name != ?
	`, department, snapshotDate, models.HealthKPIName).Scan(&total, &onTrack)
	return total, onTrack, err
}
