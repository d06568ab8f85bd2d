// ABOUTME: Database operations for the sync_state table
// ABOUTME: Manages per-source sync status rows, always upserted and never appended
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opspulse/opspulse/models"
)

// UpsertSyncState records the outcome of a sync or refresh for a named
// source. One row per source; repeated writes replace the previous state.
func UpsertSyncState(db *sql.DB, source, status, details string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (source, last_sync, status, details, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source) DO UPDATE SET
			last_sync = CURRENT_TIMESTAMP,
			status = excluded.status,
			details = excluded.details,
			updated_at = CURRENT_TIMESTAMP
	`, source, status, details)

	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}

	return nil
}

func GetSyncState(db *sql.DB, source string) (*models.SyncState, error) {
	var state models.SyncState
	var lastSync sql.NullTime
	var details sql.NullString

	err := db.QueryRow(`
		SELECT source, last_sync, status, details, updated_at
		FROM sync_state
		WHERE source = ?
	`, source).Scan(&state.Source, &lastSync, &state.Status, &details, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSync.Valid {
		state.LastSync = &lastSync.Time
	}
	state.Details = details.String

	return &state, nil
}

func GetAllSyncStates(db *sql.DB) ([]models.SyncState, error) {
	rows, err := db.Query(`
		SELECT source, last_sync, status, details, updated_at
		FROM sync_state
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []models.SyncState
	for rows.Next() {
		var state models.SyncState
		var lastSync sql.NullTime
		var details sql.NullString

		if err := rows.Scan(&state.Source, &lastSync, &state.Status, &details, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}

		if lastSync.Valid {
			state.LastSync = &lastSync.Time
		}
		state.Details = details.String

		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}

	return states, nil
}

// RecordSyncError is the failure-path helper used by job boundaries: it
// truncates noisy error text and never fails the caller.
func RecordSyncError(db *sql.DB, source string, syncErr error) {
	details := syncErr.Error()
	if len(details) > 500 {
		details = details[:500]
	}
	_ = UpsertSyncState(db, source, models.SyncError, details)
}

// RecordSyncOK marks a source healthy with optional detail text.
func RecordSyncOK(db *sql.DB, source, details string) error {
	return UpsertSyncState(db, source, models.SyncOK, details)
}

// SyncAge returns how long ago the source last synced, or false when it
// never has.
func SyncAge(db *sql.DB, source string, now time.Time) (time.Duration, bool, error) {
	state, err := GetSyncState(db, source)
	if err != nil {
		return 0, false, err
	}
	if state == nil || state.LastSync == nil {
		return 0, false, nil
	}
	return now.Sub(*state.LastSync), true, nil
}
