// ABOUTME: Action item database operations
// ABOUTME: Handles action item lifecycle and resolution-rate aggregates
package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

func CreateActionItem(db *sql.DB, item *models.ActionItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()

	if item.Severity == "" {
		item.Severity = models.SeverityMedium
	}
	if item.Status == "" {
		item.Status = models.ActionOpen
	}

	_, err := db.Exec(`
		INSERT INTO action_items (id, description, department, severity, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID.String(), item.Description, item.Department, item.Severity, item.Status, item.CreatedAt, item.ResolvedAt)

	return err
}

func ResolveActionItem(db *sql.DB, id uuid.UUID) error {
	now := time.Now()
	_, err := db.Exec(`
		UPDATE action_items SET status = ?, resolved_at = ? WHERE id = ?
	`, models.ActionResolved, now, id.String())
	return err
}

func FindActionItems(db *sql.DB, department, status string, limit int) ([]models.ActionItem, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, description, department, severity, status, created_at, resolved_at
		FROM action_items
		WHERE (? = '' OR department = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, department, department, status, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ActionItem
	for rows.Next() {
		var item models.ActionItem
		var resolvedAt sql.NullTime

		if err := rows.Scan(&item.ID, &item.Description, &item.Department, &item.Severity, &item.Status, &item.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}

		if resolvedAt.Valid {
			item.ResolvedAt = &resolvedAt.Time
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

// ActionCounts holds the action item aggregates used for KPI derivation.
type ActionCounts struct {
	Total        int
	Resolved     int
	CriticalOpen int
}

func CountActionItems(db *sql.DB, department string) (*ActionCounts, error) {
	counts := &ActionCounts{}
	err := db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'resolved' THEN 1 END),
			COUNT(CASE WHEN status = 'open' AND severity = 'critical' THEN 1 END)
		FROM action_items
		WHERE ? = '' OR department = ?
	`, department, department).Scan(&counts.Total, &counts.Resolved, &counts.CriticalOpen)
	if err != nil {
		return nil, err
	}
	return counts, nil
}
