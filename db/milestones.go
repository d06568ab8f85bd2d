// ABOUTME: Milestone database operations
// ABOUTME: Handles milestone CRUD and the status transitions used by risk flagging
package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

func CreateMilestone(db *sql.DB, m *models.Milestone) error {
	m.ID = uuid.New()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	if m.Status == "" {
		m.Status = models.MilestonePending
	}

	_, err := db.Exec(`
		INSERT INTO milestones (id, name, department, target_date, status, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID.String(), m.Name, m.Department, m.TargetDate, m.Status, m.Description, m.CreatedAt, m.UpdatedAt)

	return err
}

func GetMilestone(db *sql.DB, id uuid.UUID) (*models.Milestone, error) {
	m := &models.Milestone{}
	var description sql.NullString

	err := db.QueryRow(`
		SELECT id, name, department, target_date, status, description, created_at, updated_at
		FROM milestones WHERE id = ?
	`, id.String()).Scan(&m.ID, &m.Name, &m.Department, &m.TargetDate, &m.Status, &description, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.Description = description.String
	return m, nil
}

// FindOpenMilestones returns every milestone not yet completed or missed,
// ordered by target date. This is the working set for risk flagging.
func FindOpenMilestones(db *sql.DB) ([]models.Milestone, error) {
	rows, err := db.Query(`
		SELECT id, name, department, target_date, status, description, created_at, updated_at
		FROM milestones
		WHERE status NOT IN ('completed', 'missed')
		ORDER BY target_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []models.Milestone
	for rows.Next() {
		var m models.Milestone
		var description sql.NullString

		if err := rows.Scan(&m.ID, &m.Name, &m.Department, &m.TargetDate, &m.Status, &description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}

		m.Description = description.String
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}

// UpdateMilestoneStatus transitions a milestone, optionally rewriting its
// description (pass nil to leave the description untouched).
func UpdateMilestoneStatus(db *sql.DB, id uuid.UUID, status string, description *string) error {
	if description != nil {
		_, err := db.Exec(`
			UPDATE milestones SET status = ?, description = ?, updated_at = ? WHERE id = ?
		`, status, *description, time.Now(), id.String())
		return err
	}

	_, err := db.Exec(`
		UPDATE milestones SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), id.String())
	return err
}

// CompleteMilestone is the external completion path; it is the only way a
// milestone leaves the flagging job's reach besides being missed.
func CompleteMilestone(db *sql.DB, id uuid.UUID) error {
	return UpdateMilestoneStatus(db, id, models.MilestoneCompleted, nil)
}
