// ABOUTME: Task database operations and per-department aggregates
// ABOUTME: Handles task CRUD plus the counts the derived-metrics engine reads
package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

func CreateTask(db *sql.DB, task *models.Task) error {
	task.ID = uuid.New()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	if task.Status == "" {
		task.Status = models.TaskTodo
	}

	_, err := db.Exec(`
		INSERT INTO tasks (id, title, department, status, priority, assignee, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID.String(), task.Title, task.Department, task.Status, task.Priority, task.Assignee, task.DueDate, task.CreatedAt, task.UpdatedAt)

	return err
}

func GetTask(db *sql.DB, id uuid.UUID) (*models.Task, error) {
	task := &models.Task{}
	var priority, assignee sql.NullString
	var dueDate sql.NullTime

	err := db.QueryRow(`
		SELECT id, title, department, status, priority, assignee, due_date, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id.String()).Scan(
		&task.ID,
		&task.Title,
		&task.Department,
		&task.Status,
		&priority,
		&assignee,
		&dueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.Priority = priority.String
	task.Assignee = assignee.String
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}

	return task, nil
}

func UpdateTaskStatus(db *sql.DB, id uuid.UUID, status string) error {
	_, err := db.Exec(`
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), id.String())
	return err
}

func FindTasks(db *sql.DB, department, status string, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, title, department, status, priority, assignee, due_date, created_at, updated_at
		FROM tasks
		WHERE (? = '' OR department = ?) AND (? = '' OR status = ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`, department, department, status, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var priority, assignee sql.NullString
		var dueDate sql.NullTime

		if err := rows.Scan(&t.ID, &t.Title, &t.Department, &t.Status, &priority, &assignee, &dueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}

		t.Priority = priority.String
		t.Assignee = assignee.String
		if dueDate.Valid {
			t.DueDate = &dueDate.Time
		}

		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// TaskCounts holds the per-department task aggregates the derived-metrics
// engine reads in one pass.
type TaskCounts struct {
	Total   int
	Done    int
	Active  int // todo + in_progress
	Blocked int
	Overdue int
}

// CountTasks aggregates task counts, optionally scoped to one department
// (empty string means company-wide).
func CountTasks(db *sql.DB, department string, now time.Time) (*TaskCounts, error) {
	counts := &TaskCounts{}
	err := db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'done' THEN 1 END),
			COUNT(CASE WHEN status IN ('todo', 'in_progress') THEN 1 END),
			COUNT(CASE WHEN status = 'blocked' THEN 1 END),
			COUNT(CASE WHEN due_date IS NOT NULL AND due_date < ? AND status != 'done' THEN 1 END)
		FROM tasks
		WHERE ? = '' OR department = ?
	`, now, department, department).Scan(&counts.Total, &counts.Done, &counts.Active, &counts.Blocked, &counts.Overdue)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// LastActivity returns the most recent task update in a department, or nil
// when the department has no tasks at all.
func LastActivity(db *sql.DB, department string) (*time.Time, error) {
	var last sql.NullTime
	err := db.QueryRow(`
		SELECT MAX(updated_at) FROM tasks WHERE ? = '' OR department = ?
	`, department, department).Scan(&last)
	if err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// Departments returns the distinct department names present across tasks,
// milestones, and action items.
func Departments(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT department FROM tasks
		UNION
		SELECT DISTINCT department FROM milestones
		UNION
		SELECT DISTINCT department FROM action_items
		ORDER BY 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}

	return departments, rows.Err()
}
