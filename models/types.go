// ABOUTME: Data models for dashboard entities
// ABOUTME: Defines Task, ActionItem, KPISnapshot, Milestone, PipelineDeal, and SyncState structs
package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status constants.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
	TaskBlocked    = "blocked"
)

// Task priority constants.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority,omitempty"`
	Assignee   string     `json:"assignee,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsOverdue reports whether the task is past its due date and not done.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskDone {
		return false
	}
	return t.DueDate.Before(now)
}

// Action item severity constants.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Action item status constants.
const (
	ActionOpen     = "open"
	ActionResolved = "resolved"
)

type ActionItem struct {
	ID          uuid.UUID  `json:"id"`
	Description string     `json:"description"`
	Department  string     `json:"department"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// KPI status bucket constants.
const (
	KPIOnTrack    = "on_track"
	KPIInProgress = "in_progress"
	KPIBehind     = "behind"
)

// KPI trend constants.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// HealthKPIName is the sentinel kpi_name under which department health
// scores are stored in kpi_snapshots.
const HealthKPIName = "department_health"

type KPISnapshot struct {
	ID           uuid.UUID `json:"id"`
	Department   string    `json:"department"`
	KPIName      string    `json:"kpi_name"`
	Target       float64   `json:"target"`
	CurrentValue float64   `json:"current_value"`
	Status       string    `json:"status"`
	Trend        string    `json:"trend"`
	SnapshotDate string    `json:"snapshot_date"` // YYYY-MM-DD
}

// Milestone status constants.
const (
	MilestonePending    = "pending"
	MilestoneInProgress = "in_progress"
	MilestoneCompleted  = "completed"
	MilestoneMissed     = "missed"
)

type Milestone struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	TargetDate  time.Time `json:"target_date"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal reports whether the milestone can no longer be auto-flagged.
func (m *Milestone) IsTerminal() bool {
	return m.Status == MilestoneCompleted || m.Status == MilestoneMissed
}

// Pipeline stage constants.
const (
	StageLead        = "lead"
	StageQualified   = "qualified"
	StageOpportunity = "opportunity"
	StageProposal    = "proposal"
	StageClosedWon   = "closed_won"
	StageClosedLost  = "closed_lost"
)

// SourceCRM marks pipeline deals mirrored from the external CRM. Rows
// carrying this source are wiped and rewritten on every sync; deals from
// any other source are never touched by reconciliation.
const SourceCRM = "external-crm"

type PipelineDeal struct {
	ID                uuid.UUID  `json:"id"`
	CompanyName       string     `json:"company_name"`
	ContactName       string     `json:"contact_name,omitempty"`
	Stage             string     `json:"stage"`
	Value             int64      `json:"value,omitempty"` // in cents
	Currency          string     `json:"currency"`
	Owner             string     `json:"owner,omitempty"`
	Source            string     `json:"source"`
	Notes             string     `json:"notes,omitempty"`
	CrossSellProducts []string   `json:"cross_sell_products,omitempty"`
	ExpectedClose     *time.Time `json:"expected_close,omitempty"`
	ExternalID        string     `json:"external_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsActive reports whether the deal still counts toward the open pipeline.
func (d *PipelineDeal) IsActive() bool {
	return d.Stage != StageClosedWon && d.Stage != StageClosedLost
}

// Sync status constants.
const (
	SyncOK    = "ok"
	SyncError = "error"
)

// Sync source names recorded in sync_state.
const (
	SourceNameCRM           = "crm"
	SourceNameKPIs          = "kpis"
	SourceNameMilestones    = "milestones"
	SourceNameDashboard     = "dashboard"
	SourceNameKanban        = "kanban"
	SourceNameGantt         = "gantt"
	SourceNameMasterRefresh = "master_refresh"
	SourceNameStartup       = "startup"
	SourceNameActionItems   = "action_items"
)

type SyncState struct {
	Source    string     `json:"source"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	Status    string     `json:"status"`
	Details   string     `json:"details,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
