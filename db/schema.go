// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation and initialization
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	department TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo', 'in_progress', 'done', 'blocked')),
	priority TEXT CHECK(priority IN ('low', 'medium', 'high')),
	assignee TEXT,
	due_date DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_department ON tasks(department);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS action_items (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	department TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT 'medium' CHECK(severity IN ('low', 'medium', 'high', 'critical')),
	status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'resolved')),
	created_at DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_action_items_department ON action_items(department);
CREATE INDEX IF NOT EXISTS idx_action_items_status ON action_items(status);

CREATE TABLE IF NOT EXISTS kpi_snapshots (
	id TEXT PRIMARY KEY,
	department TEXT NOT NULL,
	kpi_name TEXT NOT NULL,
	target REAL NOT NULL DEFAULT 0,
	current_value REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	trend TEXT NOT NULL DEFAULT 'flat',
	snapshot_date TEXT NOT NULL,
	UNIQUE(department, kpi_name, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_kpi_snapshots_date ON kpi_snapshots(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_kpi_snapshots_name ON kpi_snapshots(kpi_name);

CREATE TABLE IF NOT EXISTS milestones (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	department TEXT NOT NULL,
	target_date DATETIME NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'completed', 'missed')),
	description TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_milestones_department ON milestones(department);
CREATE INDEX IF NOT EXISTS idx_milestones_status ON milestones(status);

CREATE TABLE IF NOT EXISTS pipeline_deals (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	contact_name TEXT,
	stage TEXT NOT NULL DEFAULT 'lead' CHECK(stage IN ('lead', 'qualified', 'opportunity', 'proposal', 'closed_won', 'closed_lost')),
	value INTEGER NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'USD',
	owner TEXT,
	source TEXT NOT NULL,
	notes TEXT,
	cross_sell_products TEXT,
	expected_close DATETIME,
	external_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_deals_source ON pipeline_deals(source);
CREATE INDEX IF NOT EXISTS idx_pipeline_deals_stage ON pipeline_deals(stage);

CREATE TABLE IF NOT EXISTS sync_state (
	source TEXT PRIMARY KEY,
	last_sync DATETIME,
	status TEXT NOT NULL CHECK(status IN ('ok', 'error')),
	details TEXT,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
