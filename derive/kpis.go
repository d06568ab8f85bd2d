// ABOUTME: Derived KPI recomputation from the local metrics store
// ABOUTME: Computes value, status bucket, and trend per KPI and replaces today's snapshots
package derive

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// CompanyDepartment is the department under which company-wide derived
// KPIs are stored.
const CompanyDepartment = "company"

// Derived KPI names.
const (
	KPIPipelineValue        = "pipeline_value"
	KPIActiveDeals          = "active_deals"
	KPITaskCompletionRate   = "task_completion_rate"
	KPIActiveTasks          = "active_tasks"
	KPIOpenBlockers         = "open_blockers"
	KPIActionResolutionRate = "action_resolution_rate"
	KPICriticalOpenActions  = "critical_open_actions"
	KPIOverdueTasks         = "overdue_tasks"
)

// Threshold documents the status bucket boundaries for one KPI. For a
// higher-is-better KPI, OnTrack and InProgress are minimum values; for a
// lower-is-better KPI they are maximums. These are configuration, tuned
// for the dashboard's scale, not derived from anything.
type Threshold struct {
	HigherIsBetter bool
	OnTrack        float64
	InProgress     float64
}

// Thresholds maps each derived KPI to its status buckets.
var Thresholds = map[string]Threshold{
	KPITaskCompletionRate:   {HigherIsBetter: true, OnTrack: 70, InProgress: 40},
	KPIActionResolutionRate: {HigherIsBetter: true, OnTrack: 70, InProgress: 40},
	KPIPipelineValue:        {HigherIsBetter: true, OnTrack: 250000, InProgress: 100000},
	KPIActiveDeals:          {HigherIsBetter: true, OnTrack: 10, InProgress: 5},
	KPIActiveTasks:          {HigherIsBetter: true, OnTrack: 5, InProgress: 1},
	KPIOpenBlockers:         {HigherIsBetter: false, OnTrack: 0, InProgress: 2},
	KPICriticalOpenActions:  {HigherIsBetter: false, OnTrack: 0, InProgress: 1},
	KPIOverdueTasks:         {HigherIsBetter: false, OnTrack: 0, InProgress: 3},
}

// Engine recomputes analytics purely from what is already in the store.
// It makes no external calls; the clock is injectable for tests.
type Engine struct {
	db           *sql.DB
	now          func() time.Time
	atRiskWindow int // days
}

func NewEngine(database *sql.DB, atRiskWindowDays int) *Engine {
	if atRiskWindowDays <= 0 {
		atRiskWindowDays = 3
	}
	return &Engine{
		db:           database,
		now:          time.Now,
		atRiskWindow: atRiskWindowDays,
	}
}

// WithClock overrides the time source, used in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RecomputeKPIs derives every company-wide KPI and replaces today's
// snapshot for each under the natural-key invariant. Running it twice in
// the same day yields exactly one stored row per KPI.
func (e *Engine) RecomputeKPIs() error {
	now := e.now().UTC()
	today := now.Format("2006-01-02")

	tasks, err := db.CountTasks(e.db, "", now)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	actions, err := db.CountActionItems(e.db, "")
	if err != nil {
		return fmt.Errorf("failed to count action items: %w", err)
	}

	deals, err := db.AggregateDeals(e.db)
	if err != nil {
		return fmt.Errorf("failed to aggregate deals: %w", err)
	}

	values := map[string]float64{
		KPIPipelineValue:        float64(deals.ActiveValue) / 100, // cents to whole units
		KPIActiveDeals:          float64(deals.ActiveCount),
		KPITaskCompletionRate:   rate(tasks.Done, tasks.Total),
		KPIActiveTasks:          float64(tasks.Active),
		KPIOpenBlockers:         float64(tasks.Blocked),
		KPIActionResolutionRate: rate(actions.Resolved, actions.Total),
		KPICriticalOpenActions:  float64(actions.CriticalOpen),
		KPIOverdueTasks:         float64(tasks.Overdue),
	}

	for name, value := range values {
		threshold := Thresholds[name]

		previous, hasPrevious, err := db.PreviousKPIValue(e.db, CompanyDepartment, name, today)
		if err != nil {
			return fmt.Errorf("failed to look up previous %s: %w", name, err)
		}

		snap := &models.KPISnapshot{
			Department:   CompanyDepartment,
			KPIName:      name,
			Target:       threshold.OnTrack,
			CurrentValue: value,
			Status:       StatusFor(value, threshold),
			Trend:        TrendFor(value, previous, hasPrevious),
			SnapshotDate: today,
		}

		if err := db.ReplaceKPISnapshot(e.db, snap); err != nil {
			return fmt.Errorf("failed to store %s snapshot: %w", name, err)
		}
	}

	return nil
}

// StatusFor buckets a KPI value against its threshold.
func StatusFor(value float64, t Threshold) string {
	if t.HigherIsBetter {
		switch {
		case value >= t.OnTrack:
			return models.KPIOnTrack
		case value >= t.InProgress:
			return models.KPIInProgress
		default:
			return models.KPIBehind
		}
	}

	switch {
	case value <= t.OnTrack:
		return models.KPIOnTrack
	case value <= t.InProgress:
		return models.KPIInProgress
	default:
		return models.KPIBehind
	}
}

// TrendFor derives the trend arrow from the previous snapshot value.
func TrendFor(value, previous float64, hasPrevious bool) string {
	if !hasPrevious {
		return models.TrendFlat
	}
	switch {
	case value > previous:
		return models.TrendUp
	case value < previous:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
