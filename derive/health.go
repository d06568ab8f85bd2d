// ABOUTME: Department health score computation (0-100 composite)
// ABOUTME: Pure scoring over task, KPI, blocker, and activity inputs with store-backed recompute
package derive

import (
	"fmt"
	"math"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// Health score coefficients. The formula is deliberately deterministic
// and side-effect-free so it is trivially unit-testable.
const (
	taskWeight     = 40
	kpiWeight      = 20
	baseScore      = 40
	neutralTask    = 20 // no tasks recorded yet
	neutralKPI     = 15 // no KPIs recorded yet
	blockerCost    = 10
	maxBlockerPen  = 20
	activityGrace  = 2 // days before staleness starts costing
	activityCost   = 5
	maxActivityPen = 20
)

// HealthInputs are the per-department facts the score is computed from.
type HealthInputs struct {
	TotalTasks        int
	DoneTasks         int
	TotalKPIs         int
	OnTrackKPIs       int
	OpenBlockers      int
	DaysSinceActivity int // ignored when ActivityKnown is false
	ActivityKnown     bool
}

// HealthScore computes the 0-100 composite:
// taskScore + kpiScore + 40 - blockerPenalty - activityPenalty, clamped.
func HealthScore(in HealthInputs) int {
	taskScore := neutralTask
	if in.TotalTasks > 0 {
		taskScore = int(math.Round(float64(in.DoneTasks) / float64(in.TotalTasks) * taskWeight))
	}

	kpiScore := neutralKPI
	if in.TotalKPIs > 0 {
		kpiScore = int(math.Round(float64(in.OnTrackKPIs) / float64(in.TotalKPIs) * kpiWeight))
	}

	blockerPenalty := blockerCost * in.OpenBlockers
	if blockerPenalty > maxBlockerPen {
		blockerPenalty = maxBlockerPen
	}

	activityPenalty := 0
	if in.ActivityKnown {
		activityPenalty = (in.DaysSinceActivity - activityGrace) * activityCost
		if activityPenalty < 0 {
			activityPenalty = 0
		}
		if activityPenalty > maxActivityPen {
			activityPenalty = maxActivityPen
		}
	}

	score := taskScore + kpiScore + baseScore - blockerPenalty - activityPenalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RecomputeHealthScores computes every department's health score from
// the store and replaces today's sentinel snapshot per department.
func (e *Engine) RecomputeHealthScores() error {
	now := e.now().UTC()
	today := now.Format("2006-01-02")

	departments, err := db.Departments(e.db)
	if err != nil {
		return fmt.Errorf("failed to list departments: %w", err)
	}

	for _, dept := range departments {
		tasks, err := db.CountTasks(e.db, dept, now)
		if err != nil {
			return fmt.Errorf("failed to count tasks for %s: %w", dept, err)
		}

		totalKPIs, onTrackKPIs, err := db.CountKPIs(e.db, dept, today)
		if err != nil {
			return fmt.Errorf("failed to count KPIs for %s: %w", dept, err)
		}

		lastActivity, err := db.LastActivity(e.db, dept)
		if err != nil {
			return fmt.Errorf("failed to get last activity for %s: %w", dept, err)
		}

		in := HealthInputs{
			TotalTasks:   tasks.Total,
			DoneTasks:    tasks.Done,
			TotalKPIs:    totalKPIs,
			OnTrackKPIs:  onTrackKPIs,
			OpenBlockers: tasks.Blocked,
		}
		if lastActivity != nil {
			in.ActivityKnown = true
			in.DaysSinceActivity = int(now.Sub(*lastActivity).Hours() / 24)
		}

		score := HealthScore(in)

		previous, hasPrevious, err := db.PreviousKPIValue(e.db, dept, models.HealthKPIName, today)
		if err != nil {
			return fmt.Errorf("failed to look up previous health for %s: %w", dept, err)
		}

		snap := &models.KPISnapshot{
			Department:   dept,
			KPIName:      models.HealthKPIName,
			Target:       100,
			CurrentValue: float64(score),
			Status:       healthStatus(score),
			Trend:        TrendFor(float64(score), previous, hasPrevious),
			SnapshotDate: today,
		}

		if err := db.ReplaceKPISnapshot(e.db, snap); err != nil {
			return fmt.Errorf("failed to store health snapshot for %s: %w", dept, err)
		}
	}

	return nil
}

func healthStatus(score int) string {
	switch {
	case score >= 70:
		return models.KPIOnTrack
	case score >= 40:
		return models.KPIInProgress
	default:
		return models.KPIBehind
	}
}
