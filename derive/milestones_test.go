// ABOUTME: Tests for milestone risk flagging
// ABOUTME: Covers missed transitions, the at-risk window, and flagging idempotency
package derive

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

func TestFlagMilestones(t *testing.T) {
	engine, database := setupTestEngine(t)

	// Clock is fixed at 2026-09-01; at-risk window is 3 days
	overdue := &models.Milestone{
		Name: "Overdue", Department: "sales",
		TargetDate: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	}
	atRisk := &models.Milestone{
		Name: "At risk", Department: "sales",
		TargetDate:  time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		Description: "big launch",
	}
	safe := &models.Milestone{
		Name: "Safe", Department: "sales",
		TargetDate: time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
	}
	completed := &models.Milestone{
		Name: "Shipped", Department: "sales",
		TargetDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:     models.MilestoneCompleted,
	}
	for _, m := range []*models.Milestone{overdue, atRisk, safe, completed} {
		require.NoError(t, db.CreateMilestone(database, m))
	}

	result, err := engine.FlagMilestones()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Missed)
	assert.Equal(t, 1, result.AtRisk)

	stored, err := db.GetMilestone(database, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneMissed, stored.Status)

	stored, err = db.GetMilestone(database, atRisk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneInProgress, stored.Status)
	assert.Equal(t, "big launch "+AtRiskMarker, stored.Description)

	stored, err = db.GetMilestone(database, safe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MilestonePending, stored.Status)
	assert.Empty(t, stored.Description)

	stored, err = db.GetMilestone(database, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneCompleted, stored.Status)
}

func TestFlagMilestonesIsIdempotent(t *testing.T) {
	engine, database := setupTestEngine(t)

	m := &models.Milestone{
		Name: "Repeat", Department: "sales",
		TargetDate:  time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		Description: "ship it",
	}
	require.NoError(t, db.CreateMilestone(database, m))

	for i := 0; i < 3; i++ {
		_, err := engine.FlagMilestones()
		require.NoError(t, err)
	}

	stored, err := db.GetMilestone(database, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stored.Description, AtRiskMarker),
		"marker must be appended exactly once across repeated passes")
}

func TestFlagMilestonesDueTodayIsAtRisk(t *testing.T) {
	engine, database := setupTestEngine(t)

	m := &models.Milestone{
		Name: "Today", Department: "sales",
		TargetDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.CreateMilestone(database, m))

	result, err := engine.FlagMilestones()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Missed, "due today is not overdue")
	assert.Equal(t, 1, result.AtRisk)

	stored, err := db.GetMilestone(database, m.ID)
	require.NoError(t, err)
	assert.Equal(t, AtRiskMarker, stored.Description)
}
