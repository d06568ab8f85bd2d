// ABOUTME: Tests for summon request construction
// ABOUTME: Verifies deterministic instructions and endpoint derivation per category set
package summon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 1, 6, 45, 0, 0, time.UTC)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("sales-owner", []string{CategoryTasks, CategoryKPIs}, "morning-checkin", UrgencyNormal, testNow)
	require.NoError(t, err)

	assert.Equal(t, "data_request", req.SummonType)
	assert.Equal(t, "sales-owner", req.Target)
	assert.Equal(t, []string{"kpis", "tasks"}, req.DataNeeded, "categories are sorted")
	assert.Equal(t, "morning-checkin", req.Context)
	assert.Equal(t, UrgencyNormal, req.Urgency)
	assert.Equal(t, testNow, req.Timestamp)
	assert.Equal(t, []string{"/api/kpis", "/api/tasks"}, req.PushEndpoints)
}

func TestNewRequestDeterministicInstructions(t *testing.T) {
	a, err := NewRequest("sales-owner", []string{CategoryTasks, CategoryKPIs}, "refresh", "", testNow)
	require.NoError(t, err)
	b, err := NewRequest("sales-owner", []string{CategoryKPIs, CategoryTasks}, "refresh", "", testNow)
	require.NoError(t, err)

	assert.Equal(t, a.Instructions, b.Instructions, "category order must not change the text")
	assert.Equal(t, a.PushEndpoints, b.PushEndpoints)

	expected := "Data requested (refresh):\n" +
		"- kpis: Report current KPI values with targets for your department.\n" +
		"- tasks: Update task statuses: mark completed work done and flag anything stuck."
	assert.Equal(t, expected, a.Instructions)
}

func TestNewRequestValidation(t *testing.T) {
	_, err := NewRequest("", []string{CategoryKPIs}, "ctx", "", testNow)
	assert.Error(t, err, "target is required")

	_, err = NewRequest("sales-owner", nil, "ctx", "", testNow)
	assert.Error(t, err, "categories are required")

	_, err = NewRequest("sales-owner", []string{"horoscopes"}, "ctx", "", testNow)
	assert.ErrorContains(t, err, "unknown data category")
}

func TestNewRequestDefaultUrgency(t *testing.T) {
	req, err := NewRequest("sales-owner", []string{CategoryStatus}, "ctx", "", testNow)
	require.NoError(t, err)
	assert.Equal(t, UrgencyNormal, req.Urgency)
}

func TestKnownCategories(t *testing.T) {
	assert.Equal(t,
		[]string{"blockers", "kpis", "milestones", "status", "tasks"},
		KnownCategories())
}
