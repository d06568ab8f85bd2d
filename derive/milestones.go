// ABOUTME: Milestone risk flagging job
// ABOUTME: Transitions overdue milestones to missed and marks soon-due pending ones at risk
package derive

import (
	"fmt"
	"strings"
	"time"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// AtRiskMarker is the fixed annotation appended to a milestone's
// description when it enters the risk window. Re-runs detect the marker
// and never append it twice.
const AtRiskMarker = "[AT RISK]"

// FlagResult reports what a flagging pass changed.
type FlagResult struct {
	Missed int
	AtRisk int
}

// FlagMilestones walks every non-terminal milestone once. Overdue ones
// become missed; pending ones due within the risk window become
// in_progress with the at-risk marker appended exactly once. The pass is
// idempotent: already-missed and completed milestones are never touched,
// and a marked milestone is not re-marked.
func (e *Engine) FlagMilestones() (*FlagResult, error) {
	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	riskCutoff := today.AddDate(0, 0, e.atRiskWindow)

	milestones, err := db.FindOpenMilestones(e.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load open milestones: %w", err)
	}

	result := &FlagResult{}
	for _, m := range milestones {
		target := m.TargetDate.UTC()

		if target.Before(today) {
			if err := db.UpdateMilestoneStatus(e.db, m.ID, models.MilestoneMissed, nil); err != nil {
				return result, fmt.Errorf("failed to mark milestone %s missed: %w", m.Name, err)
			}
			result.Missed++
			continue
		}

		if m.Status == models.MilestonePending && !target.After(riskCutoff) {
			description := m.Description
			if !strings.Contains(description, AtRiskMarker) {
				if description != "" {
					description += " "
				}
				description += AtRiskMarker
			}
			if err := db.UpdateMilestoneStatus(e.db, m.ID, models.MilestoneInProgress, &description); err != nil {
				return result, fmt.Errorf("failed to mark milestone %s at risk: %w", m.Name, err)
			}
			result.AtRisk++
		}
	}

	return result, nil
}
