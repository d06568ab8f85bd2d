// ABOUTME: Remote-to-local pipeline stage mapping
// ABOUTME: Total table over known remote stages with a lead fallback for anything else
package crm

import (
	"strings"

	"github.com/opspulse/opspulse/models"
)

// stageMapping maps remote opportunity stage strings (lowercased) to the
// local pipeline stages.
var stageMapping = map[string]string{
	"prospecting":          models.StageLead,
	"discovery":            models.StageLead,
	"qualification":        models.StageQualified,
	"qualified":            models.StageQualified,
	"needs analysis":       models.StageOpportunity,
	"value proposition":    models.StageOpportunity,
	"opportunity":          models.StageOpportunity,
	"proposal":             models.StageProposal,
	"proposal/price quote": models.StageProposal,
	"negotiation":          models.StageProposal,
	"negotiation/review":   models.StageProposal,
	"closed won":           models.StageClosedWon,
	"won":                  models.StageClosedWon,
	"closed lost":          models.StageClosedLost,
	"lost":                 models.StageClosedLost,
}

// MapStage converts a remote stage string to a local pipeline stage. An
// unrecognized stage falls back to lead rather than failing the sync.
func MapStage(remote string) string {
	if stage, ok := stageMapping[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return stage
	}
	return models.StageLead
}
