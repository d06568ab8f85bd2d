// ABOUTME: Summon request document and deterministic guidance generation
// ABOUTME: Builds the JSON payload asking a collaborator for specific data categories
package summon

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Data categories a collaborator can be summoned for.
const (
	CategoryKPIs       = "kpis"
	CategoryTasks      = "tasks"
	CategoryMilestones = "milestones"
	CategoryStatus     = "status"
	CategoryBlockers   = "blockers"
)

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"
)

// Request is the document written into the queue, one file per summon.
// Written once, never mutated; consumption is the collaborator's job.
type Request struct {
	SummonType    string    `json:"summon_type"`
	Target        string    `json:"target"`
	DataNeeded    []string  `json:"data_needed"`
	Context       string    `json:"context"`
	Urgency       string    `json:"urgency"`
	Timestamp     time.Time `json:"timestamp"`
	Instructions  string    `json:"instructions"`
	PushEndpoints []string  `json:"push_endpoints"`
}

// categoryGuidance maps each data category to its fixed instruction line
// and the endpoint the collaborator should push to. The text is a lookup,
// not generated, so the same categories always produce the same guidance.
var categoryGuidance = map[string]struct {
	instruction string
	endpoint    string
}{
	CategoryKPIs:       {"Report current KPI values with targets for your department.", "/api/kpis"},
	CategoryTasks:      {"Update task statuses: mark completed work done and flag anything stuck.", "/api/tasks"},
	CategoryMilestones: {"Confirm milestone progress and update any target dates that have slipped.", "/api/milestones"},
	CategoryStatus:     {"Provide a short department status summary covering the last cycle.", "/api/status"},
	CategoryBlockers:   {"List open blockers with owner and expected resolution for each.", "/api/actions"},
}

// KnownCategories returns the valid category names in sorted order.
func KnownCategories() []string {
	names := make([]string, 0, len(categoryGuidance))
	for name := range categoryGuidance {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRequest builds a summon request. Categories are normalized to
// sorted order so the same (categories, context) pair always yields the
// same instructions and endpoints.
func NewRequest(target string, categories []string, context, urgency string, now time.Time) (*Request, error) {
	if target == "" {
		return nil, fmt.Errorf("summon target is required")
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one data category is required")
	}
	if urgency == "" {
		urgency = UrgencyNormal
	}

	normalized := make([]string, len(categories))
	copy(normalized, categories)
	sort.Strings(normalized)

	var lines []string
	var endpoints []string
	seen := map[string]bool{}
	for _, cat := range normalized {
		guidance, ok := categoryGuidance[cat]
		if !ok {
			return nil, fmt.Errorf("unknown data category: %s", cat)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", cat, guidance.instruction))
		if !seen[guidance.endpoint] {
			endpoints = append(endpoints, guidance.endpoint)
			seen[guidance.endpoint] = true
		}
	}

	instructions := fmt.Sprintf("Data requested (%s):\n%s", context, strings.Join(lines, "\n"))

	return &Request{
		SummonType:    "data_request",
		Target:        target,
		DataNeeded:    normalized,
		Context:       context,
		Urgency:       urgency,
		Timestamp:     now.UTC(),
		Instructions:  instructions,
		PushEndpoints: endpoints,
	}, nil
}
