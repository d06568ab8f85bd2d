// ABOUTME: HTTP handlers for refresh triggers, source sync, summons, and data pushes
// ABOUTME: Thin JSON decoding over the scheduler, summoner, and db packages
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// handleRefresh triggers one named refresh. Targets mirror the dashboard
// surfaces: dashboard, kanban, gantt, kpis, or all.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	var err error
	switch target {
	case "dashboard":
		err = s.scheduler.RefreshDashboard()
	case "kanban":
		err = s.scheduler.RefreshKanban()
	case "gantt":
		err = s.scheduler.RefreshGantt()
	case "kpis":
		err = s.scheduler.RefreshKPIs()
	case "all":
		err = s.scheduler.MasterRefresh(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown refresh target: %s", target)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "target": target})
}

// handleSync runs every sync source and reports per-source outcomes. A
// failing source shows up in the map; the response itself is still 200
// because the run completed.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	results := s.scheduler.SyncAllSources(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": results})
}

type summonRequest struct {
	Target     string   `json:"target"` // empty means the whole roster
	Categories []string `json:"categories"`
	Context    string   `json:"context"`
	Urgency    string   `json:"urgency"`
}

func (s *Server) handleSummon(w http.ResponseWriter, r *http.Request) {
	var req summonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, http.StatusBadRequest, "categories are required")
		return
	}
	if req.Context == "" {
		req.Context = "manual"
	}

	var ids []string
	var err error
	if req.Target == "" {
		ids, err = s.summoner.SummonAll(req.Categories, req.Context, req.Urgency)
	} else {
		var id string
		id, err = s.summoner.Summon(req.Target, req.Categories, req.Context, req.Urgency)
		ids = []string{id}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "summon failed: %v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": ids})
}

type kpiPush struct {
	Department   string  `json:"department"`
	KPIName      string  `json:"kpi_name"`
	Target       float64 `json:"target"`
	CurrentValue float64 `json:"current_value"`
	Status       string  `json:"status"`
	Trend        string  `json:"trend"`
	SnapshotDate string  `json:"snapshot_date"`
}

// handlePushKPI ingests one KPI value from a collaborator. Same-key
// pushes replace the previous snapshot, so retries are harmless.
func (s *Server) handlePushKPI(w http.ResponseWriter, r *http.Request) {
	var req kpiPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Department == "" || req.KPIName == "" {
		writeError(w, http.StatusBadRequest, "department and kpi_name are required")
		return
	}
	if req.SnapshotDate == "" {
		req.SnapshotDate = time.Now().UTC().Format("2006-01-02")
	}
	if req.Status == "" {
		req.Status = models.KPIInProgress
	}
	if req.Trend == "" {
		req.Trend = models.TrendFlat
	}

	snap := &models.KPISnapshot{
		Department:   req.Department,
		KPIName:      req.KPIName,
		Target:       req.Target,
		CurrentValue: req.CurrentValue,
		Status:       req.Status,
		Trend:        req.Trend,
		SnapshotDate: req.SnapshotDate,
	}
	if err := db.ReplaceKPISnapshot(s.db, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store snapshot: %v", err)
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

type taskPush struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	Assignee   string     `json:"assignee"`
	DueDate    *time.Time `json:"due_date"`
}

// handlePushTask creates a task, or updates an existing task's status
// when an id is supplied.
func (s *Server) handlePushTask(w http.ResponseWriter, r *http.Request) {
	var req taskPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid task id: %v", err)
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required for updates")
			return
		}
		if err := db.UpdateTaskStatus(s.db, id, req.Status); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update task: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": req.ID})
		return
	}

	if req.Title == "" || req.Department == "" {
		writeError(w, http.StatusBadRequest, "title and department are required")
		return
	}
	task := &models.Task{
		Title:      req.Title,
		Department: req.Department,
		Status:     req.Status,
		Priority:   req.Priority,
		Assignee:   req.Assignee,
		DueDate:    req.DueDate,
	}
	if err := db.CreateTask(s.db, task); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task: %v", err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

type milestonePush struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Department  string     `json:"department"`
	TargetDate  *time.Time `json:"target_date"`
	Status      string     `json:"status"`
	Description *string    `json:"description"`
}

func (s *Server) handlePushMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestonePush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid milestone id: %v", err)
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required for updates")
			return
		}
		if !validMilestoneStatus(req.Status) {
			writeError(w, http.StatusBadRequest, "unknown milestone status: %s", req.Status)
			return
		}
		current, err := db.GetMilestone(s.db, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to look up milestone: %v", err)
			return
		}
		if current == nil {
			writeError(w, http.StatusNotFound, "milestone not found: %s", req.ID)
			return
		}
		// completed and missed are terminal; a push can still edit the
		// description but never reopens the milestone
		if current.IsTerminal() && req.Status != current.Status {
			writeError(w, http.StatusConflict, "milestone is %s and cannot move to %s", current.Status, req.Status)
			return
		}
		if err := db.UpdateMilestoneStatus(s.db, id, req.Status, req.Description); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update milestone: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": req.ID})
		return
	}

	if req.Name == "" || req.Department == "" || req.TargetDate == nil {
		writeError(w, http.StatusBadRequest, "name, department, and target_date are required")
		return
	}
	m := &models.Milestone{
		Name:       req.Name,
		Department: req.Department,
		TargetDate: *req.TargetDate,
		Status:     req.Status,
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if err := db.CreateMilestone(s.db, m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create milestone: %v", err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func validMilestoneStatus(status string) bool {
	switch status {
	case models.MilestonePending, models.MilestoneInProgress, models.MilestoneCompleted, models.MilestoneMissed:
		return true
	}
	return false
}

type actionPush struct {
	ID          string `json:"id"`
	Resolved    bool   `json:"resolved"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Severity    string `json:"severity"`
}

// handlePushAction ingests blocker and action-item reports. Pushes also
// touch the action_items sync source so staleness tracking covers them.
func (s *Server) handlePushAction(w http.ResponseWriter, r *http.Request) {
	var req actionPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if req.ID != "" {
		if !req.Resolved {
			writeError(w, http.StatusBadRequest, "only resolution updates are supported for existing items")
			return
		}
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid action item id: %v", err)
			return
		}
		if err := db.ResolveActionItem(s.db, id); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve action item: %v", err)
			return
		}
		_ = db.RecordSyncOK(s.db, models.SourceNameActionItems, "")
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "id": req.ID})
		return
	}

	if req.Description == "" || req.Department == "" {
		writeError(w, http.StatusBadRequest, "description and department are required")
		return
	}
	item := &models.ActionItem{
		Description: req.Description,
		Department:  req.Department,
		Severity:    req.Severity,
	}
	if err := db.CreateActionItem(s.db, item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create action item: %v", err)
		return
	}
	_ = db.RecordSyncOK(s.db, models.SourceNameActionItems, "")

	writeJSON(w, http.StatusCreated, item)
}

type statusPush struct {
	Department string `json:"department"`
	Summary    string `json:"summary"`
}

// handlePushStatus records a free-form department status. Stored in
// sync_state under a per-department source so the dashboard can show
// the latest summary and how old it is.
func (s *Server) handlePushStatus(w http.ResponseWriter, r *http.Request) {
	var req statusPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Department == "" || req.Summary == "" {
		writeError(w, http.StatusBadRequest, "department and summary are required")
		return
	}

	source := "status:" + req.Department
	if err := db.UpsertSyncState(s.db, source, models.SyncOK, req.Summary); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record status: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "source": source})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	states, err := db.GetAllSyncStates(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sync state: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": states})
}

func (s *Server) handleHealthScores(w http.ResponseWriter, r *http.Request) {
	scores, err := db.LatestHealthScores(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load health scores: %v", err)
		return
	}

	type deptHealth struct {
		Department   string `json:"department"`
		Score        int    `json:"score"`
		Status       string `json:"status"`
		Trend        string `json:"trend"`
		SnapshotDate string `json:"snapshot_date"`
	}
	out := make([]deptHealth, 0, len(scores))
	for _, snap := range scores {
		out = append(out, deptHealth{
			Department:   snap.Department,
			Score:        int(snap.CurrentValue),
			Status:       snap.Status,
			Trend:        snap.Trend,
			SnapshotDate: snap.SnapshotDate,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"departments": out})
}
