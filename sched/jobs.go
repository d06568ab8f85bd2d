// ABOUTME: The jobs the clock runs and the manual trigger surface behind the web API
// ABOUTME: Each refresh records its sync_state row so staleness is always inspectable
package sched

import (
	"context"
	"fmt"
	"log"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
	"github.com/opspulse/opspulse/summon"
)

// RunOnStartup recomputes local state so the dashboard is fresh the
// moment the engine is up. Startup never summons anyone: a restart at
// 3am must not page the roster.
func (s *Scheduler) RunOnStartup() {
	s.runJob("startup", func() error {
		if err := s.engine.RecomputeKPIs(); err != nil {
			db.RecordSyncError(s.db, models.SourceNameStartup, err)
			return err
		}
		if err := s.engine.RecomputeHealthScores(); err != nil {
			db.RecordSyncError(s.db, models.SourceNameStartup, err)
			return err
		}
		if _, err := s.engine.FlagMilestones(); err != nil {
			db.RecordSyncError(s.db, models.SourceNameStartup, err)
			return err
		}
		return db.RecordSyncOK(s.db, models.SourceNameStartup, "local recompute")
	})
}

// MorningSummon asks every collaborator for the day's data.
func (s *Scheduler) MorningSummon() error {
	_, err := s.summoner.SummonAll(
		[]string{summon.CategoryKPIs, summon.CategoryTasks, summon.CategoryMilestones, summon.CategoryStatus},
		"morning-checkin", summon.UrgencyNormal)
	return err
}

// EveningRecap collects end-of-day status and refreshes health scores so
// the overnight dashboard reflects the closed day.
func (s *Scheduler) EveningRecap() error {
	if _, err := s.summoner.SummonAll(
		[]string{summon.CategoryStatus, summon.CategoryBlockers},
		"evening-recap", summon.UrgencyLow); err != nil {
		return err
	}
	if err := s.recomputeHealth(); err != nil {
		return err
	}
	s.emit("dashboard")
	return nil
}

// RefreshKPIs recomputes company KPI snapshots from local data.
func (s *Scheduler) RefreshKPIs() error {
	if err := s.engine.RecomputeKPIs(); err != nil {
		db.RecordSyncError(s.db, models.SourceNameKPIs, err)
		return err
	}
	if err := db.RecordSyncOK(s.db, models.SourceNameKPIs, ""); err != nil {
		return err
	}
	s.emit("kpis")
	return nil
}

// RefreshDashboard recomputes KPIs and department health scores.
func (s *Scheduler) RefreshDashboard() error {
	if err := s.RefreshKPIs(); err != nil {
		db.RecordSyncError(s.db, models.SourceNameDashboard, err)
		return err
	}
	if err := s.recomputeHealth(); err != nil {
		return err
	}
	s.emit("dashboard")
	return nil
}

// RefreshKanban summons fresh task and blocker data from the roster.
func (s *Scheduler) RefreshKanban() error {
	if _, err := s.summoner.SummonAll(
		[]string{summon.CategoryTasks, summon.CategoryBlockers},
		"kanban-refresh", summon.UrgencyNormal); err != nil {
		db.RecordSyncError(s.db, models.SourceNameKanban, err)
		return err
	}
	if err := db.RecordSyncOK(s.db, models.SourceNameKanban, ""); err != nil {
		return err
	}
	s.emit("kanban")
	return nil
}

// RefreshGantt reflags milestones against today's date and summons
// milestone updates from the roster.
func (s *Scheduler) RefreshGantt() error {
	if err := s.flagMilestones(); err != nil {
		return err
	}
	if _, err := s.summoner.SummonAll(
		[]string{summon.CategoryMilestones},
		"gantt-refresh", summon.UrgencyNormal); err != nil {
		db.RecordSyncError(s.db, models.SourceNameGantt, err)
		return err
	}
	if err := db.RecordSyncOK(s.db, models.SourceNameGantt, ""); err != nil {
		return err
	}
	s.emit("gantt")
	return nil
}

// SyncCRM reconciles the external CRM mirror and then recomputes KPIs,
// so pipeline metrics always reflect deals that are committed locally.
func (s *Scheduler) SyncCRM(ctx context.Context) error {
	if s.crmSync == nil {
		return fmt.Errorf("crm sync is not configured")
	}
	if _, err := s.crmSync(ctx); err != nil {
		return err
	}
	if err := s.RefreshKPIs(); err != nil {
		return err
	}
	s.emit("pipeline")
	return nil
}

// MasterRefresh summons the full roster for every category and runs a
// full source sync. The heavyweight trigger behind the refresh-all
// button.
func (s *Scheduler) MasterRefresh(ctx context.Context) error {
	ids, err := s.summoner.SummonAll(summon.KnownCategories(), "master-refresh", summon.UrgencyHigh)
	if err != nil {
		db.RecordSyncError(s.db, models.SourceNameMasterRefresh, err)
		return err
	}

	results := s.SyncAllSources(ctx)
	for source, result := range results {
		if result != "ok" && result != "skipped" {
			err := fmt.Errorf("source %s: %s", source, result)
			db.RecordSyncError(s.db, models.SourceNameMasterRefresh, err)
			return err
		}
	}

	if err := db.RecordSyncOK(s.db, models.SourceNameMasterRefresh,
		fmt.Sprintf("%d summons, %d sources", len(ids), len(results))); err != nil {
		return err
	}
	s.emit("all")
	return nil
}

// SyncAllSources runs every sync source in dependency order and returns
// the per-source outcome. A failing source records its error and the
// remaining sources still run. Safe to call concurrently with the
// scheduled loops: every write replaces by key, so overlapping runs
// converge instead of duplicating.
func (s *Scheduler) SyncAllSources(ctx context.Context) map[string]string {
	results := make(map[string]string)

	run := func(source string, fn func() error) {
		if err := fn(); err != nil {
			results[source] = fmt.Sprintf("error: %v", err)
			log.Printf("  ✗ %s: %v", source, err)
			return
		}
		results[source] = "ok"
	}

	// CRM first: KPI recompute below must see the reconciled deal set.
	if s.crmSync == nil {
		results[models.SourceNameCRM] = "skipped"
	} else {
		run(models.SourceNameCRM, func() error {
			_, err := s.crmSync(ctx)
			return err
		})
	}

	run(models.SourceNameKPIs, func() error {
		if err := s.engine.RecomputeKPIs(); err != nil {
			db.RecordSyncError(s.db, models.SourceNameKPIs, err)
			return err
		}
		return db.RecordSyncOK(s.db, models.SourceNameKPIs, "")
	})

	run(models.SourceNameDashboard, s.recomputeHealth)
	run(models.SourceNameMilestones, s.flagMilestones)

	s.emit("all")
	return results
}

func (s *Scheduler) recomputeHealth() error {
	if err := s.engine.RecomputeHealthScores(); err != nil {
		db.RecordSyncError(s.db, models.SourceNameDashboard, err)
		return err
	}
	return db.RecordSyncOK(s.db, models.SourceNameDashboard, "")
}

func (s *Scheduler) flagMilestones() error {
	res, err := s.engine.FlagMilestones()
	if err != nil {
		db.RecordSyncError(s.db, models.SourceNameMilestones, err)
		return err
	}
	return db.RecordSyncOK(s.db, models.SourceNameMilestones,
		fmt.Sprintf("%d missed, %d at risk", res.Missed, res.AtRisk))
}
