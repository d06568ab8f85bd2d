// ABOUTME: Job clock driving daily and interval jobs over cron
// ABOUTME: Wraps every job with panic recovery, metrics, and the business-hours gate
package sched

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/derive"
	"github.com/opspulse/opspulse/metrics"
	"github.com/opspulse/opspulse/summon"
)

// CRMSyncFunc pulls the external CRM and reconciles it into local deals,
// returning the number of deals now mirrored.
type CRMSyncFunc func(ctx context.Context) (int, error)

// Options tunes a scheduler start. Zero value is valid.
type Options struct {
	// CRMSync replaces the sync function the scheduler was built with.
	// Used by the CLI to run against a stub CRM.
	CRMSync CRMSyncFunc

	// Broadcast is invoked with the refresh target after each completed
	// cycle, so a UI layer can repaint without polling.
	Broadcast func(target string)
}

// Scheduler owns the recurring jobs: morning and evening summons, the
// dashboard refresh loop, and the CRM sync loop. One failing job never
// takes down another; each tick is isolated behind recover.
type Scheduler struct {
	db       *sql.DB
	cfg      *config.Config
	engine   *derive.Engine
	summoner *summon.Summoner

	crmSync   CRMSyncFunc
	broadcast func(string)

	cron *cron.Cron
	now  func() time.Time
	gate func(time.Time) bool
}

// NewScheduler wires the job clock. crmSync may be nil when no CRM is
// configured; CRM-dependent jobs then report the source as skipped.
func NewScheduler(database *sql.DB, cfg *config.Config, engine *derive.Engine, summoner *summon.Summoner, crmSync CRMSyncFunc) *Scheduler {
	return &Scheduler{
		db:       database,
		cfg:      cfg,
		engine:   engine,
		summoner: summoner,
		crmSync:  crmSync,
		now:      time.Now,
		gate:     cfg.InBusinessHours,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithGate overrides the business-hours gate. Test hook.
func (s *Scheduler) WithGate(gate func(time.Time) bool) *Scheduler {
	s.gate = gate
	return s
}

// Start runs the startup jobs synchronously, then registers and starts
// the recurring schedule. All cron specs run in UTC.
func (s *Scheduler) Start(opts Options) error {
	if opts.CRMSync != nil {
		s.crmSync = opts.CRMSync
	}
	s.broadcast = opts.Broadcast

	s.RunOnStartup()

	s.cron = cron.New(cron.WithLocation(time.UTC))

	entries := []struct {
		spec  string
		name  string
		gated bool
		run   func()
	}{
		{dailySpec(s.cfg.MorningSummon), "morning_summon", false, func() {
			s.runJob("morning_summon", s.MorningSummon)
		}},
		{dailySpec(s.cfg.EveningRecap), "evening_recap", false, func() {
			s.runJob("evening_recap", s.EveningRecap)
		}},
		{everySpec(s.cfg.RefreshInterval), "dashboard_refresh", true, func() {
			s.runJob("dashboard_refresh", s.RefreshDashboard)
		}},
		{everySpec(s.cfg.CRMSyncInterval), "crm_sync", true, func() {
			s.runJob("crm_sync", func() error {
				return s.SyncCRM(context.Background())
			})
		}},
	}

	for _, e := range entries {
		run := e.run
		if e.gated {
			run = s.gated(e.name, run)
		}
		if _, err := s.cron.AddFunc(e.spec, run); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", e.name, err)
		}
	}

	s.cron.Start()
	log.Printf("Scheduler started: morning %02d:%02d, recap %02d:%02d, refresh every %dm, crm sync every %dm",
		s.cfg.MorningSummon.Hour, s.cfg.MorningSummon.Minute,
		s.cfg.EveningRecap.Hour, s.cfg.EveningRecap.Minute,
		s.cfg.RefreshInterval, s.cfg.CRMSyncInterval)
	return nil
}

// Stop halts the schedule and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runJob executes one job tick with panic isolation. A panicking or
// failing job is logged, counted, and recorded under its job name in
// sync_state, and the clock keeps ticking.
func (s *Scheduler) runJob(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.JobFailures.WithLabelValues(name).Inc()
			log.Printf("job %s panicked: %v", name, r)
			db.RecordSyncError(s.db, name, fmt.Errorf("panic: %v", r))
		}
	}()

	metrics.JobRuns.WithLabelValues(name).Inc()
	if err := fn(); err != nil {
		metrics.JobFailures.WithLabelValues(name).Inc()
		log.Printf("job %s failed: %v", name, err)
		db.RecordSyncError(s.db, name, err)
	}
}

// gated wraps an interval job with the business-hours check. A tick
// outside the window is dropped, not deferred; there is no catch-up run
// when the window opens.
func (s *Scheduler) gated(name string, fn func()) func() {
	return func() {
		if !s.gate(s.now()) {
			metrics.JobSkips.WithLabelValues(name).Inc()
			return
		}
		fn()
	}
}

// emit notifies the broadcast hook, if any, that a target was refreshed.
func (s *Scheduler) emit(target string) {
	if s.broadcast != nil {
		s.broadcast(target)
	}
}

// dailySpec renders a fixed wall-clock trigger as a cron spec.
func dailySpec(t config.DailyTime) string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// everySpec renders a minute interval as a cron spec.
func everySpec(minutes int) string {
	if minutes <= 0 {
		minutes = 30
	}
	return fmt.Sprintf("@every %dm", minutes)
}

// NextDailyRun returns the next instant at or after now when a daily
// hour:minute trigger fires, in UTC. A trigger time already passed today
// rolls to tomorrow.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
