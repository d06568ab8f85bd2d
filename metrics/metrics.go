// ABOUTME: Prometheus collectors for the orchestration engine
// ABOUTME: Tracks job runs, failures, summons written, and reconciled deal counts
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_job_runs_total",
		Help: "Scheduled job executions by job name.",
	}, []string{"job"})

	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_job_failures_total",
		Help: "Scheduled job failures by job name.",
	}, []string{"job"})

	JobSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_job_skips_total",
		Help: "Job ticks skipped by the business-hours gate.",
	}, []string{"job"})

	SummonsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opspulse_summons_written_total",
		Help: "Summon request files written to the queue.",
	})

	DealsReconciled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opspulse_crm_deals_mirrored",
		Help: "Deals mirrored from the external CRM after the last successful sync.",
	})
)
