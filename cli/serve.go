// ABOUTME: Serve command wiring the scheduler, summon queue, CRM client, and API server
// ABOUTME: The long-running mode of the engine; everything else is one-shot
package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/crm"
	"github.com/opspulse/opspulse/derive"
	"github.com/opspulse/opspulse/sched"
	"github.com/opspulse/opspulse/summon"
	"github.com/opspulse/opspulse/web"
)

// ServeCommand starts the job clock and the API server and blocks until
// interrupted.
func ServeCommand(database *sql.DB, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenAddr := fs.String("listen", cfg.ListenAddr, "API listen address")
	_ = fs.Parse(args)

	engine, summoner, crmSync, err := buildEngine(database, cfg)
	if err != nil {
		return err
	}

	scheduler := sched.NewScheduler(database, cfg, engine, summoner, crmSync)
	if err := scheduler.Start(sched.Options{}); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	server := web.NewServer(database, scheduler, summoner)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(*listenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
		return nil
	}
}

// buildEngine assembles the derive engine, summoner, and CRM sync
// function shared by serve and the one-shot commands. crmSync is nil
// when no CRM credentials are configured.
func buildEngine(database *sql.DB, cfg *config.Config) (*derive.Engine, *summon.Summoner, sched.CRMSyncFunc, error) {
	engine := derive.NewEngine(database, cfg.AtRiskWindowDays)

	queue, err := summon.NewFileQueue(cfg.QueueDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open summon queue: %w", err)
	}
	summoner := summon.NewSummoner(queue, cfg.Roster)

	var crmSync sched.CRMSyncFunc
	if cfg.CRM.IsConfigured() {
		client := crm.NewClient(cfg.CRM, database)
		crmSync = func(ctx context.Context) (int, error) {
			return client.Sync(ctx)
		}
	} else {
		log.Println("CRM credentials not configured; pipeline sync disabled")
	}

	return engine, summoner, crmSync, nil
}
