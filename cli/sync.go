// ABOUTME: One-shot sync command running every source and printing outcomes
// ABOUTME: Exits non-zero if any source failed
package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/sched"
)

// SyncCommand runs a full source sync once and reports per-source
// results.
func SyncCommand(database *sql.DB, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	_ = fs.Parse(args)

	engine, summoner, crmSync, err := buildEngine(database, cfg)
	if err != nil {
		return err
	}

	scheduler := sched.NewScheduler(database, cfg, engine, summoner, crmSync)
	results := scheduler.SyncAllSources(context.Background())

	sources := make([]string, 0, len(results))
	for source := range results {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	failed := 0
	for _, source := range sources {
		result := results[source]
		marker := "✓"
		if strings.HasPrefix(result, "error") {
			marker = "✗"
			failed++
		}
		fmt.Printf("  %s %-12s %s\n", marker, source, result)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}
