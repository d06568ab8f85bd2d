// ABOUTME: Summon command for manually queueing data requests
// ABOUTME: Targets one collaborator or fans out to the whole roster
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"strings"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/summon"
)

// SummonCommand queues a summon request from the command line.
func SummonCommand(database *sql.DB, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("summon", flag.ExitOnError)
	target := fs.String("target", "", "Collaborator name (empty summons the whole roster)")
	categories := fs.String("categories", "", "Comma-separated data categories (required)")
	reason := fs.String("context", "manual", "Why the data is needed")
	urgency := fs.String("urgency", summon.UrgencyNormal, "low, normal, or high")
	_ = fs.Parse(args)

	if *categories == "" {
		return fmt.Errorf("--categories is required (known: %s)", strings.Join(summon.KnownCategories(), ", "))
	}
	cats := strings.Split(*categories, ",")
	for i := range cats {
		cats[i] = strings.TrimSpace(cats[i])
	}

	queue, err := summon.NewFileQueue(cfg.QueueDir)
	if err != nil {
		return fmt.Errorf("failed to open summon queue: %w", err)
	}
	summoner := summon.NewSummoner(queue, cfg.Roster)

	var ids []string
	if *target == "" {
		ids, err = summoner.SummonAll(cats, *reason, *urgency)
	} else {
		var id string
		id, err = summoner.Summon(*target, cats, *reason, *urgency)
		ids = []string{id}
	}
	if err != nil {
		return err
	}

	for _, id := range ids {
		fmt.Printf("  ✓ Queued %s\n", id)
	}
	return nil
}
