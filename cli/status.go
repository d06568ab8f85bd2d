// ABOUTME: Status command printing sync freshness and department health
// ABOUTME: Read-only view over sync_state and the latest health snapshots
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"time"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// StatusCommand prints the last outcome of every sync source and the
// latest health score per department.
func StatusCommand(database *sql.DB, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	states, err := db.GetAllSyncStates(database)
	if err != nil {
		return fmt.Errorf("failed to load sync state: %w", err)
	}

	fmt.Println("Sync sources:")
	if len(states) == 0 {
		fmt.Println("  (no syncs recorded yet)")
	}
	now := time.Now()
	for _, state := range states {
		marker := "✓"
		if state.Status == models.SyncError {
			marker = "✗"
		}
		age := "never"
		if state.LastSync != nil {
			age = now.Sub(*state.LastSync).Round(time.Second).String() + " ago"
		}
		line := fmt.Sprintf("  %s %-16s %-8s %s", marker, state.Source, state.Status, age)
		if state.Details != "" {
			line += "  " + state.Details
		}
		fmt.Println(line)
	}

	scores, err := db.LatestHealthScores(database)
	if err != nil {
		return fmt.Errorf("failed to load health scores: %w", err)
	}

	fmt.Println("\nDepartment health:")
	if len(scores) == 0 {
		fmt.Println("  (no health scores yet; run 'opspulse sync')")
	}
	for _, score := range scores {
		fmt.Printf("  %-16s %3.0f/100  %-12s trend %s  (%s)\n",
			score.Department, score.CurrentValue, score.Status, score.Trend, score.SnapshotDate)
	}

	return nil
}
