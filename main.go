// ABOUTME: Entry point for the opspulse engine and CLI
// ABOUTME: Routes to serve, sync, summon, and status commands based on arguments
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/opspulse/opspulse/cli"
	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/db"
)

const version = "0.3.0"

func main() {
	// Optional .env for CRM credentials and overrides
	_ = godotenv.Load()

	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file path (default: ~/.local/share/opspulse/config.json)")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/opspulse/opspulse.db)")
	initOnly := flag.Bool("init", false, "Initialize database and default config, then exit")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("opspulse version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if *initOnly {
		database, err := db.OpenDatabase(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()

		if err := config.Save(cfg); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Database initialized at %s", cfg.DBPath)
		log.Printf("Config written to %s", config.ConfigPath())
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	switch command {
	case "serve":
		if err := cli.ServeCommand(database, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "sync":
		if err := cli.SyncCommand(database, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "summon":
		if err := cli.SummonCommand(database, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "status":
		if err := cli.StatusCommand(database, cfg, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`opspulse v%s - Scheduling and sync engine for the operations dashboard

USAGE:
  opspulse [global flags] <command> [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <path>        Config file path (default: ~/.local/share/opspulse/config.json)
  --db-path <path>       Database path (default: ~/.local/share/opspulse/opspulse.db)
  --init                 Initialize database and default config, then exit

COMMANDS:
  opspulse serve         Run the scheduler and API server
    --listen <addr>        API listen address (default from config)

  opspulse sync          Run every sync source once and print results

  opspulse summon        Queue a data request for collaborators
    --target <name>        Collaborator name (empty summons everyone)
    --categories <list>    Comma-separated categories (required)
    --context <text>       Why the data is needed
    --urgency <level>      low, normal, or high

  opspulse status        Show sync freshness and department health

ENVIRONMENT:
  OPSPULSE_DB_PATH, OPSPULSE_QUEUE_DIR, OPSPULSE_LISTEN_ADDR,
  OPSPULSE_CRM_URL, OPSPULSE_CRM_CLIENT_ID, OPSPULSE_CRM_CLIENT_SECRET
  (a .env file in the working directory is loaded if present)
`, version)
}
