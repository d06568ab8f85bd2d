// ABOUTME: Engine configuration loading with XDG file storage and env overrides
// ABOUTME: Carries schedule times, business hours, CRM credentials, and the collaborator roster
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Collaborator is a named external actor expected to push fresh data in
// response to a summon request.
type Collaborator struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Handle     string `json:"handle"` // identifying path or agent handle
}

// CRMConfig holds credentials and limits for the external CRM API.
type CRMConfig struct {
	BaseURL        string `json:"base_url"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	RequestTimeout int    `json:"request_timeout_seconds"`
}

// Timeout returns the bounded per-request deadline for CRM calls.
func (c *CRMConfig) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// IsConfigured checks whether the CRM client has enough to attempt a
// handshake.
func (c *CRMConfig) IsConfigured() bool {
	return c.BaseURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// DailyTime is a fixed UTC wall-clock trigger.
type DailyTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Config is the full engine configuration. Schedule times, windows, and
// thresholds live here rather than as literals at call sites.
type Config struct {
	DBPath     string `json:"db_path"`
	QueueDir   string `json:"queue_dir"`
	ListenAddr string `json:"listen_addr"`

	CRM CRMConfig `json:"crm"`

	// Business hours window in UTC, inclusive start, exclusive end.
	BusinessHoursStart int `json:"business_hours_start"`
	BusinessHoursEnd   int `json:"business_hours_end"`

	MorningSummon   DailyTime `json:"morning_summon"`
	EveningRecap    DailyTime `json:"evening_recap"`
	RefreshInterval int       `json:"refresh_interval_minutes"`
	CRMSyncInterval int       `json:"crm_sync_interval_minutes"`

	// Days before a pending milestone's target date at which it is
	// flagged at risk.
	AtRiskWindowDays int `json:"at_risk_window_days"`

	Roster []Collaborator `json:"roster"`
}

// ConfigDir returns the XDG-compliant directory for opspulse data.
func ConfigDir() string {
	return filepath.Join(xdg.DataHome, "opspulse")
}

// ConfigPath returns the XDG-compliant path of the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		DBPath:             filepath.Join(ConfigDir(), "opspulse.db"),
		QueueDir:           filepath.Join(ConfigDir(), "summons"),
		ListenAddr:         ":8090",
		BusinessHoursStart: 7,
		BusinessHoursEnd:   19,
		MorningSummon:      DailyTime{Hour: 6, Minute: 45},
		EveningRecap:       DailyTime{Hour: 18, Minute: 30},
		RefreshInterval:    30,
		CRMSyncInterval:    120,
		AtRiskWindowDays:   3,
		CRM: CRMConfig{
			RequestTimeout: 30,
		},
		Roster: []Collaborator{
			{Name: "sales-owner", Department: "sales", Handle: "agents/sales"},
			{Name: "engineering-owner", Department: "engineering", Handle: "agents/engineering"},
			{Name: "marketing-owner", Department: "marketing", Handle: "agents/marketing"},
			{Name: "operations-owner", Department: "operations", Handle: "agents/operations"},
		},
	}
}

// Load reads the config file at path (or the default XDG path when path
// is empty), falling back to defaults when the file is missing.
// Environment variables override file values:
// - OPSPULSE_DB_PATH
// - OPSPULSE_QUEUE_DIR
// - OPSPULSE_LISTEN_ADDR
// - OPSPULSE_CRM_URL
// - OPSPULSE_CRM_CLIENT_ID
// - OPSPULSE_CRM_CLIENT_SECRET.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPSPULSE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OPSPULSE_QUEUE_DIR"); v != "" {
		cfg.QueueDir = v
	}
	if v := os.Getenv("OPSPULSE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("OPSPULSE_CRM_URL"); v != "" {
		cfg.CRM.BaseURL = v
	}
	if v := os.Getenv("OPSPULSE_CRM_CLIENT_ID"); v != "" {
		cfg.CRM.ClientID = v
	}
	if v := os.Getenv("OPSPULSE_CRM_CLIENT_SECRET"); v != "" {
		cfg.CRM.ClientSecret = v
	}
}

// Save writes the configuration to the XDG data directory.
func Save(cfg *Config) error {
	path := ConfigPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// InBusinessHours reports whether t falls inside the configured UTC
// window (inclusive start, exclusive end).
func (c *Config) InBusinessHours(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour >= c.BusinessHoursStart && hour < c.BusinessHoursEnd
}
