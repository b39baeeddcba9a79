// Package config loads process configuration from a YAML/JSON file with
// environment-variable overrides for the secrets (bot token, sheet
// credentials) that deployments inject rather than commit.
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Sheets   SheetsConfig   `json:"sheets"`
	Poll     PollConfig     `json:"poll"`
	Logging  LoggingConfig  `json:"logging"`
	Health   HealthConfig   `json:"health,omitempty"`
	Storage  StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChannelID is the delivery target: "@name" or a "-100..." numeric ID.
	ChannelID string `json:"channel_id"`
	// NotifyChatID receives operator summaries; AdminChatID is the fallback.
	NotifyChatID string `json:"notify_chat_id"`
	AdminChatID  string `json:"admin_chat_id"`
	RatePerSec   int    `json:"rate_per_sec,omitempty"`
}

type SheetsConfig struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	SheetName     string `json:"sheet_name"`
	ClientEmail   string `json:"client_email"`
	PrivateKey    string `json:"private_key"`
	TokenURI      string `json:"token_uri,omitempty"`
	// SetupHeaders rewrites the header row once at startup.
	SetupHeaders bool `json:"setup_headers,omitempty"`
}

// PollConfig controls the publish loop.
//
// Schedule is either a cron expression evaluated in Timezone
// (e.g. "*/2 8-22 * * *") or a plain interval ("2m").
// Lookback bounds how stale an item may be and still publish;
// empty or "0s" means unbounded.
type PollConfig struct {
	Schedule string `json:"schedule"`
	Lookback string `json:"lookback,omitempty"`
	Timezone string `json:"timezone"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// StorageConfig controls the optional publish journal.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

func (c *Config) withDefaults() {
	if c.Poll.Schedule == "" {
		c.Poll.Schedule = "2m"
	}
	if c.Poll.Timezone == "" {
		c.Poll.Timezone = "Europe/Moscow"
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Sheet1"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Location resolves the reference time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Poll.Timezone)
	if err != nil {
		return nil, fmt.Errorf("poll.timezone: %w", err)
	}
	return loc, nil
}

// LookbackDuration parses the optional eligibility window (0 = unbounded).
func (c *Config) LookbackDuration() (time.Duration, error) {
	return ParseDurationField("poll.lookback", c.Poll.Lookback)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.Telegram.ChannelID) == "" {
		return fmt.Errorf("telegram.channel_id is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.LookbackDuration(); err != nil {
		return err
	}
	return nil
}

// ParseDurationField parses an optional Go duration string; empty means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
