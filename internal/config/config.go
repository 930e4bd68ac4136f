package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Local"
	defaultDatabase    = "/var/lib/studycal/studycal.db"
	defaultUserID      = "local"
	defaultReschedule  = "0 * * * *"
	defaultHorizonDays = 30
)

// Open-ended recurrence policies for notifications.
const (
	OpenEndedFirstOnly = "first_only"
	OpenEndedExpand    = "expand"
)

// NotificationsConfig controls the reminder rebuild pipeline.
type NotificationsConfig struct {
	// HorizonDays bounds how far ahead triggers are registered.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// Reschedule is a standard 5-field cron spec for the periodic rebuild.
	Reschedule string `yaml:"reschedule" json:"reschedule"`

	// OpenEnded decides what happens to recurring tasks without an end date:
	//   - "first_only" (default): only the first occurrence gets reminders
	//   - "expand": every occurrence inside the horizon gets reminders
	OpenEnded string `yaml:"open_ended" json:"open_ended"`
}

// TelegramConfig enables delivery of fired reminders to a Telegram chat.
type TelegramConfig struct {
	Token  string `yaml:"token" json:"token"`
	ChatID int64  `yaml:"chat_id" json:"chat_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used as the wall clock. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	// UserID scopes every record; the service is single-user.
	UserID string `yaml:"user_id" json:"user_id"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`

	Telegram *TelegramConfig `yaml:"telegram,omitempty" json:"telegram,omitempty"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		Database: defaultDatabase,
		UserID:   defaultUserID,
		LogLevel: "info",
		Notifications: NotificationsConfig{
			HorizonDays: defaultHorizonDays,
			Reschedule:  defaultReschedule,
			OpenEnded:   OpenEndedFirstOnly,
		},
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.UserID == "" {
		c.UserID = defaultUserID
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Notifications.HorizonDays <= 0 {
		c.Notifications.HorizonDays = defaultHorizonDays
	}
	if _, err := cron.ParseStandard(c.Notifications.Reschedule); err != nil {
		c.Notifications.Reschedule = defaultReschedule
	}
	switch c.Notifications.OpenEnded {
	case OpenEndedFirstOnly, OpenEndedExpand:
	default:
		c.Notifications.OpenEnded = OpenEndedFirstOnly
	}
	if c.Telegram != nil && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		c.Telegram = nil
	}
}

// Horizon returns the notification horizon as a duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.Notifications.HorizonDays) * 24 * time.Hour
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there (0600) and
// returned. Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Still hand back the defaults so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".studycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save writes c to path; see the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
