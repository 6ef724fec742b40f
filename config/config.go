package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"nextup/internal/domain"
)

// ActionConfig is one time-triggered action's switch and trigger offset.
type ActionConfig struct {
	Enabled bool
	// Offset is the lead time before an event's start at which the
	// action arms.
	Offset time.Duration
}

// FeedConfig is one ICS subscription feed.
type FeedConfig struct {
	Name string
	URL  string
}

// Config is one immutable snapshot of the full configuration:
// environment-provided endpoints and credentials plus the rules file.
// The scheduler reads one snapshot at the top of each tick; changes
// apply on the next tick, never mid-tick.
type Config struct {
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	// AccountEmail identifies the current user among attendees and is
	// appended to Google Meet links. Defaults to the CalDAV username.
	AccountEmail string

	TelegramToken  string
	TelegramChatID int64

	DatabasePath string
	RulesPath    string
	Timezone     *time.Location

	// From the rules file:
	Rules           domain.Rules
	TickInterval    time.Duration
	RefreshInterval time.Duration
	AutoJoin        ActionConfig
	StartScript     ActionConfig
	Notification    ActionConfig
	ScriptPath      string
	ScriptTimeout   time.Duration
	Browser         string
	Feeds           []FeedConfig
	DetectAnyLink   bool
	CustomLinkRegex *regexp.Regexp
}

// Load reads the environment and the rules file into one snapshot.
func Load() (*Config, error) {
	cfg := &Config{
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		AccountEmail:   os.Getenv("ACCOUNT_EMAIL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.AccountEmail == "" {
		cfg.AccountEmail = cfg.CalDAVUsername
	}

	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
		cfg.TelegramChatID = id
	}

	cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./data/nextup.db"
	}

	cfg.RulesPath = os.Getenv("RULES_PATH")
	if cfg.RulesPath == "" {
		cfg.RulesPath = "./nextup.yaml"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Local"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if err := cfg.loadRulesFile(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Provider hands out the latest configuration snapshot. main swaps in a
// fresh snapshot on SIGHUP; readers always see a complete Config, never
// a partially updated one.
type Provider struct {
	p atomic.Pointer[Config]
}

func NewProvider(cfg *Config) *Provider {
	var p Provider
	p.p.Store(cfg)
	return &p
}

// Snapshot returns the current configuration.
func (p *Provider) Snapshot() *Config {
	return p.p.Load()
}

// Store publishes a new configuration snapshot.
func (p *Provider) Store(cfg *Config) {
	p.p.Store(cfg)
}
