package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"nextup/internal/domain"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "10s" or "13m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type actionFile struct {
	Enabled bool     `yaml:"enabled"`
	Offset  Duration `yaml:"offset"`
	Path    string   `yaml:"path,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

type feedFile struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type linkDetectionFile struct {
	AnyLink     bool   `yaml:"any_link"`
	CustomRegex string `yaml:"custom_regex"`
}

// rulesFile is the on-disk YAML shape of the behavior configuration.
type rulesFile struct {
	Tick    Duration `yaml:"tick"`
	Refresh Duration `yaml:"refresh"`

	ShowTomorrow bool     `yaml:"show_tomorrow"`
	LookAhead    Duration `yaml:"look_ahead"`

	TitleFilters []string `yaml:"title_filters"`

	AllDayEvents    string `yaml:"all_day_events"`
	NonAllDayEvents string `yaml:"non_all_day_events"`
	PendingEvents   string `yaml:"pending_events"`
	TentativeEvents string `yaml:"tentative_events"`
	DeclinedEvents  string `yaml:"declined_events"`
	PersonalEvents  string `yaml:"personal_events"`

	LinkDetection linkDetectionFile `yaml:"link_detection"`

	AutoJoin         actionFile `yaml:"auto_join"`
	StartScript      actionFile `yaml:"start_script"`
	JoinNotification actionFile `yaml:"join_notification"`

	Browser string     `yaml:"browser"`
	Feeds   []feedFile `yaml:"feeds"`
}

// loadRulesFile reads the YAML rules file into the config snapshot. A
// missing file means pure defaults; a malformed file is an error so a
// typo never silently reverts the user to defaults.
func (c *Config) loadRulesFile() error {
	var file rulesFile

	data, err := os.ReadFile(c.RulesPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse rules file %s: %w", c.RulesPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return fmt.Errorf("read rules file %s: %w", c.RulesPath, err)
	}

	return c.applyRulesFile(file)
}

func (c *Config) applyRulesFile(file rulesFile) error {
	c.TickInterval = time.Duration(file.Tick)
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Second
	}
	c.RefreshInterval = time.Duration(file.Refresh)
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}

	rules := domain.Rules{
		AllDay:       domain.AllDayRule(file.AllDayEvents),
		NonAllDay:    domain.NonAllDayRule(file.NonAllDayEvents),
		Pending:      domain.ReplyRule(file.PendingEvents),
		Tentative:    domain.ReplyRule(file.TentativeEvents),
		Declined:     domain.DeclinedRule(file.DeclinedEvents),
		Personal:     domain.PersonalRule(file.PersonalEvents),
		ShowTomorrow: file.ShowTomorrow,
		LookAhead:    time.Duration(file.LookAhead),
	}
	for _, pattern := range file.TitleFilters {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid title filter %q: %w", pattern, err)
		}
		rules.TitleRegexes = append(rules.TitleRegexes, re)
	}
	c.Rules = rules.Normalize()

	c.DetectAnyLink = file.LinkDetection.AnyLink
	if file.LinkDetection.CustomRegex != "" {
		re, err := regexp.Compile(file.LinkDetection.CustomRegex)
		if err != nil {
			return fmt.Errorf("invalid custom link regex: %w", err)
		}
		c.CustomLinkRegex = re
	}

	c.AutoJoin = ActionConfig{Enabled: file.AutoJoin.Enabled, Offset: time.Duration(file.AutoJoin.Offset)}
	if c.AutoJoin.Offset <= 0 {
		c.AutoJoin.Offset = time.Minute
	}
	c.StartScript = ActionConfig{Enabled: file.StartScript.Enabled, Offset: time.Duration(file.StartScript.Offset)}
	if c.StartScript.Offset <= 0 {
		c.StartScript.Offset = time.Minute
	}
	c.ScriptPath = file.StartScript.Path
	c.ScriptTimeout = time.Duration(file.StartScript.Timeout)
	c.Notification = ActionConfig{Enabled: file.JoinNotification.Enabled, Offset: time.Duration(file.JoinNotification.Offset)}
	if c.Notification.Offset <= 0 {
		c.Notification.Offset = 5 * time.Minute
	}

	c.Browser = file.Browser
	for _, f := range file.Feeds {
		if f.URL == "" {
			continue
		}
		c.Feeds = append(c.Feeds, FeedConfig{Name: f.Name, URL: f.URL})
	}

	return nil
}
