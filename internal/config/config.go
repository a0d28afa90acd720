// Package config holds the model-level settings file: display timezone and
// clock style, default source and reminder policy for new items, and the
// week-start/work-hours bookkeeping consumed by calendar grid views.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one configured backend source.
type SourceConfig struct {
	// ID is the stable identifier used for color assignment and as the
	// default-source reference.
	ID string `yaml:"id"`
	// Name is the human-friendly label shown in the source column.
	Name string `yaml:"name"`
	// Color, if set, overrides palette assignment for this source.
	Color string `yaml:"color,omitempty"`
	// Kind selects the connection type: "caldav" or "google".
	Kind string `yaml:"kind"`
	// URL is the CalDAV endpoint (caldav sources only).
	URL string `yaml:"url,omitempty"`
	// Calendar is the calendar name (caldav) or calendar ID (google).
	Calendar string `yaml:"calendar,omitempty"`
	// Account is the token account name (google sources only).
	Account string `yaml:"account,omitempty"`
}

// ReminderConfig is the default-alarm policy applied to new components.
type ReminderConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval int    `yaml:"interval"`
	Units    string `yaml:"units"` // "minutes", "hours" or "days"
}

// WorkdayConfig is the per-weekday working-hours override. Start/End use
// "HH:MM"; an override only takes effect when both ends decode to a valid
// time of day.
type WorkdayConfig struct {
	Working bool   `yaml:"working"`
	Start   string `yaml:"start,omitempty"`
	End     string `yaml:"end,omitempty"`
}

// Config is the top-level settings file.
type Config struct {
	// Timezone is the IANA display timezone all date/time fields render in.
	Timezone string `yaml:"timezone"`

	// TwentyFourHour selects the 24-hour clock for display strings.
	TwentyFourHour bool `yaml:"twenty_four_hour"`

	// ConfirmDelete asks before deleting components.
	ConfirmDelete bool `yaml:"confirm_delete"`

	// DefaultSource is the SourceConfig.ID new items are created on.
	DefaultSource string `yaml:"default_source"`

	// ClassifyPrivate marks new components Private instead of Public.
	ClassifyPrivate bool `yaml:"classify_private"`

	// CurrentUser is the mail address used to classify assigned items.
	CurrentUser string `yaml:"current_user,omitempty"`

	// DefaultReminder is the alarm policy for newly created components.
	DefaultReminder ReminderConfig `yaml:"default_reminder"`

	// WeekStart is a lowercase English weekday name.
	WeekStart string `yaml:"week_start"`

	// WorkdayStart/WorkdayEnd are the global fallback working hours, "HH:MM".
	WorkdayStart string `yaml:"workday_start"`
	WorkdayEnd   string `yaml:"workday_end"`

	// Workdays holds per-weekday flags and hour overrides, keyed by
	// lowercase English weekday name.
	Workdays map[string]WorkdayConfig `yaml:"workdays,omitempty"`

	// CompressWeekends folds Saturday/Sunday into one grid column.
	CompressWeekends bool `yaml:"compress_weekends"`

	// Sources is the list of configured backends.
	Sources []SourceConfig `yaml:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:       "UTC",
		TwentyFourHour: true,
		ConfirmDelete:  true,
		DefaultReminder: ReminderConfig{
			Enabled:  false,
			Interval: 15,
			Units:    "minutes",
		},
		WeekStart:    "monday",
		WorkdayStart: "09:00",
		WorkdayEnd:   "17:00",
		Workdays: map[string]WorkdayConfig{
			"monday":    {Working: true},
			"tuesday":   {Working: true},
			"wednesday": {Working: true},
			"thursday":  {Working: true},
			"friday":    {Working: true},
			"saturday":  {Working: false},
			"sunday":    {Working: false},
		},
		Sources: []SourceConfig{},
	}
}

// Normalize fills in missing/zero values so partially filled configs from
// older versions still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	switch c.WeekStart {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.WorkdayStart == "" {
		c.WorkdayStart = "09:00"
	}
	if c.WorkdayEnd == "" {
		c.WorkdayEnd = "17:00"
	}
	switch c.DefaultReminder.Units {
	case "minutes", "hours", "days":
	default:
		c.DefaultReminder.Units = "minutes"
	}
	if c.DefaultReminder.Interval <= 0 {
		c.DefaultReminder.Interval = 15
	}
	if c.Workdays == nil {
		c.Workdays = DefaultConfig().Workdays
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.DefaultSource == "" && len(c.Sources) > 0 {
		c.DefaultSource = c.Sources[0].ID
	}
}

// Load loads configuration from the given YAML path. If the file does not
// exist, a default config is written there first and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions.
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

	tmp, err := os.CreateTemp(dir, ".caltab-config-*.tmp")
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

// Source returns the source config with the given ID.
func (c *Config) Source(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}
