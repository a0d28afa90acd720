package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caltab.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("default timezone = %q", cfg.Timezone)
	}
	if cfg.WeekStart != "monday" {
		t.Errorf("default week start = %q", cfg.WeekStart)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config was not written: %v", err)
	}

	info, err := os.Stat(path)
	if err == nil && info.Mode().Perm() != 0o600 {
		t.Errorf("config perms = %v, want 0600", info.Mode().Perm())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caltab.yaml")

	cfg := DefaultConfig()
	cfg.Timezone = "America/New_York"
	cfg.TwentyFourHour = false
	cfg.Sources = []SourceConfig{
		{ID: "work", Name: "Work", Kind: "caldav", URL: "https://dav.example.com/", Calendar: "Work"},
		{ID: "home", Name: "Home", Color: "#becedb", Kind: "caldav"},
	}
	cfg.DefaultSource = "work"
	cfg.Workdays["friday"] = WorkdayConfig{Working: true, Start: "08:00", End: "13:00"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Timezone != "America/New_York" || got.TwentyFourHour {
		t.Errorf("round trip lost display settings: %+v", got)
	}
	if len(got.Sources) != 2 || got.Sources[1].Color != "#becedb" {
		t.Errorf("round trip lost sources: %+v", got.Sources)
	}
	if fri := got.Workdays["friday"]; fri.Start != "08:00" || fri.End != "13:00" {
		t.Errorf("round trip lost workday override: %+v", fri)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{
		WeekStart: "someday", // not a weekday, falls back
		Sources:   []SourceConfig{{ID: "only"}},
	}
	cfg.Normalize()

	if cfg.WeekStart != "monday" {
		t.Errorf("week start = %q", cfg.WeekStart)
	}
	if cfg.WorkdayStart != "09:00" || cfg.WorkdayEnd != "17:00" {
		t.Errorf("workday fallback = %q..%q", cfg.WorkdayStart, cfg.WorkdayEnd)
	}
	if cfg.DefaultReminder.Units != "minutes" {
		t.Errorf("reminder units = %q", cfg.DefaultReminder.Units)
	}
	if cfg.DefaultSource != "only" {
		t.Errorf("default source = %q, want first source", cfg.DefaultSource)
	}
}

func TestNormalizeKeepsAnyWeekdayStart(t *testing.T) {
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		cfg := &Config{WeekStart: day}
		cfg.Normalize()
		if cfg.WeekStart != day {
			t.Errorf("week start %q normalized to %q", day, cfg.WeekStart)
		}
	}
}
