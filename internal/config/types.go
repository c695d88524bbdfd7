package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the daemon's on-disk configuration. YAML and JSON are both
// accepted; YAML is coerced to JSON and decoded strictly, so unknown keys
// are rejected in either format.
//
// All duration fields are Go duration strings (e.g. "30s", "5m", "1h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the store driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./questsched.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig controls the three lifecycle ticks.
//
// Enabled is a pointer so an omitted field defaults to true while an
// explicit false still disables the scheduler.
type SchedulerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	ActivateEvery string `json:"activate_every,omitempty"` // default "5m"
	CompleteEvery string `json:"complete_every,omitempty"` // default "10m"
	ExpandEvery   string `json:"expand_every,omitempty"`   // default "1h"

	MaxItemsPerSec           int    `json:"max_items_per_sec,omitempty"`
	DefaultChallengeDuration string `json:"default_challenge_duration,omitempty"` // default "168h"
	HistorySize              int    `json:"history_size,omitempty"`
}

func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Validate rejects configs that would misbehave at runtime: unparseable
// durations, unknown drivers, or tick cadences that invert the required
// ordering (activation checked most frequently, expansion least).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	activate, err := ParseDurationOrDefault("scheduler.activate_every", cfg.Scheduler.ActivateEvery, 5*time.Minute)
	if err != nil {
		return err
	}
	complete, err := ParseDurationOrDefault("scheduler.complete_every", cfg.Scheduler.CompleteEvery, 10*time.Minute)
	if err != nil {
		return err
	}
	expand, err := ParseDurationOrDefault("scheduler.expand_every", cfg.Scheduler.ExpandEvery, time.Hour)
	if err != nil {
		return err
	}
	if activate > complete || complete > expand {
		return fmt.Errorf("scheduler: cadence must satisfy activate_every <= complete_every <= expand_every (got %s/%s/%s)",
			activate, complete, expand)
	}
	if _, err := ParseDurationField("scheduler.default_challenge_duration", cfg.Scheduler.DefaultChallengeDuration); err != nil {
		return err
	}
	if cfg.Scheduler.MaxItemsPerSec < 0 {
		return fmt.Errorf("scheduler.max_items_per_sec: must be >= 0")
	}
	return nil
}
