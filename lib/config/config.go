// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local machines and tests.
	Development Environment = "development"
	// Production is for installed daemons.
	Production Environment = "production"
)

// Config is the powerlog configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Daemon      DaemonConfig      `yaml:"daemon"`
	ActivityLog ActivityLogConfig `yaml:"activity_log"`
	Admission   AdmissionConfig   `yaml:"admission"`
	Summary     SummaryConfig     `yaml:"summary"`
	Debug       DebugConfig       `yaml:"debug"`

	// Entitlements maps an entitlement name to the UIDs that hold it.
	// The activity-log reader needs "powerlogging".
	Entitlements map[string][]int `yaml:"entitlements"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Pointer fields distinguish "not set" from false.
type ConfigOverrides struct {
	Daemon      *DaemonConfig         `yaml:"daemon,omitempty"`
	ActivityLog *ActivityLogOverrides `yaml:"activity_log,omitempty"`
	Debug       *DebugOverrides       `yaml:"debug,omitempty"`
	Summary     *SummaryConfig        `yaml:"summary,omitempty"`
}

// ActivityLogOverrides is ActivityLogConfig with optional fields.
type ActivityLogOverrides struct {
	Capacity     int    `yaml:"capacity,omitempty"`
	StartEnabled *bool  `yaml:"start_enabled,omitempty"`
	Compression  string `yaml:"compression,omitempty"`
}

// DebugOverrides is DebugConfig with optional fields.
type DebugOverrides struct {
	LogNameChanges       *bool `yaml:"log_name_changes,omitempty"`
	Synchronous          *bool `yaml:"synchronous,omitempty"`
	LogAssertionActivity *bool `yaml:"log_assertion_activity,omitempty"`
}

// DaemonConfig configures powerlogd's process-level settings.
type DaemonConfig struct {
	// SocketPath is the Unix socket powerlogd listens on.
	// Default: ${XDG_RUNTIME_DIR:-/run}/powerlog/powerlogd.sock
	SocketPath string `yaml:"socket_path"`

	// LogLevel is one of debug, info, warn, error. Default: info
	LogLevel string `yaml:"log_level"`
}

// ActivityLogConfig configures the activity ring buffer.
type ActivityLogConfig struct {
	// Capacity is the number of records retained. Default: 512
	Capacity int `yaml:"capacity"`

	// StartEnabled takes one logging reference at startup, as if a
	// client had enabled logging. Default: false (development),
	// true (production)
	StartEnabled bool `yaml:"start_enabled"`

	// Compression is the default blob compression for readers that
	// do not request one: none, lz4, or zstd. Default: zstd
	Compression string `yaml:"compression"`
}

// AdmissionConfig configures which transitions reach the text log.
type AdmissionConfig struct {
	// DisplayOnDelay is the minimum assertion age for a release to
	// be text-logged while the display is on. Default: 60s
	DisplayOnDelay time.Duration `yaml:"display_on_delay"`

	// DisplayOffDelay is the same while the display is asleep.
	// Default: 10s
	DisplayOffDelay time.Duration `yaml:"display_off_delay"`

	// LogOnCreate lists assertion types whose creation is text-logged
	// immediately. Nil keeps the built-in table; an empty list
	// disables it.
	LogOnCreate []string `yaml:"log_on_create"`
}

// SummaryConfig configures periodic assertion summaries.
type SummaryConfig struct {
	// Interval between full summaries. Default: 15m
	Interval time.Duration `yaml:"interval"`
}

// DebugConfig holds switches that make the text log more verbose.
type DebugConfig struct {
	// LogNameChanges records assertion renames in both logs.
	LogNameChanges bool `yaml:"log_name_changes"`

	// Synchronous writes every text-log-eligible event immediately,
	// bypassing the release delay.
	Synchronous bool `yaml:"synchronous"`

	// LogAssertionActivity enables the text log for assertion
	// events. Default: true
	LogAssertionActivity bool `yaml:"log_assertion_activity"`
}

// Default returns the default configuration. It is the base that a
// config file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Daemon: DaemonConfig{
			SocketPath: "${XDG_RUNTIME_DIR:-/run}/powerlog/powerlogd.sock",
			LogLevel:   "info",
		},
		ActivityLog: ActivityLogConfig{
			Capacity:    512,
			Compression: "zstd",
		},
		Admission: AdmissionConfig{
			DisplayOnDelay:  60 * time.Second,
			DisplayOffDelay: 10 * time.Second,
		},
		Summary: SummaryConfig{
			Interval: 15 * time.Minute,
		},
		Debug: DebugConfig{
			LogAssertionActivity: true,
		},
	}
}

// Resolve applies environment overrides and variable expansion. It is
// called by LoadFile; callers using Default directly call it too.
func (c *Config) Resolve() {
	c.applyEnvironmentOverrides()
	c.expandVariables()
}

// Load loads configuration from the POWERLOG_CONFIG environment
// variable. There is no fallback if it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("POWERLOG_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("POWERLOG_CONFIG environment variable not set; " +
			"set it to the path of your powerlog.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Resolve()
	return cfg, nil
}

// loadFile merges one configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so once comments and trailing
		// commas are stripped the YAML decoder handles it and the
		// yaml tags apply unchanged.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: log from boot, no debug verbosity.
		if overrides == nil {
			enabled, disabled := true, false
			overrides = &ConfigOverrides{
				ActivityLog: &ActivityLogOverrides{StartEnabled: &enabled},
				Debug: &DebugOverrides{
					LogNameChanges: &disabled,
					Synchronous:    &disabled,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Daemon != nil {
		if overrides.Daemon.SocketPath != "" {
			c.Daemon.SocketPath = overrides.Daemon.SocketPath
		}
		if overrides.Daemon.LogLevel != "" {
			c.Daemon.LogLevel = overrides.Daemon.LogLevel
		}
	}

	if overrides.ActivityLog != nil {
		if overrides.ActivityLog.Capacity != 0 {
			c.ActivityLog.Capacity = overrides.ActivityLog.Capacity
		}
		if overrides.ActivityLog.StartEnabled != nil {
			c.ActivityLog.StartEnabled = *overrides.ActivityLog.StartEnabled
		}
		if overrides.ActivityLog.Compression != "" {
			c.ActivityLog.Compression = overrides.ActivityLog.Compression
		}
	}

	if overrides.Debug != nil {
		if overrides.Debug.LogNameChanges != nil {
			c.Debug.LogNameChanges = *overrides.Debug.LogNameChanges
		}
		if overrides.Debug.Synchronous != nil {
			c.Debug.Synchronous = *overrides.Debug.Synchronous
		}
		if overrides.Debug.LogAssertionActivity != nil {
			c.Debug.LogAssertionActivity = *overrides.Debug.LogAssertionActivity
		}
	}

	if overrides.Summary != nil && overrides.Summary.Interval != 0 {
		c.Summary.Interval = overrides.Summary.Interval
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
	}
	c.Daemon.SocketPath = expandVars(c.Daemon.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Daemon.SocketPath == "" {
		errs = append(errs, fmt.Errorf("daemon.socket_path is required"))
	}

	logLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(logLevels, c.Daemon.LogLevel) {
		errs = append(errs, fmt.Errorf("daemon.log_level must be one of: %v", logLevels))
	}

	if c.ActivityLog.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("activity_log.capacity must be positive, got %d", c.ActivityLog.Capacity))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressions, c.ActivityLog.Compression) {
		errs = append(errs, fmt.Errorf("activity_log.compression must be one of: %v", compressions))
	}

	if c.Admission.DisplayOnDelay < 0 || c.Admission.DisplayOffDelay < 0 {
		errs = append(errs, fmt.Errorf("admission delays must not be negative"))
	}

	if c.Summary.Interval <= 0 {
		errs = append(errs, fmt.Errorf("summary.interval must be positive, got %v", c.Summary.Interval))
	}

	for name, uids := range c.Entitlements {
		for _, uid := range uids {
			if uid < 0 {
				errs = append(errs, fmt.Errorf("entitlements.%s: invalid uid %d", name, uid))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureSocketDirectory creates the directory that holds the socket.
func (c *Config) EnsureSocketDirectory() error {
	directory := filepath.Dir(c.Daemon.SocketPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
