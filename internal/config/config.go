package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/compote/internal/output"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRefreshRate       = 50
	DefaultDamageRectLimit   = 100
	DefaultBackgroundColor   = "#000000"
	DefaultReconcileInterval = 30 * time.Second
	DefaultRepaintHotkey     = "Mod4-Shift-r"

	maxRefreshRate = 1000
)

// Duration is a time.Duration written as a Go duration string ("30s").
// A bare 0 is accepted and means disabled.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string like \"30s\"")
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// HotkeysConfig holds global key bindings. An empty binding is disabled.
type HotkeysConfig struct {
	Repaint string `yaml:"repaint"`
}

// LoggingConfig configures the daemon logger.
type LoggingConfig struct {
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
	// File enables a rotating log file in addition to stderr
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `yaml:"max_backups,omitempty"`
	// MaxAgeDays removes rotated files older than this; 0 keeps them
	MaxAgeDays int  `yaml:"max_age_days,omitempty"`
	Compress   bool `yaml:"compress,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	Display                        string        `yaml:"display,omitempty"`
	RefreshRate                    int           `yaml:"refresh_rate"`
	DetectRefreshRate              bool          `yaml:"detect_refresh_rate"`
	SyncToVBlank                   bool          `yaml:"sync_to_vblank"`
	ForceIndependentOutputPainting bool          `yaml:"force_independent_output_painting"`
	Outputs                        []string      `yaml:"outputs,omitempty"`
	DamageRectLimit                int           `yaml:"damage_rect_limit"`
	BackgroundColor                string        `yaml:"background_color"`
	EnforceStacking                bool          `yaml:"enforce_stacking"`
	ReconcileInterval              Duration      `yaml:"reconcile_interval"`
	Hotkeys                        HotkeysConfig `yaml:"hotkeys"`
	Logging                        LoggingConfig `yaml:"logging"`
}

func DefaultConfig() *Config {
	return &Config{
		RefreshRate:       DefaultRefreshRate,
		DetectRefreshRate: true,
		SyncToVBlank:      true,
		DamageRectLimit:   DefaultDamageRectLimit,
		BackgroundColor:   DefaultBackgroundColor,
		ReconcileInterval: Duration{DefaultReconcileInterval},
		Hotkeys: HotkeysConfig{
			Repaint: DefaultRepaintHotkey,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return DefaultConfig().Logging
	}
	cfg := c.Logging
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.File != "" {
		if cfg.MaxSizeMB == 0 {
			cfg.MaxSizeMB = 10
		}
		if cfg.MaxBackups == 0 {
			cfg.MaxBackups = 3
		}
		if strings.HasPrefix(cfg.File, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				cfg.File = filepath.Join(home, cfg.File[2:])
			}
		}
	}
	return cfg
}

// OutputDevices parses the configured output geometries. It returns nil
// when outputs should be detected.
func (c *Config) OutputDevices() ([]output.Device, error) {
	if len(c.Outputs) == 0 {
		return nil, nil
	}
	return output.FromGeometries(c.Outputs)
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if c.RefreshRate < 1 || c.RefreshRate > maxRefreshRate {
		return &ValidationError{Path: "refresh_rate", Err: fmt.Errorf("refresh_rate must be between 1 and %d", maxRefreshRate)}
	}
	if c.DamageRectLimit < 1 {
		return &ValidationError{Path: "damage_rect_limit", Err: fmt.Errorf("damage_rect_limit must be >= 1")}
	}
	if !isHexColor(c.BackgroundColor) {
		return &ValidationError{Path: "background_color", Err: fmt.Errorf("background_color must look like #rrggbb")}
	}
	if c.ReconcileInterval.Duration < 0 {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be >= 0")}
	}
	for i, spec := range c.Outputs {
		if _, err := output.ParseGeometry(spec); err != nil {
			return &ValidationError{Path: "outputs", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("logging.level must be one of: debug, info, warn, error")}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Err: fmt.Errorf("logging.format must be one of: text, json")}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return &ValidationError{Path: "logging", Err: fmt.Errorf("log rotation limits must be >= 0")}
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
