package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawHotkeys struct {
	Repaint *string `yaml:"repaint"`
}

type RawLoggingConfig struct {
	Level      *string `yaml:"level"`
	Format     *string `yaml:"format"`
	File       *string `yaml:"file"`
	MaxSizeMB  *int    `yaml:"max_size_mb"`
	MaxBackups *int    `yaml:"max_backups"`
	MaxAgeDays *int    `yaml:"max_age_days"`
	Compress   *bool   `yaml:"compress"`
}

// RawConfig is one file's view of the configuration. Nil fields were not
// set by that file.
type RawConfig struct {
	Include                        IncludeList       `yaml:"include"`
	Display                        *string           `yaml:"display"`
	RefreshRate                    *int              `yaml:"refresh_rate"`
	DetectRefreshRate              *bool             `yaml:"detect_refresh_rate"`
	SyncToVBlank                   *bool             `yaml:"sync_to_vblank"`
	ForceIndependentOutputPainting *bool             `yaml:"force_independent_output_painting"`
	Outputs                        []string          `yaml:"outputs"`
	DamageRectLimit                *int              `yaml:"damage_rect_limit"`
	BackgroundColor                *string           `yaml:"background_color"`
	EnforceStacking                *bool             `yaml:"enforce_stacking"`
	ReconcileInterval              *Duration         `yaml:"reconcile_interval"`
	Hotkeys                        *RawHotkeys       `yaml:"hotkeys"`
	Logging                        *RawLoggingConfig `yaml:"logging"`
}

// merge returns c with every field set in overlay replaced.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.RefreshRate != nil {
		out.RefreshRate = overlay.RefreshRate
	}
	if overlay.DetectRefreshRate != nil {
		out.DetectRefreshRate = overlay.DetectRefreshRate
	}
	if overlay.SyncToVBlank != nil {
		out.SyncToVBlank = overlay.SyncToVBlank
	}
	if overlay.ForceIndependentOutputPainting != nil {
		out.ForceIndependentOutputPainting = overlay.ForceIndependentOutputPainting
	}
	if overlay.Outputs != nil {
		// Lists replace rather than append.
		out.Outputs = append([]string(nil), overlay.Outputs...)
	}
	if overlay.DamageRectLimit != nil {
		out.DamageRectLimit = overlay.DamageRectLimit
	}
	if overlay.BackgroundColor != nil {
		out.BackgroundColor = overlay.BackgroundColor
	}
	if overlay.EnforceStacking != nil {
		out.EnforceStacking = overlay.EnforceStacking
	}
	if overlay.ReconcileInterval != nil {
		out.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.Hotkeys != nil {
		merged := RawHotkeys{}
		if out.Hotkeys != nil {
			merged = *out.Hotkeys
		}
		if overlay.Hotkeys.Repaint != nil {
			merged.Repaint = overlay.Hotkeys.Repaint
		}
		out.Hotkeys = &merged
	}
	if overlay.Logging != nil {
		merged := RawLoggingConfig{}
		if out.Logging != nil {
			merged = *out.Logging
		}
		merged = mergeRawLogging(merged, *overlay.Logging)
		out.Logging = &merged
	}
	return out
}

func mergeRawLogging(base RawLoggingConfig, overlay RawLoggingConfig) RawLoggingConfig {
	out := base
	if overlay.Level != nil {
		out.Level = overlay.Level
	}
	if overlay.Format != nil {
		out.Format = overlay.Format
	}
	if overlay.File != nil {
		out.File = overlay.File
	}
	if overlay.MaxSizeMB != nil {
		out.MaxSizeMB = overlay.MaxSizeMB
	}
	if overlay.MaxBackups != nil {
		out.MaxBackups = overlay.MaxBackups
	}
	if overlay.MaxAgeDays != nil {
		out.MaxAgeDays = overlay.MaxAgeDays
	}
	if overlay.Compress != nil {
		out.Compress = overlay.Compress
	}
	return out
}
