package config

import (
	"fmt"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies the merged raw layers over DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.RefreshRate != nil {
		cfg.RefreshRate = *raw.RefreshRate
	}
	if raw.DetectRefreshRate != nil {
		cfg.DetectRefreshRate = *raw.DetectRefreshRate
	}
	if raw.SyncToVBlank != nil {
		cfg.SyncToVBlank = *raw.SyncToVBlank
	}
	if raw.ForceIndependentOutputPainting != nil {
		cfg.ForceIndependentOutputPainting = *raw.ForceIndependentOutputPainting
	}
	if raw.Outputs != nil {
		cfg.Outputs = append([]string(nil), raw.Outputs...)
	}
	if raw.DamageRectLimit != nil {
		cfg.DamageRectLimit = *raw.DamageRectLimit
	}
	if raw.BackgroundColor != nil {
		cfg.BackgroundColor = *raw.BackgroundColor
	}
	if raw.EnforceStacking != nil {
		cfg.EnforceStacking = *raw.EnforceStacking
	}
	if raw.ReconcileInterval != nil {
		cfg.ReconcileInterval = *raw.ReconcileInterval
	}
	if raw.Hotkeys != nil && raw.Hotkeys.Repaint != nil {
		cfg.Hotkeys.Repaint = *raw.Hotkeys.Repaint
	}
	if l := raw.Logging; l != nil {
		if l.Level != nil {
			cfg.Logging.Level = *l.Level
		}
		if l.Format != nil {
			cfg.Logging.Format = *l.Format
		}
		if l.File != nil {
			cfg.Logging.File = *l.File
		}
		cfg.Logging.MaxSizeMB = derefInt(l.MaxSizeMB, cfg.Logging.MaxSizeMB)
		cfg.Logging.MaxBackups = derefInt(l.MaxBackups, cfg.Logging.MaxBackups)
		cfg.Logging.MaxAgeDays = derefInt(l.MaxAgeDays, cfg.Logging.MaxAgeDays)
		if l.Compress != nil {
			cfg.Logging.Compress = *l.Compress
		}
	}

	return cfg, nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
