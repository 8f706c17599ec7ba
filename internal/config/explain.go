package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	display
//	refresh_rate
//	detect_refresh_rate
//	sync_to_vblank
//	force_independent_output_painting
//	outputs
//	damage_rect_limit
//	background_color
//	enforce_stacking
//	reconcile_interval
//	hotkeys.repaint
//	logging.level
//	logging.file
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path file source wins.
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if len(parts) == 2 {
		switch parts[0] {
		case "hotkeys":
			if parts[1] == "repaint" {
				return cfg.Hotkeys.Repaint, nil
			}
		case "logging":
			return lookupLogging(cfg.Logging, parts[1], path)
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	if len(parts) != 1 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}

	switch path {
	case "display":
		return cfg.Display, nil
	case "refresh_rate":
		return cfg.RefreshRate, nil
	case "detect_refresh_rate":
		return cfg.DetectRefreshRate, nil
	case "sync_to_vblank":
		return cfg.SyncToVBlank, nil
	case "force_independent_output_painting":
		return cfg.ForceIndependentOutputPainting, nil
	case "outputs":
		return cfg.Outputs, nil
	case "damage_rect_limit":
		return cfg.DamageRectLimit, nil
	case "background_color":
		return cfg.BackgroundColor, nil
	case "enforce_stacking":
		return cfg.EnforceStacking, nil
	case "reconcile_interval":
		return cfg.ReconcileInterval.String(), nil
	case "hotkeys":
		return cfg.Hotkeys, nil
	case "logging":
		return cfg.Logging, nil
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}

func lookupLogging(l LoggingConfig, key, path string) (any, error) {
	switch key {
	case "level":
		return l.Level, nil
	case "format":
		return l.Format, nil
	case "file":
		return l.File, nil
	case "max_size_mb":
		return l.MaxSizeMB, nil
	case "max_backups":
		return l.MaxBackups, nil
	case "max_age_days":
		return l.MaxAgeDays, nil
	case "compress":
		return l.Compress, nil
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}
