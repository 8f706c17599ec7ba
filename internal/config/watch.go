package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long Watch waits for writes to settle before
// reloading.
var WatchDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever the file at path or one of its
// includes changes, and passes each successful result to onChange. Reloads
// that fail to parse or validate are logged and skipped. It blocks until
// ctx is done.
//
// Directories are watched rather than files so that editors replacing the
// file by rename are still seen.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*LoadResult)) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config-watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	files := map[string]struct{}{target: {}}
	dirs := map[string]struct{}{}
	watchDirs := func() {
		for file := range files {
			dir := filepath.Dir(file)
			if _, ok := dirs[dir]; ok {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				logger.Debug("cannot watch config directory", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = struct{}{}
		}
	}
	if res, err := LoadFromPath(path); err == nil {
		addFiles(files, res.Files)
	}
	watchDirs()
	if len(dirs) == 0 {
		return fmt.Errorf("no config directory could be watched for %s", target)
	}

	timer := time.NewTimer(WatchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if _, ok := files[filepath.Clean(ev.Name)]; !ok {
				continue
			}
			timer.Reset(WatchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		case <-timer.C:
			res, err := LoadFromPath(path)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			addFiles(files, res.Files)
			watchDirs()
			logger.Info("config reloaded", "path", target)
			onChange(res)
		}
	}
}

func addFiles(set map[string]struct{}, files []string) {
	for _, f := range files {
		set[filepath.Clean(f)] = struct{}{}
	}
}
