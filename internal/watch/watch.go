// Package watch triggers rebuilds when source documents change or on a
// schedule.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	cron "github.com/robfig/cron"
)

// DefaultDebounce is used when Options.Debounce is not set.
const DefaultDebounce = 200 * time.Millisecond

// EventCallback is called for every source change seen by the watcher.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// RebuildFunc runs one build. reason is "change" or "schedule". Calls never
// overlap.
type RebuildFunc func(ctx context.Context, reason string)

// Options configure the watcher.
type Options struct {
	Debounce time.Duration
	// Schedule is an optional cron spec (seconds field first, or a
	// descriptor such as "@every 10m") for periodic rebuilds.
	Schedule string
}

// Watch observes the source tree under root and calls rebuild after each
// burst of changes settles, and on every scheduled tick. It blocks until ctx
// is cancelled. New directories created at runtime are added to the watch
// list.
func Watch(ctx context.Context, root string, opts Options, logger *slog.Logger, cb EventCallback, rebuild RebuildFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	ticks := make(chan struct{}, 1)
	if opts.Schedule != "" {
		c := cron.New()
		if err := c.AddFunc(opts.Schedule, func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}); err != nil {
			return fmt.Errorf("watch: schedule %q: %w", opts.Schedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	logger.Info("watcher: started",
		slog.String("root", root),
		slog.Duration("debounce", opts.Debounce),
		slog.String("schedule", opts.Schedule))

	// rebuildTimer debounces bursts of events into one rebuild.
	var rebuildTimer *time.Timer
	var rebuildCh <-chan time.Time

	scheduleRebuild := func() {
		if rebuildTimer == nil {
			rebuildTimer = time.NewTimer(opts.Debounce)
			rebuildCh = rebuildTimer.C
		} else {
			rebuildTimer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if rebuildTimer != nil {
				rebuildTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rebuildCh:
			rebuild(ctx, "change")

		case <-ticks:
			rebuild(ctx, "schedule")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if handleEvent(w, root, ev, logger, cb) {
				scheduleRebuild()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handleEvent reports whether ev touches the source tree.
func handleEvent(w *fsnotify.Watcher, root string, ev fsnotify.Event, logger *slog.Logger, cb EventCallback) bool {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if isHidden(info.Name()) {
				return false
			}
			if addErr := addDirsRecursive(w, absPath); addErr != nil {
				logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			}
			// The directory may already hold sources.
			return true
		}
	}

	if !strings.HasSuffix(absPath, ".md") || isHidden(filepath.Base(absPath)) {
		return false
	}
	rel, relErr := filepath.Rel(root, absPath)
	if relErr != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	var kind string
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = "created"
	case ev.Op&fsnotify.Write != 0:
		kind = "updated"
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// fsnotify reports a rename on the old path; the new path arrives
		// as a separate create.
		kind = "deleted"
	default:
		return false
	}
	logger.Debug("watcher: source changed", slog.String("path", rel), slog.String("op", kind))
	if cb != nil {
		cb(kind, rel)
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// ValidateSchedule reports whether spec is an accepted schedule.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.Parse(spec); err != nil {
		return fmt.Errorf("watch: schedule %q: %w", spec, err)
	}
	return nil
}
