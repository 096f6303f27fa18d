// Package watcher re-runs the discovery pass when Home Assistant's
// registry storage files change. Used by watch mode; the one-shot mode
// never creates a watcher.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Defaults for event coalescing. Registry files are rewritten in
// bursts when HA saves, so changes are debounced, and passes are rate
// limited so a chatty instance cannot rewrite the gateway config in a
// loop.
const (
	DefaultDebounce    = 2 * time.Second
	DefaultMinInterval = 30 * time.Second
)

// interestingFiles are the storage files whose changes warrant a
// re-run. Everything else in .storage is noise.
var interestingFiles = []string{
	"core.config_entries",
	"core.device_registry",
	"core.entity_registry",
	"options.json",
}

// Watcher triggers discovery re-runs on registry changes.
type Watcher struct {
	paths       []string
	debounce    time.Duration
	minInterval time.Duration
	logger      *slog.Logger
}

// New creates a watcher over the given directories.
func New(paths []string) *Watcher {
	return &Watcher{
		paths:       paths,
		debounce:    DefaultDebounce,
		minInterval: DefaultMinInterval,
		logger:      slog.Default().With("component", "watcher"),
	}
}

// Run blocks, invoking runPass after relevant file changes, until the
// context is canceled. Passes never overlap: events arriving during a
// pass coalesce into at most one follow-up run.
func (w *Watcher) Run(ctx context.Context, runPass func(context.Context)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	for _, path := range w.paths {
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("Could not watch path", "path", path, "error", err)
		}
	}

	var (
		debounce = time.NewTimer(0)
		pending  = false
		lastRun  = time.Now()
	)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isInteresting(event.Name) {
				continue
			}
			w.logger.Debug("Registry change detected", "file", event.Name)
			if !pending {
				pending = true
				debounce.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			if wait := w.minInterval - time.Since(lastRun); wait > 0 {
				debounce.Reset(wait)
				continue
			}
			pending = false
			lastRun = time.Now()
			w.logger.Info("Registry changed, re-running discovery")
			runPass(ctx)
		}
	}
}

// isInteresting reports whether the changed file is one of the
// registries the pass reads. HA writes via temp files, so the suffix
// check also covers rename targets.
func isInteresting(name string) bool {
	for _, f := range interestingFiles {
		if strings.HasSuffix(name, f) {
			return true
		}
	}
	return false
}
