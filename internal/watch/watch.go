// Package watch re-triggers processing of a local repository when its
// files change. Events are debounced into one trigger per quiet period;
// the fingerprint check downstream keeps repeated triggers cheap.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// DefaultDebounce is the quiet period between the last event and the
// trigger.
const DefaultDebounce = 2 * time.Second

// ignoredDirs are never watched; churn inside them is not source changes.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// TriggerFunc starts a processing run. ErrAlreadyProcessing is expected
// while a run is still live and is absorbed.
type TriggerFunc func(ctx context.Context) error

// Watcher watches one local repository directory.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  TriggerFunc
	logger   *slog.Logger
}

// New creates a watcher over root. A non-positive debounce uses
// DefaultDebounce.
func New(root string, debounce time.Duration, trigger TriggerFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		logger:   logger,
	}
}

// Run watches until the context is cancelled. New subdirectories are
// added to the watch as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes",
		slog.String("root", w.root),
		slog.Duration("debounce", w.debounce))

	// The timer is armed on the first event and re-armed on each
	// subsequent one; it fires after a quiet period.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories need explicit watches.
				_ = w.addRecursive(fsw, event.Name)
			}
			w.logger.Debug("change detected",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			w.fire(ctx)
		}
	}
}

// fire invokes the trigger, absorbing the already-processing case.
func (w *Watcher) fire(ctx context.Context) {
	err := w.trigger(ctx)
	switch {
	case err == nil:
		w.logger.Info("reprocessing triggered", slog.String("root", w.root))
	case cserr.CodeOf(err) == cserr.ErrCodeAlreadyProcessing:
		w.logger.Debug("change during live run, fingerprints will catch up")
	default:
		w.logger.Error("reprocessing failed", slog.String("error", err.Error()))
	}
}

// addRecursive watches path and every directory below it.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if p != path && (ignoredDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// ignored reports whether the event path lies in an ignored directory.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if ignoredDirs[part] || (part != "." && strings.HasPrefix(part, ".")) {
			return true
		}
	}
	return false
}
