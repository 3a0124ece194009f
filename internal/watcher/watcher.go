// Package watcher turns fsnotify events under a project tree into debounced
// rescan requests.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// EventCallback is called for every relevant change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Options configures Watch.
type Options struct {
	// Root is the absolute project directory. Reported paths are relative to it.
	Root string
	// SkipDir reports whether a directory (by base name) is never watched.
	SkipDir func(name string) bool
	// Ignore reports whether a change to the relative path is dropped,
	// e.g. the report file or the cache database.
	Ignore   func(rel string) bool
	Debounce time.Duration
}

// Watch starts an fsnotify watcher on opts.Root and processes change events
// until ctx is cancelled. cb (if non-nil) is called per event; onSettled is
// called once the tree has been quiet for the debounce interval.
//
// New directories created at runtime are automatically added to the watch
// list. Renames are reported as a deletion of the old path; the new path
// arrives as a separate create.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, cb EventCallback, onSettled func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, opts.Root, opts.SkipDir); err != nil {
		return err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("watcher: started", slog.String("root", opts.Root))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(debounce)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(debounce)
		}
	}

	emit := func(kind, rel string) {
		logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
		scheduleSettle()
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleTimer = nil
			settleCh = nil
			if onSettled != nil {
				onSettled()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(opts.Root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if opts.Ignore != nil && opts.Ignore(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if opts.SkipDir != nil && opts.SkipDir(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name, opts.SkipDir); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
					// Files may have landed before the watch was added.
					emit("created", rel)
					continue
				}
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				emit("created", rel)
			case ev.Op&fsnotify.Write != 0:
				emit("updated", rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				emit("deleted", rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping directories for which skip returns true.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skip != nil && skip(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
