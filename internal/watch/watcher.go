// Package watch re-indexes the corpus when files under the corpus
// directory change on disk.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sage/internal/contextutil"
)

// DefaultDebounce is how long the watcher waits after the last
// filesystem event before triggering a resync. Editors and sync tools
// tend to emit bursts of events for a single logical save.
const DefaultDebounce = 2 * time.Second

// Watcher observes a directory tree and invokes a resync callback after
// changes settle. Resyncs run serially on the watcher goroutine, so a
// long-running sync simply delays the next one.
type Watcher struct {
	root     string
	debounce time.Duration
	resync   func(ctx context.Context) error
}

// New creates a watcher over root. A non-positive debounce falls back to
// DefaultDebounce.
func New(root string, debounce time.Duration, resync func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, debounce: debounce, resync: resync}
}

// Run watches until ctx is cancelled. It returns a non-nil error only
// when the watch itself cannot be established or breaks; resync failures
// are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.root); err != nil {
		return err
	}
	logger.Info("watching corpus for changes", "dir", w.root, "debounce", w.debounce)

	// The timer is created stopped; the first relevant event arms it.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New subdirectories must be watched too; Add on a
				// plain file or a vanished path fails harmlessly.
				_ = addRecursive(fw, event.Name)
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("corpus change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("filesystem watch error", "error", err)
		case <-timer.C:
			logger.Info("corpus changed, re-indexing")
			if err := w.resync(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("re-index failed", "error", err)
			}
		}
	}
}

// relevant reports whether an event should schedule a resync. Only
// document types the scanner picks up matter; directory churn alone
// does not move any chunks.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".md", ".pdf":
		return true
	}
	return false
}

// addRecursive registers path and every directory below it. Errors on
// individual entries are skipped so one unreadable directory does not
// abort the walk.
func addRecursive(fw *fsnotify.Watcher, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := fw.Add(p); addErr != nil {
			return nil
		}
		return nil
	})
}
