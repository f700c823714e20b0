// Package watch delivers change notifications for a set of tracked files.
package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/minipack/minipack/internal/logging"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher reports changes to tracked files. fsnotify watches directories, so
// the watcher subscribes to the parent directory of every tracked file and
// drops events for untracked siblings.
type Watcher struct {
	fsw *fsnotify.Watcher
	log *logging.Logger

	mu      sync.Mutex
	tracked map[string]struct{}
	dirs    map[string]struct{}
}

func New(log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:     fsw,
		log:     log,
		tracked: make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
	}, nil
}

// Track replaces the tracked set with paths.
func (w *Watcher) Track(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tracked := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		p = filepath.Clean(p)
		tracked[p] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}

	for dir := range w.dirs {
		if _, ok := dirs[dir]; !ok {
			if err := w.fsw.Remove(dir); err != nil {
				w.log.Debugf("failed to stop watching %s: %v", dir, err)
			}
			delete(w.dirs, dir)
		}
	}
	for dir := range dirs {
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.log.Warnf("failed to watch %s: %v", dir, err)
			continue
		}
		w.dirs[dir] = struct{}{}
	}

	w.tracked = tracked
}

// Tracked reports whether path is in the tracked set.
func (w *Watcher) Tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.tracked[filepath.Clean(path)]
	return ok
}

// Run calls onChange for every change event on a tracked file until ctx is
// done, then closes the watcher. Events are delivered one by one, without
// coalescing.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(changeOps) || !w.Tracked(ev.Name) {
				continue
			}
			w.log.Debugf("%s: %s", ev.Op, ev.Name)
			onChange(filepath.Clean(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch error: %v", err)
		}
	}
}
