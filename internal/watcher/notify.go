package watcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startNotify starts an optional fsnotify watch over every project
// directory under base_path, to reduce discovery latency. Events are only
// used to wake the poll loop early; the poll loop remains authoritative for
// idle detection and is never skipped. Failure to start fsnotify (e.g.
// unsupported platform, too many watches) is logged and otherwise ignored:
// the poll loop alone is a complete implementation.
func (w *Watcher) startNotify() {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn(context.Background(), "fsnotify unavailable, falling back to poll-only discovery", "error", err)
		return
	}
	w.fsWatcher = fw

	projectsDir := filepath.Join(w.cfg.BasePath, "projects")
	if err := fw.Add(projectsDir); err != nil {
		w.logger.Warn(context.Background(), "fsnotify could not watch projects dir", "path", projectsDir, "error", err)
	}
	for path := range w.files {
		_ = fw.Add(filepath.Dir(path))
	}

	w.wg.Add(1)
	go w.notifyLoop(fw)
}

func (w *Watcher) notifyLoop(fw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				// New project directories need their own watch registered
				// so files created inside them are also seen.
				if ev.Op&fsnotify.Create != 0 {
					_ = fw.Add(ev.Name)
				}
				w.enqueueWakeup()
			}
		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// enqueueWakeup non-blockingly signals the poll loop to tick early; a
// pending wakeup coalesces with any already queued. Notifier callbacks only
// ever enqueue; the poll loop is the one place handlers run.
func (w *Watcher) enqueueWakeup() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopNotify() {
	if w.fsWatcher == nil {
		return
	}
	_ = w.fsWatcher.Close()
	w.wg.Wait()
}
