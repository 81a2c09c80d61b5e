package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/pkmeter/pkg/plugin"
)

// Watcher monitors plugin directories and reloads the app when a
// manifest or markup file changes
type Watcher struct {
	watcher  *fsnotify.Watcher
	app      *App
	dirs     []string
	debounce time.Duration

	// Pending reload, reset on every change so a burst of writes
	// triggers one reload
	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// NewWatcher creates a file watcher for hot reload in dev mode
func NewWatcher(a *App, dirs []string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsWatcher,
		app:      a,
		dirs:     dirs,
		debounce: debounce,
	}, nil
}

// Start begins watching and stops when ctx is cancelled
func (w *Watcher) Start(ctx context.Context) {
	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.watchDirRecursive(dir); err != nil {
			w.app.log.Errorf("failed to watch plugin dir %s: %v", dir, err)
		} else {
			w.app.log.Infof("watching plugins: %s", dir)
		}
	}
	go w.eventLoop(ctx)
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// eventLoop processes file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchDirRecursive(event.Name)
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if Relevant(event.Name) {
				w.app.log.Debugf("plugin file changed: %s", event.Name)
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.app.log.Errorf("watcher error: %v", err)
		}
	}
}

// Relevant reports whether a change to path affects built widgets:
// manifests and markup files.
func Relevant(path string) bool {
	base := filepath.Base(path)
	for _, name := range plugin.ManifestNames {
		if base == name {
			return true
		}
	}
	return strings.EqualFold(filepath.Ext(path), ".tmpl")
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()
		w.app.loop.Post(w.app.Reload)
	})
}

// Reloads returns how many reloads the watcher has requested.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
