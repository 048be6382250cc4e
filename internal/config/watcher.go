package config

import (
	"fmt"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a Registry's backing file on write events,
// grounded on cmd/vision3/config_watcher.go's fsnotify-based reload.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching r's backing file for changes. Reload
// errors are logged, not returned, since a bad edit to the file on disk
// should not take the running server down.
func NewWatcher(r *Registry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := fw.Add(r.path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", r.path, err)
	}
	w := &Watcher{registry: r, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.registry.Load(); err != nil {
				log.Printf("ERROR: config: hot-reload of %s failed: %v", w.registry.path, err)
				continue
			}
			log.Printf("INFO: config: reloaded %s", w.registry.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARN: config: watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Stop ends the watch loop and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
}
