package pluggable

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the bursts of write events editors and build
// tools produce for a single logical change.
const debounceWindow = 250 * time.Millisecond

// moduleWatcher watches one module's WatchPath and triggers a reload when
// the file changes. Watchers exist only while the module is loaded and hot
// reload is enabled.
type moduleWatcher struct {
	orch     *Orchestrator
	moduleID string
	path     string
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

func newModuleWatcher(orch *Orchestrator, moduleID, path string) (*moduleWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher for %s: %w", moduleID, err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s for %s: %w", path, moduleID, err)
	}

	w := &moduleWatcher{
		orch:     orch,
		moduleID: moduleID,
		path:     path,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *moduleWatcher) run() {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.orch.logger.Error("Hot-reload watcher error", "module", w.moduleID, "error", err)
		}
	}
}

func (w *moduleWatcher) reload() {
	w.orch.logger.Info("File change detected, reloading module", "module", w.moduleID, "path", w.path)
	if err := w.orch.Reload(context.Background(), w.moduleID); err != nil {
		w.orch.logger.Error("Hot reload failed", "module", w.moduleID, "error", err)
	}
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *moduleWatcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	_ = w.watcher.Close()
}
