package station

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"vanara-sim/internal/logging"
)

// LoadStatusFile reads a YAML map of station id to status and applies it.
// Unknown ids are reported but do not stop the remaining updates.
func (r *Registry) LoadStatusFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read station status: %w", err)
	}
	var statuses map[string]Status
	if err := yaml.Unmarshal(b, &statuses); err != nil {
		return fmt.Errorf("parse station status: %w", err)
	}
	var firstErr error
	for id, st := range statuses {
		if err := r.SetStatus(id, st); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("station %s: %w", id, err)
		}
	}
	return firstErr
}

// Watch applies path once and then re-applies it whenever the file changes,
// until ctx is done.
func (r *Registry) Watch(ctx context.Context, path string) error {
	log := logging.FromContext(ctx)
	if err := r.LoadStatusFile(path); err != nil {
		log.Error("station status load failed", "path", path, "err", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.LoadStatusFile(path); err != nil {
					log.Error("station status reload failed", "path", path, "err", err)
					continue
				}
				log.Info("station status reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("station watcher error", "err", err)
			}
		}
	}()
	return nil
}
