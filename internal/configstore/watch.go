package configstore

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watch on the config directory and reloads
// Current whenever config.toml changes, until ctx is cancelled. It is
// intended to be run as a lifecycle.Manager background task; errors
// during an individual reload are logged and do not stop the watch.
func (s *ConfigStore) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	target := s.path()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(); err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			logger.Info("config reloaded from disk")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "error", err)
		}
	}
}
