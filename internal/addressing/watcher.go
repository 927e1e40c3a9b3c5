package addressing

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dispatchworks/alarmhub/internal/logger"
)

// Watch reloads the book whenever its file changes, until the context is
// canceled. The parent directory is watched because editors and
// configuration tools typically replace the file via rename.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	// Armed after a relevant event; reload happens once the burst settles.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != s.path {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warnf(ctx, "Address book watcher error: %v", err)

		case <-timer.C:
			if err = s.Reload(ctx); err != nil {
				logger.Warnf(ctx, "Address book reload failed, keeping previous version: %v", err)
			}
		}
	}
}
