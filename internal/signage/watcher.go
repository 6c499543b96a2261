package signage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reports manifest documents in the store directory that are created,
// rewritten or removed, including edits made by other processes. Events for
// one player that arrive within debounce of each other are reported once.
// Watch blocks until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, log *slog.Logger, debounce time.Duration, onChange func(PlayerID)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", s.dir, err)
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	pending := make(map[PlayerID]struct{})
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			id, ok := playerFromFileName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(debounce)
			}
			pending[id] = struct{}{}
		case <-timer.C:
			for id := range pending {
				onChange(id)
				delete(pending, id)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			log.Warn("manifest watcher error", slog.String("error", err.Error()))
		}
	}
}
