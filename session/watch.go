package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the newly stored token whenever another writer
// (usually another process sharing the token file) saves or clears it.
// Changes that leave the token unchanged are not reported.
//
// The watch is established before Watch returns. It stops when ctx is done.
func (s *FileStore) Watch(ctx context.Context, onChange func(token string)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create token watcher: %w", err)
	}
	// Save renames a temp file over the target, so the directory is watched
	// rather than the file itself.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch token directory: %w", err)
	}

	last, _ := s.Load()
	go s.watchLoop(ctx, watcher, last, onChange)
	return nil
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, last string, onChange func(string)) {
	defer watcher.Close()
	name := filepath.Base(s.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			token, err := s.Load()
			if err != nil {
				// Retried on the next event.
				continue
			}
			if token == last {
				continue
			}
			last = token
			onChange(token)

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
