package workdir

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const pollInterval = 100 * time.Millisecond

// WaitForFile blocks until name exists in the area or ctx is done.
// Uses fsnotify for efficient watching with polling fallback.
func (a *Area) WaitForFile(ctx context.Context, name string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("wait for %s: %w", name, err)
	}
	if a.Exists(name) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return a.pollForFile(ctx, name)
	}
	defer watcher.Close()

	// Watch the directory, the file itself does not exist yet
	if err := watcher.Add(a.dir); err != nil {
		return a.pollForFile(ctx, name)
	}

	// The file may have appeared between the first check and Add
	if a.Exists(name) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", name, ctx.Err())

		case event, ok := <-watcher.Events:
			if !ok {
				return a.pollForFile(ctx, name)
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				if a.Exists(name) {
					return nil
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return a.pollForFile(ctx, name)
			}
			// Usually recoverable (queue overflow), re-check directly
			if a.Exists(name) {
				return nil
			}
		}
	}
}

// pollForFile is the fallback when fsnotify isn't available.
func (a *Area) pollForFile(ctx context.Context, name string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if a.Exists(name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}
