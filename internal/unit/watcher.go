package unit

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rota-dev/rota/internal/logger"
)

// watchDebounce coalesces bursts of filesystem events (editors tend to emit
// several per save) into a single catalog refresh.
const watchDebounce = 500 * time.Millisecond

// Watch refreshes the catalog whenever the home directory changes. It blocks
// until the context is cancelled and is meant to run in its own goroutine.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(c.home); err != nil {
		return err
	}

	var debounce *time.Timer
	refresh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("unit directory watch error", logger.Field{Key: "error", Value: err})

		case <-refresh:
			if err := c.Refresh(); err != nil {
				c.logger.Error("failed to refresh catalog after directory change", err)
			} else {
				c.logger.Info("catalog reloaded after directory change")
			}
		}
	}
}
