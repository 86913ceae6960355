package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog whenever a description in the directory is
// written, created, removed or renamed. The returned channel receives a
// value after every successful reload and is closed when ctx is done.
// A failed reload is logged and keeps the previous rules.
func (c *Catalog) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", c.dir, err)
	}

	reloaded := make(chan struct{}, 1)
	go c.watch(ctx, watcher, reloaded)
	return reloaded, nil
}

func (c *Catalog) watch(ctx context.Context, watcher *fsnotify.Watcher, reloaded chan<- struct{}) {
	defer close(reloaded)
	defer watcher.Close()

	// Editors emit bursts of events for one save; reload once they settle.
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isDescription(event.Name) || !relevant(event.Op) {
				continue
			}
			c.logger.Debug("Change detected", "file", event.Name, "op", event.Op.String())
			settle = time.After(c.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("Watcher error", "dir", c.dir, "err", err)

		case <-settle:
			settle = nil
			if err := c.Load(); err != nil {
				c.logger.Error("Reload failed, keeping previous rules", "err", err)
				continue
			}
			select {
			case reloaded <- struct{}{}:
			default:
			}
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
