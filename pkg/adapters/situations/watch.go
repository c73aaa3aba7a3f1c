package situations

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval collapses bursts of filesystem events (editors saving
// through temp files) into a single signal.
var DebounceInterval = 200 * time.Millisecond

// Watch signals on the returned channel whenever anything under the
// virtual_fs tree changes. The channel closes when ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", l.root, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addTree(w, l.root); err != nil {
		w.Close()
		return nil, err
	}

	ch := make(chan struct{}, 1)
	go l.run(ctx, w, ch)
	return ch, nil
}

func (l *Loader) run(ctx context.Context, w *fsnotify.Watcher, ch chan<- struct{}) {
	defer close(ch)
	defer w.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(w, event.Name); err != nil {
						l.logger.Warn("failed to watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			l.logger.Debug("virtual_fs changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(DebounceInterval)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("watcher error", "err", err)

		case <-timer.C:
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
