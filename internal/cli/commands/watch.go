package commands

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher reports changes to a set of files. Directories are watched
// rather than files so editors that replace files on save are still seen.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	files    map[string]bool
	dirs     map[string]bool
}

func newFileWatcher(logger *slog.Logger, debounce time.Duration, files []string) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher:  w,
		logger:   logger,
		debounce: debounce,
		dirs:     make(map[string]bool),
	}
	fw.set(files)
	return fw, nil
}

// set replaces the watched file set.
func (fw *fileWatcher) set(files []string) {
	fw.files = make(map[string]bool, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		fw.files[f] = true
		dir := filepath.Dir(f)
		if fw.dirs[dir] {
			continue
		}
		if err := fw.watcher.Add(dir); err != nil {
			fw.logger.Error("failed to watch directory", "dir", dir, "error", err)
			continue
		}
		fw.dirs[dir] = true
	}
}

func (fw *fileWatcher) Close() error {
	return fw.watcher.Close()
}

// loop calls onChange once per burst of changes until ctx is done, passing
// the files changed in the burst, sorted. onChange returns the next file set
// to watch.
func (fw *fileWatcher) loop(ctx context.Context, onChange func(ctx context.Context, changed []string) []string) error {
	fire := make(chan struct{}, 1)
	pending := make(map[string]bool)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !fw.files[name] {
				continue
			}
			pending[name] = true
			fw.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			fw.set(onChange(ctx, changed))

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error("watcher error", "error", err)
		}
	}
}
