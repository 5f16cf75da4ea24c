package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher calls OnChange after the config file is written, created or
// renamed into place. Events inside the debounce window are coalesced.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	log      *zap.SugaredLogger
}

// NewWatcher creates a watcher for path. A zero debounce means 500ms.
func NewWatcher(path string, debounce time.Duration, log *zap.SugaredLogger, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		log:      log,
	}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file atomically are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debugw("config file changed", "file", evt.Name, "op", evt.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("config watcher error", "error", err)
		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}
