package remote

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albanobattistella/eOVPN/common"
)

// Watcher reports the configuration list whenever the directory changes.
type Watcher struct {
	dir      string
	observer common.Observer
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher watches dir, creating it if needed.
func NewWatcher(dir string, observer common.Observer) (*Watcher, error) {
	if err := common.EnsureDir(dir); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:      dir,
		observer: observer,
		debounce: common.WatchDebounce,
		fsw:      fsw,
	}, nil
}

// Run emits the current listing, then one listing per burst of changes,
// until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.publish()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			common.LogDebug("Config dir event: %s", event)
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			common.LogWarn("Config dir watcher: %v", err)
		case <-timer.C:
			w.publish()
		}
	}
}

func (w *Watcher) publish() {
	entries, err := ListConfigs(w.dir)
	if err != nil {
		common.LogWarn("Listing %s failed: %v", w.dir, err)
		return
	}
	w.observer.ConfigListChanged(entries)
}
