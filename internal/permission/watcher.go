package permission

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the project-local settings file and invokes a callback
// when it changes on disk, so externally edited allow/deny lists take effect
// without restarting the session.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	logger   *slog.Logger
	done     chan struct{}
}

// NewWatcher starts watching the settings file of the given store. The
// callback fires on every write, create or rename of the file. Close releases the
// watch.
func NewWatcher(store *SettingsStore, logger *slog.Logger, onChange func()) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory; editors often replace the file instead of writing
	// in place.
	dir := filepath.Dir(store.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		path:     store.Path(),
		onChange: onChange,
		logger:   logger.With("component", "permission_watcher"),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("settings file changed", "path", event.Name, "op", event.Op.String())
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
