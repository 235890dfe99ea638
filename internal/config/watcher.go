package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/balihoo/fulfillment-launcher/internal/splog"
)

// Watcher watches the config file on disk and logs (but never acts on) a
// change. The launcher has no dynamic-reconfiguration feature — restarting
// the process is how a config change takes effect — so this exists purely
// to give an operator a log line explaining why a live process didn't pick
// up an edit they just made.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// Watch starts watching path. The returned Watcher must be closed when the
// caller is done with it.
func Watch(path string, log *splog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					log.Warn("config file changed on disk, restart the launcher to apply it", splog.Fields{
						"path": event.Name,
					})
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Error("config watcher error", splog.Fields{"error": err.Error()})
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
