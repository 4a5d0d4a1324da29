package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 250 * time.Millisecond

// Watcher hot-reloads the config file. Edits fire onReload with the freshly
// validated settings; threshold and keystroke changes apply without a
// restart.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching the config file's directory. Watching the directory
// rather than the file survives the write-temp-rename dance editors and our
// own Save perform.
func Watch(onReload func(*Settings)) (*Watcher, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.run(filepath.Base(path), onReload)
	return w, nil
}

func (w *Watcher) run(filename string, onReload func(*Settings)) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	fire := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filename {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors produce bursts of events per save; collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			s, err := Reload()
			if err != nil {
				log.Warn("config reload failed, keeping previous settings",
					slog.String("error", err.Error()))
				continue
			}
			log.Info("configuration reloaded")
			onReload(s)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", slog.String("error", err.Error()))
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
