package document

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a records fixture whenever the extraction pipeline rewrites
// it, delivering a freshly assembled record set per change. The previous set
// is never mutated; consumers swap wholesale.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan []Record
}

const watchDebounce = 200 * time.Millisecond

// NewWatcher watches the directory containing path; editors and pipelines
// replace files by rename, which a file-level watch would lose.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		watcher: fsw,
		updates: make(chan []Record, 1),
	}, nil
}

// Updates delivers each reloaded record set.
func (w *Watcher) Updates() <-chan []Record {
	return w.updates
}

// Run pumps filesystem events until the context ends. Rapid event bursts
// (write + rename + chmod) collapse into one reload per debounce window.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	var pending *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watch] %v", err)
		case <-fire:
			records, err := LoadFile(w.path)
			if err != nil {
				log.Printf("[watch] reload %s: %v", w.path, err)
				continue
			}
			select {
			case w.updates <- records:
			default:
				// Drop the stale set; a newer one replaces it.
				select {
				case <-w.updates:
				default:
				}
				w.updates <- records
			}
		}
	}
}
