package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher drops store caches when their files change on disk, e.g. after a
// backup is restored or kb.json is edited by hand. Directories are watched
// rather than files because writes replace files by rename.
type Watcher struct {
	fw      *fsnotify.Watcher
	targets map[string]Invalidator
	log     zerolog.Logger
}

// NewWatcher watches the given file path -> store pairs.
func NewWatcher(targets map[string]Invalidator, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{fw: fw, targets: make(map[string]Invalidator, len(targets)), log: log.With().Str("component", "store_watcher").Logger()}
	dirs := map[string]bool{}
	for p, inv := range targets {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.targets[abs] = inv
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return w, nil
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if inv, ok := w.targets[abs]; ok {
				inv.Invalidate()
				w.log.Debug().Str("path", abs).Str("op", ev.Op.String()).Msg("store changed on disk, cache dropped")
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) Close() error { return w.fw.Close() }
