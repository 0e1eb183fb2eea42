// Package watch turns filesystem activity under the assets directory into
// coalesced "something changed" signals.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

type Watcher struct {
	fs *fsnotify.Watcher
	// C receives one value per burst of changes. It never blocks the watcher:
	// pending signals coalesce.
	C chan struct{}
}

// New watches root and every directory below it, skipping hidden ones.
func New(root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fs: fw, C: make(chan struct{}, 1)}
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	log.Info().Str("tag", "HOT").Str("root", root).Int("dirs", len(fw.WatchList())).Msg("watching assets")
	return w, nil
}

func ignored(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(ev.Name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp")
}

// Run forwards events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ignored(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = w.fs.Add(ev.Name)
				}
			}
			log.Debug().Str("tag", "HOT").Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change")
			select {
			case w.C <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				select {
				case w.C <- struct{}{}:
				default:
				}
				continue
			}
			log.Warn().Err(err).Str("tag", "HOT").Msg("watch error")
		}
	}
}

func (w *Watcher) Close() error { return w.fs.Close() }
