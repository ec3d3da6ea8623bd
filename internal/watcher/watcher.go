// Package watcher reports file system changes inside vaults.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
	Renamed = "renamed"
)

// DefaultDebounce is how long events for one path are coalesced.
const DefaultDebounce = 100 * time.Millisecond

// Event is a change to one entry of one vault.
type Event struct {
	VaultID int64
	Path    string // vault path with a leading slash
	Kind    string
}

// Callback receives coalesced events.
type Callback func(Event)

// Filter hides changes of no interest. Ignored receives the vault path.
type Filter interface {
	Ignored(rel string) bool
}

// Watch starts an fsnotify watcher on base, the directory holding all
// vaults, and delivers events to cb until ctx is cancelled. Entries directly
// under base must be numeric vault ids; anything else is ignored.
//
// Directories created at runtime are added to the watch list. Events for the
// same path within debounce are merged: the first kind wins, except that a
// later delete overrides a create or update.
func Watch(ctx context.Context, base string, filter Filter, debounce time.Duration, logger *slog.Logger, cb Callback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, base); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("base", base))

	type key struct {
		id   int64
		path string
	}
	pending := make(map[key]string)
	var order []key

	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for _, k := range order {
				if cb != nil {
					cb(Event{VaultID: k.id, Path: k.path, Kind: pending[k]})
				}
			}
			clear(pending)
			order = order[:0]

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, rel, ok := split(base, ev.Name)
			if !ok {
				continue
			}
			if filter != nil && filter.Ignored(rel) {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = Created
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			case ev.Op&fsnotify.Write != 0:
				kind = Updated
			case ev.Op&fsnotify.Remove != 0:
				kind = Deleted
			case ev.Op&fsnotify.Rename != 0:
				// Fired on the old path; the new path arrives as a Create.
				kind = Renamed
			default:
				continue
			}

			k := key{id: id, path: rel}
			prev, seen := pending[k]
			switch {
			case !seen:
				pending[k] = kind
				order = append(order, k)
			case kind == Deleted && prev != Deleted:
				pending[k] = Deleted
			}
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// split maps an absolute path under base to its vault id and vault path.
func split(base, abs string) (int64, string, bool) {
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return 0, "", false
	}
	rel = filepath.ToSlash(rel)
	head, rest, _ := strings.Cut(rel, "/")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, "/" + rest, true
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
