package audit

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// Follower streams records appended to a log after Start was called.
type Follower struct {
	path    string
	watcher *fsnotify.Watcher
	seen    int
	logger  *slog.Logger
}

func NewFollower(path string) *Follower {
	return &Follower{path: path}
}

func (f *Follower) SetLogger(logger *slog.Logger) {
	f.logger = logger
}

// Start records the current length of the log and begins watching its
// directory. Appends replace the file by rename, so the directory is watched
// rather than the file itself.
func (f *Follower) Start() error {
	recs, err := Load(f.path)
	if err != nil {
		return err
	}
	f.seen = len(recs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	f.watcher = watcher
	return nil
}

// Run delivers new records to fn until ctx is done.
func (f *Follower) Run(ctx context.Context, fn func(Record)) error {
	defer f.watcher.Close()

	name := filepath.Clean(f.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(debounceDelay)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logError("audit_watch_error", "error", err)
		case <-pending:
			pending = nil
			f.flush(fn)
		}
	}
}

func (f *Follower) flush(fn func(Record)) {
	recs, err := Load(f.path)
	if err != nil {
		f.logError("audit_reload_failed", "path", f.path, "error", err)
		return
	}
	if len(recs) < f.seen {
		// log was replaced by a shorter one
		f.seen = 0
	}
	for _, rec := range recs[f.seen:] {
		fn(rec)
	}
	f.seen = len(recs)
}

func (f *Follower) logError(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Error(msg, args...)
	}
}
