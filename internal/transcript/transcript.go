// Package transcript provides the narrow external-collaborator boundary
// that feeds file changes into internal/sessionchange. It deliberately
// does not parse the host's transcript format (spec.md explicitly
// excludes that as an external collaborator, §1 and §4.E); it only
// watches the working tree for writes and translates them into change
// records, which is as close as the core gets to "observing" a session.
package transcript

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ChangeSource is the interface internal/sessionchange's recorder
// depends on to learn about file operations. Anything satisfying it —
// a real transcript parser, a filesystem watcher, a test fake — can
// drive the tracker.
type ChangeSource interface {
	// Next blocks until a change is observed or ctx is done.
	Next(ctx context.Context) (absolutePath string, operation string, err error)
	Close() error
}

// Watcher is a ChangeSource backed by fsnotify, watching a directory tree
// for create/write/remove events.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher constructs a Watcher rooted at root. Only root itself is
// added; callers that need recursive watching must call AddDir for each
// subdirectory (fsnotify does not recurse natively).
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw}, nil
}

// AddDir registers an additional directory to watch.
func (w *Watcher) AddDir(dir string) error {
	return w.fsw.Add(dir)
}

// Next blocks until an fsnotify event arrives, translating it to
// (path, operation). Returns ctx.Err() if ctx is cancelled first.
func (w *Watcher) Next(ctx context.Context) (string, string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return "", "", ctx.Err()
			}
			op := operationFor(ev.Op)
			if op == "" {
				continue // chmod-only events carry no content change
			}
			return filepath.Clean(ev.Name), op, nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return "", "", ctx.Err()
			}
			return "", "", err
		}
	}
}

func operationFor(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "modify"
	case op&fsnotify.Remove != 0:
		return "delete"
	case op&fsnotify.Rename != 0:
		return "delete"
	default:
		return ""
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Recorder is the narrow slice of internal/sessionchange.Tracker this
// package depends on, kept separate to avoid a hard package dependency.
type Recorder interface {
	RecordChange(ctx context.Context, session, absolutePath, operation string, recordedAt int64) error
}

// Pump drains source into recorder under session until ctx is cancelled
// or source returns a non-context error, which it returns.
func Pump(ctx context.Context, source ChangeSource, recorder Recorder, session string, now func() int64) error {
	for {
		path, op, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := recorder.RecordChange(ctx, session, path, op, now()); err != nil {
			continue // fail-soft: a single record failure does not stop the pump
		}
	}
}
