package asset

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a single file. It watches the file's
// directory so that editors replacing the file are noticed.
type Watcher struct {
	path string
	w    *fsnotify.Watcher
}

// NewWatcher starts watching path. The file need not exist yet.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{path: abs, w: w}, nil
}

// Run calls fn with the watched path every time the file is written or
// created, until ctx is done or the watcher is closed. Run closes the
// watcher before returning.
func (w *Watcher) Run(ctx context.Context, fn func(path string)) error {
	defer w.w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger().Debug("watched file changed", slog.String("path", w.path), slog.String("op", ev.Op.String()))
			fn(w.path)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			logger().Warn("file watcher", slog.String("err", err.Error()))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.w.Close() }

// Watch calls fn whenever the file at path changes until ctx is done.
func Watch(ctx context.Context, path string, fn func(path string)) error {
	w, err := NewWatcher(path)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}
