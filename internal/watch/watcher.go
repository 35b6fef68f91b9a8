package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher forwards filesystem events for a fixed set of document paths to a
// Detector. It watches the parent directories rather than the files
// themselves: editors that save via rename-and-replace would otherwise
// silently detach the watch on every save.
type Watcher struct {
	fs       *fsnotify.Watcher
	detector *Detector
	logger   *slog.Logger
	paths    map[string]bool
}

// NewWatcher starts watching the parent directory of every path. All paths
// must exist as directories by the time this is called; the sync engine's
// bootstrap phase guarantees that for configured sources.
func NewWatcher(detector *Detector, logger *slog.Logger, paths []string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fs:       fs,
		detector: detector,
		logger:   logger,
		paths:    make(map[string]bool, len(paths)),
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}

	dirs := make(map[string]bool)

	for _, path := range paths {
		clean := filepath.Clean(path)
		w.paths[clean] = true
		dirs[filepath.Dir(clean)] = true
	}

	for dir := range dirs {
		addErr := fs.Add(dir)
		if addErr != nil {
			_ = fs.Close()

			return nil, fmt.Errorf("watching %s: %w", dir, addErr)
		}
	}

	return w, nil
}

// Run pumps events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()
	defer w.detector.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}

			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)
	if !w.paths[path] {
		return
	}

	w.logger.Debug("document changed", slog.String("path", path), slog.String("op", event.Op.String()))
	w.detector.HandleEvent(path)
}
