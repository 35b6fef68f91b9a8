// Package watch reacts to local edits of synced documents.
//
// A Detector keeps an identifier-to-completion snapshot per document and, on
// a debounced file change, pushes every toggled checkbox to the remote right
// away. Everything else a local edit can express (renames, new lines, moved
// lines) is left for the next full reconciliation pass; only the completion
// toggle is urgent enough to push immediately.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marksync/internal/document"
	"marksync/internal/store"
)

// Default timings. Editors save in bursts; the debounce collapses a burst
// into one scan. The unmark delay covers the window between the engine
// marking its own write and the watcher delivering the resulting event.
const (
	DefaultDebounce    = 2 * time.Second
	DefaultUnmarkDelay = 500 * time.Millisecond
)

// Pusher is the slice of the remote client the detector needs.
type Pusher interface {
	SetCompleted(ctx context.Context, taskGID string, completed bool) error
}

// Change is one completion toggle observed in a saved document.
type Change struct {
	GID       string
	Title     string
	Completed bool
}

// DetectorConfig holds the collaborators for NewDetector.
type DetectorConfig struct {
	Pusher      Pusher
	Store       store.Store
	Logger      *slog.Logger  // nil → slog.Default()
	Debounce    time.Duration // zero → DefaultDebounce
	UnmarkDelay time.Duration // zero → DefaultUnmarkDelay

	// OnChanges, when set, is invoked after a scan that observed toggles.
	// Used for desktop-style notifications.
	OnChanges func(path string, changes []Change)
}

// Detector debounces file events per path and pushes completion toggles.
type Detector struct {
	pusher      Pusher
	store       store.Store
	logger      *slog.Logger
	debounce    time.Duration
	unmarkDelay time.Duration
	onChanges   func(path string, changes []Change)

	mu        sync.Mutex
	timers    map[string]*time.Timer
	snapshots map[string]snapshot
	marks     map[string]time.Time
}

// taskState is one task's entry in a snapshot.
type taskState struct {
	Title     string
	Completed bool
}

type snapshot map[string]taskState

// NewDetector creates a Detector, filling optional fields with defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	d := &Detector{
		pusher:      cfg.Pusher,
		store:       cfg.Store,
		logger:      cfg.Logger,
		debounce:    cfg.Debounce,
		unmarkDelay: cfg.UnmarkDelay,
		onChanges:   cfg.OnChanges,
		timers:      make(map[string]*time.Timer),
		snapshots:   make(map[string]snapshot),
		marks:       make(map[string]time.Time),
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	if d.debounce <= 0 {
		d.debounce = DefaultDebounce
	}

	if d.unmarkDelay <= 0 {
		d.unmarkDelay = DefaultUnmarkDelay
	}

	return d
}

// Prime records the current completion snapshot for a path without pushing
// anything. Called once per source at startup.
func (d *Detector) Prime(path string) {
	current := d.readSnapshot(path)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.snapshots[path] = current
}

// MarkWrite flags the next file event on path as self-inflicted. The sync
// engine calls this immediately before writing a document.
func (d *Detector) MarkWrite(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.marks[path] = time.Now()
}

// HandleEvent processes one file event. A marked event re-primes the
// snapshot and is otherwise ignored; an unmarked event arms (or re-arms) the
// per-path debounce timer.
func (d *Detector) HandleEvent(path string) {
	d.mu.Lock()

	if mark, ok := d.marks[path]; ok && time.Since(mark) <= d.unmarkDelay {
		delete(d.marks, path)
		d.mu.Unlock()

		// The engine wrote this; adopt its content as the new baseline.
		d.Prime(path)

		return
	}

	delete(d.marks, path)

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
	}

	d.timers[path] = time.AfterFunc(d.debounce, func() {
		d.Flush(context.Background(), path)
	})

	d.mu.Unlock()
}

// Flush scans a path immediately, bypassing any armed debounce timer.
// Safe to call concurrently with HandleEvent.
func (d *Detector) Flush(ctx context.Context, path string) {
	d.mu.Lock()

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
		delete(d.timers, path)
	}

	previous := d.snapshots[path]
	d.mu.Unlock()

	current := d.readSnapshot(path)
	changes := d.diff(ctx, path, previous, current)

	d.mu.Lock()
	d.snapshots[path] = current
	d.mu.Unlock()

	if len(changes) > 0 && d.onChanges != nil {
		d.onChanges(path, changes)
	}
}

// diff pushes every toggle between two snapshots. Identifiers absent from
// either side are skipped: appearing or vanishing lines belong to the full
// reconciliation pass, not the hot path.
func (d *Detector) diff(ctx context.Context, path string, previous, current snapshot) []Change {
	if previous == nil {
		// No baseline yet; adopt without pushing.
		return nil
	}

	var changes []Change

	for gid, state := range current {
		before, known := previous[gid]
		if !known || before.Completed == state.Completed {
			continue
		}

		err := d.pusher.SetCompleted(ctx, gid, state.Completed)
		if err != nil {
			d.logger.Warn("completion push failed",
				slog.String("path", path),
				slog.String("task", gid),
				slog.String("error", err.Error()),
			)

			continue
		}

		changes = append(changes, Change{GID: gid, Title: state.Title, Completed: state.Completed})

		d.logger.Info("pushed local toggle",
			slog.String("path", path),
			slog.String("task", gid),
			slog.Bool("completed", state.Completed),
		)
	}

	return changes
}

// readSnapshot parses the document at path into an identifier map. A missing
// or unreadable file yields an empty snapshot.
func (d *Detector) readSnapshot(path string) snapshot {
	raw, err := d.store.ReadFile(path)
	if err != nil {
		return snapshot{}
	}

	doc := document.Parse(string(raw))
	current := make(snapshot)

	for _, t := range doc.Tasks() {
		if t.GID != "" {
			current[t.GID] = taskState{Title: t.Title, Completed: t.Completed}
		}
	}

	return current
}

// Stop cancels every armed debounce timer.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
}
