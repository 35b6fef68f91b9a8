// Package syncer implements the bidirectional reconciliation engine.
//
// One reconciliation pass per source runs seven phases: fetch, bootstrap if
// the document is missing, join local and remote tasks on the embedded
// identifier, arbitrate completion conflicts, re-fetch, rewrite the document
// in place, append new remote tasks, and write back only on change.
//
// The engine is conservative: a line whose identifier the remote stops
// reporting is kept verbatim, and lines without an identifier are never
// pushed or deleted. It is also idempotent: a pass with no remote change
// leaves the document byte-identical.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"marksync/internal/config"
	"marksync/internal/document"
	"marksync/internal/remote"
	"marksync/internal/store"
	"marksync/internal/task"
)

const (
	dirPerms  = 0o750
	filePerms = 0o600
)

// API is the slice of the remote client the engine needs.
type API interface {
	ProjectTasks(ctx context.Context, projectGID string) ([]remote.Task, error)
	UserTaskListTasks(ctx context.Context, listGID string) ([]remote.Task, error)
	SetCompleted(ctx context.Context, taskGID string, completed bool) error
}

// WriteMarker is notified immediately before the engine writes a document,
// so the change detector can discard the resulting file event.
type WriteMarker interface {
	MarkWrite(path string)
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Added             int
	Updated           int
	CompletionChanges int
}

// ConflictPolicy arbitrates a completion conflict. Returning true pushes the
// local value to the remote; returning false keeps the remote value, which
// the rewrite phase then adopts locally.
type ConflictPolicy func(localCompleted, remoteCompleted bool) bool

// LocalWins is the default policy: the document's completion state is pushed.
// There is no trustworthy clock on either side, so this is a recency-of-edit
// heuristic, not a guaranteed ordering.
func LocalWins(_, _ bool) bool {
	return true
}

// EngineConfig holds the collaborators for New.
type EngineConfig struct {
	API     API
	Store   store.Store
	Display config.Display
	Policy  ConflictPolicy   // nil → LocalWins
	Logger  *slog.Logger     // nil → slog.Default()
	Now     func() time.Time // nil → time.Now
	Marker  WriteMarker      // optional
}

// Engine runs reconciliation passes. Safe for sequential use only; the
// Runner serializes passes across triggers.
type Engine struct {
	api     API
	store   store.Store
	display config.Display
	policy  ConflictPolicy
	logger  *slog.Logger
	now     func() time.Time
	marker  WriteMarker
	fmtOpts task.FormatOptions
}

// New creates an Engine, filling optional collaborators with defaults.
func New(cfg EngineConfig) *Engine {
	e := &Engine{
		api:     cfg.API,
		store:   cfg.Store,
		display: cfg.Display,
		policy:  cfg.Policy,
		logger:  cfg.Logger,
		now:     cfg.Now,
		marker:  cfg.Marker,
		fmtOpts: task.FormatOptions{
			ShowDueDate:  cfg.Display.ShowDueDate,
			ShowAssignee: cfg.Display.ShowAssignee,
		},
	}

	if e.policy == nil {
		e.policy = LocalWins
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// SyncSource runs one full reconciliation pass for one source.
func (e *Engine) SyncSource(ctx context.Context, src config.Source) (Stats, error) {
	// Phase 0: fetch the full remote snapshot.
	fetched, err := e.fetch(ctx, src)
	if err != nil {
		return Stats{}, fmt.Errorf("syncing %s: fetching tasks: %w", src.Name, err)
	}

	exists, err := e.store.Exists(src.Path)
	if err != nil {
		return Stats{}, fmt.Errorf("syncing %s: checking document: %w", src.Name, err)
	}

	// Phase 1: a missing document is materialized from remote state alone.
	if !exists {
		return e.bootstrap(src, fetched)
	}

	raw, err := e.store.ReadFile(src.Path)
	if err != nil {
		return Stats{}, fmt.Errorf("syncing %s: reading document: %w", src.Name, err)
	}

	original := string(raw)

	// Phase 2: join on the remote identifier, the only valid join key.
	doc := document.Parse(original)
	locals := doc.TasksByGID()
	remotes := tasksByGID(fetched)

	var stats Stats

	// Phase 3: completion conflict arbitration.
	pushed, failed := e.arbitrate(ctx, src, locals, remotes, &stats)

	// Phase 4: refresh, capturing server-computed fields and the pushes.
	refreshed, err := e.fetch(ctx, src)
	if err != nil {
		return stats, fmt.Errorf("syncing %s: refreshing tasks: %w", src.Name, err)
	}

	remotes = tasksByGID(refreshed)

	// Phase 5: single rewrite walk over the original lines.
	out, matched, tsIdx := e.rewrite(doc, remotes, pushed, failed, &stats)

	// Phase 6: append remote tasks not matched during the rewrite.
	out = e.appendNew(out, refreshed, matched, src, &stats)

	// The sync timestamp is refreshed only when the pass produced other
	// content changes, keeping a no-op pass byte-identical. A missing
	// timestamp line is inserted regardless, which settles on the next pass.
	changed := !slices.Equal(out, doc.RawLines)

	if doc.Frontmatter != nil {
		stamp := document.FrontmatterLine(document.KeyLastSynced, e.timestamp())

		switch {
		case tsIdx >= 0 && changed:
			out[tsIdx] = stamp
		case tsIdx < 0:
			out = slices.Insert(out, len(doc.Frontmatter)-1, stamp)
		}
	}

	// Phase 7: conditional write.
	content := document.Join(out)
	if content == original {
		return stats, nil
	}

	e.markWrite(src.Path)

	writeErr := e.store.WriteFile(src.Path, []byte(content), filePerms)
	if writeErr != nil {
		return stats, fmt.Errorf("syncing %s: writing document: %w", src.Name, writeErr)
	}

	return stats, nil
}

// fetch retrieves the remote task set for the source's list kind.
func (e *Engine) fetch(ctx context.Context, src config.Source) ([]remote.Task, error) {
	if src.UserList {
		return e.api.UserTaskListTasks(ctx, src.ProjectGID)
	}

	return e.api.ProjectTasks(ctx, src.ProjectGID)
}

// arbitrate pushes the winning completion value for every conflicting
// identifier. Push failures are logged and skipped; they never abort the
// pass. Returns the identifiers whose remote state was changed and the
// identifiers whose push failed, which the rewrite leaves untouched so the
// conflict is retried on the next pass.
func (e *Engine) arbitrate(
	ctx context.Context,
	src config.Source,
	locals map[string]task.Task,
	remotes map[string]remote.Task,
	stats *Stats,
) (pushed, failed map[string]bool) {
	gids := make([]string, 0, len(locals))
	for gid := range locals {
		gids = append(gids, gid)
	}

	slices.Sort(gids)

	pushed = make(map[string]bool)
	failed = make(map[string]bool)

	for _, gid := range gids {
		local := locals[gid]

		rt, ok := remotes[gid]
		if !ok || local.Completed == rt.Completed {
			continue
		}

		if !e.policy(local.Completed, rt.Completed) {
			continue
		}

		err := e.api.SetCompleted(ctx, gid, local.Completed)
		if err != nil {
			failed[gid] = true

			e.logger.Warn("completion push failed",
				slog.String("source", src.Name),
				slog.String("task", gid),
				slog.String("error", err.Error()),
			)

			continue
		}

		stats.CompletionChanges++
		pushed[gid] = true

		e.logger.Debug("pushed completion state",
			slog.String("source", src.Name),
			slog.String("task", gid),
			slog.Bool("completed", local.Completed),
		)
	}

	return pushed, failed
}

// rewrite walks the original raw lines once, producing the new line list.
// Returns the new lines, the set of matched identifiers, and the index of
// the sync-timestamp line (-1 when absent).
func (e *Engine) rewrite(
	doc *document.Document,
	remotes map[string]remote.Task,
	pushed map[string]bool,
	failed map[string]bool,
	stats *Stats,
) ([]string, map[string]bool, int) {
	out := make([]string, 0, len(doc.RawLines))
	matched := make(map[string]bool)
	tsIdx := -1

	for i, line := range doc.RawLines {
		if i < len(doc.Frontmatter) {
			if strings.HasPrefix(line, document.KeyLastSynced+":") {
				tsIdx = len(out)
			}

			out = append(out, line)

			continue
		}

		t, ok := task.ParseLine(line, i)
		if !ok || t.GID == "" {
			// Opaque text, headings, and never-synced tasks pass through.
			out = append(out, line)

			continue
		}

		rt, known := remotes[t.GID]
		if !known {
			// Conservative deletion: the remote stopped reporting this
			// identifier, so the line is kept verbatim.
			out = append(out, line)

			continue
		}

		matched[t.GID] = true

		if failed[t.GID] {
			// The conflict on this identifier is still open; keep the line
			// as the user wrote it and retry the push next pass.
			out = append(out, line)

			continue
		}

		if !e.display.ShowCompleted && rt.Completed {
			// Dropped locally only; the line reappears once reopened.
			continue
		}

		formatted := e.formatRemote(rt)
		if formatted != line || pushed[t.GID] {
			stats.Updated++
		}

		out = append(out, formatted)
	}

	return out, matched, tsIdx
}

// appendNew inserts remote tasks that matched no existing line, grouped by
// the section membership belonging to this source's list.
func (e *Engine) appendNew(
	out []string,
	refreshed []remote.Task,
	matched map[string]bool,
	src config.Source,
	stats *Stats,
) []string {
	groups := make(map[string][]string)

	var order []string

	for _, rt := range refreshed {
		if matched[rt.GID] {
			continue
		}

		if !e.display.ShowCompleted && rt.Completed {
			continue
		}

		name := rt.SectionIn(src.ProjectGID)

		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}

		groups[name] = append(groups[name], e.formatRemote(rt))
		stats.Added++
	}

	for _, name := range order {
		out = insertGroup(out, name, groups[name])
	}

	return out
}

// insertGroup places new task lines for one section. An existing heading
// takes the lines at the end of its span, strictly before the next heading;
// a missing heading is appended as a new block at document end; the empty
// name appends bare lines at document end.
func insertGroup(lines []string, name string, taskLines []string) []string {
	if name != "" {
		spans := document.SectionSpans(lines)

		if span, ok := spans[name]; ok && span.Heading >= 0 {
			at := span.End
			for at > span.Heading+1 && strings.TrimSpace(lines[at-1]) == "" {
				at--
			}

			return slices.Insert(lines, at, taskLines...)
		}

		block := append([]string{"## " + name}, taskLines...)

		return appendBlock(lines, block)
	}

	return appendBlock(lines, taskLines)
}

// appendBlock appends a block after the last non-blank line, preserving any
// trailing blank lines (the document's final newline) after the block.
func appendBlock(lines, block []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	result := make([]string, 0, len(lines)+len(block)+1)
	result = append(result, lines[:end]...)

	if end > 0 {
		result = append(result, "")
	}

	result = append(result, block...)
	result = append(result, lines[end:]...)

	return result
}

// bootstrap materializes a missing document from the remote snapshot.
func (e *Engine) bootstrap(src config.Source, fetched []remote.Task) (Stats, error) {
	lines := []string{
		document.Delimiter,
		document.FrontmatterLine(document.KeyProject, src.ProjectGID),
		document.FrontmatterLine(document.KeyUserList, strconv.FormatBool(src.UserList)),
		document.FrontmatterLine(document.KeyLastSynced, e.timestamp()),
		document.Delimiter,
		"",
		"# " + src.Name,
	}

	groups := make(map[string][]string)

	var order []string

	var stats Stats

	for _, rt := range fetched {
		if !e.display.ShowCompleted && rt.Completed {
			continue
		}

		name := rt.SectionIn(src.ProjectGID)

		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}

		groups[name] = append(groups[name], e.formatRemote(rt))
		stats.Added++
	}

	// The default bucket renders first, directly under the header.
	slices.SortStableFunc(order, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "":
			return -1
		case b == "":
			return 1
		default:
			return 0
		}
	})

	for _, name := range order {
		lines = append(lines, "")

		if name != "" {
			lines = append(lines, "## "+name)
		}

		lines = append(lines, groups[name]...)
	}

	lines = append(lines, "")

	dir := filepath.Dir(src.Path)
	if dir != "." && dir != string(os.PathSeparator) {
		mkdirErr := e.store.MkdirAll(dir, dirPerms)
		if mkdirErr != nil {
			return Stats{}, fmt.Errorf("syncing %s: creating folder: %w", src.Name, mkdirErr)
		}
	}

	e.markWrite(src.Path)

	writeErr := e.store.WriteFile(src.Path, []byte(document.Join(lines)), filePerms)
	if writeErr != nil {
		return Stats{}, fmt.Errorf("syncing %s: creating document: %w", src.Name, writeErr)
	}

	e.logger.Info("document created",
		slog.String("source", src.Name),
		slog.String("path", src.Path),
		slog.Int("tasks", stats.Added),
	)

	return stats, nil
}

func (e *Engine) formatRemote(rt remote.Task) string {
	return task.FormatLine(task.Task{
		Completed: rt.Completed,
		Title:     rt.Name,
		DueOn:     rt.DueOn,
		Assignee:  rt.AssigneeName(),
		GID:       rt.GID,
	}, e.fmtOpts)
}

func (e *Engine) markWrite(path string) {
	if e.marker != nil {
		e.marker.MarkWrite(path)
	}
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func tasksByGID(tasks []remote.Task) map[string]remote.Task {
	byGID := make(map[string]remote.Task, len(tasks))
	for _, t := range tasks {
		byGID[t.GID] = t
	}

	return byGID
}
