package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"marksync/internal/config"
)

// ErrPassActive is returned when a pass is requested while one is running.
// Triggers arriving mid-pass are dropped, not queued; the interval timer or
// the next file change covers whatever the dropped trigger would have done.
var ErrPassActive = errors.New("reconciliation pass already running")

// SourceResult pairs one source with the outcome of its pass.
type SourceResult struct {
	Source config.Source
	Stats  Stats
	Err    error
}

// Runner serializes reconciliation passes over a set of sources. Timer
// ticks, file-change triggers, and manual runs all funnel through RunAll.
type Runner struct {
	engine *Engine
	logger *slog.Logger
	active atomic.Bool
}

// NewRunner wraps an engine. A nil logger falls back to slog.Default().
func NewRunner(engine *Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{engine: engine, logger: logger}
}

// RunAll reconciles every source in order. A failing source is reported in
// its result and does not stop the remaining sources. Returns ErrPassActive
// when another pass holds the engine.
func (r *Runner) RunAll(ctx context.Context, sources []config.Source) ([]SourceResult, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, ErrPassActive
	}

	defer r.active.Store(false)

	results := make([]SourceResult, 0, len(sources))

	for _, src := range sources {
		stats, err := r.engine.SyncSource(ctx, src)
		if err != nil {
			r.logger.Error("sync failed",
				slog.String("source", src.Name),
				slog.String("error", err.Error()),
			)
		} else {
			r.logger.Info("sync complete",
				slog.String("source", src.Name),
				slog.Int("added", stats.Added),
				slog.Int("updated", stats.Updated),
				slog.Int("completion_changes", stats.CompletionChanges),
			)
		}

		results = append(results, SourceResult{Source: src, Stats: stats, Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	return results, nil
}
