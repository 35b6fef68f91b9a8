package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"marksync/internal/config"
	"marksync/internal/syncer"
	"marksync/internal/watch"
)

// WatchCmd returns the watch command.
func WatchCmd(app *App) *Command {
	return &Command{
		Flags: flag.NewFlagSet("watch", flag.ContinueOnError),
		Name:  "watch",
		Short: "Sync continuously: periodic passes plus file watching",
		Long: "Run a reconciliation pass immediately, then on every interval tick.\n" +
			"Local saves of a synced document are detected, debounced, and their\n" +
			"completion toggles pushed to the remote right away.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execWatch(ctx, o, app)
		},
	}
}

func execWatch(ctx context.Context, o *IO, app *App) error {
	err := config.RequireRemote(app.Config)
	if err != nil {
		return err
	}

	if len(app.Config.Sources) == 0 {
		return errNoSources
	}

	client := app.Client()

	detector := watch.NewDetector(watch.DetectorConfig{
		Pusher: client,
		Store:  app.Store,
		Logger: app.Logger,
		OnChanges: func(_ string, changes []watch.Change) {
			for _, c := range changes {
				if c.Completed {
					o.Println("completed:", c.Title)
				} else {
					o.Println("reopened:", c.Title)
				}
			}
		},
	})

	engine := syncer.New(syncer.EngineConfig{
		API:     client,
		Store:   app.Store,
		Display: app.Config.Display,
		Logger:  app.Logger,
		Marker:  detector,
	})

	runner := syncer.NewRunner(engine, app.Logger)

	pass := func() {
		results, runErr := runner.RunAll(ctx, app.Config.Sources)
		if runErr != nil {
			// Only ErrPassActive reaches here; the trigger is simply dropped.
			app.Logger.Debug("pass skipped", "reason", runErr.Error())

			return
		}

		for _, res := range results {
			if res.Err != nil {
				o.ErrPrintln(fmt.Sprintf("%s: %v", res.Source.Name, res.Err))

				continue
			}

			if res.Stats != (syncer.Stats{}) {
				o.Println(fmt.Sprintf("%s: %d added, %d updated, %d completion changes",
					res.Source.Name, res.Stats.Added, res.Stats.Updated, res.Stats.CompletionChanges))
			}
		}
	}

	// The first pass bootstraps missing documents, which also guarantees
	// their folders exist before the watcher attaches to them.
	pass()

	paths := make([]string, 0, len(app.Config.Sources))
	for _, src := range app.Config.Sources {
		paths = append(paths, src.Path)
		detector.Prime(src.Path)
	}

	watcher, err := watch.NewWatcher(detector, app.Logger, paths)
	if err != nil {
		return err
	}

	watchErr := make(chan error, 1)

	go func() { watchErr <- watcher.Run(ctx) }()

	interval := time.Duration(app.Config.SyncIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	o.Println(fmt.Sprintf("watching %d document(s), syncing every %s", len(paths), interval))

	for {
		select {
		case <-ctx.Done():
			<-watchErr

			return nil

		case err := <-watchErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("file watcher stopped: %w", err)

		case <-ticker.C:
			pass()
		}
	}
}
