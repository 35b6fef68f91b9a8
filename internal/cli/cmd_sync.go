package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"marksync/internal/config"
	"marksync/internal/syncer"
)

var errSyncFailed = errors.New("sync failed for one or more sources")

var errNoSources = errors.New("no sources configured (add one to the config file)")

// SyncCmd returns the sync command.
func SyncCmd(app *App) *Command {
	return &Command{
		Flags: flag.NewFlagSet("sync", flag.ContinueOnError),
		Name:  "sync",
		Short: "Run one reconciliation pass over all sources",
		Long: "Fetch every configured remote task list, merge it with its local\n" +
			"document, push local completion changes, and rewrite the document.\n" +
			"A failing source is reported and does not stop the others.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execSync(ctx, o, app)
		},
	}
}

func execSync(ctx context.Context, o *IO, app *App) error {
	results, err := runPass(ctx, app, nil)
	if err != nil {
		return err
	}

	failures := 0

	for _, res := range results {
		if res.Err != nil {
			failures++

			o.ErrPrintln(fmt.Sprintf("%s: %v", res.Source.Name, res.Err))

			continue
		}

		o.Println(fmt.Sprintf("%s: %d added, %d updated, %d completion changes",
			res.Source.Name, res.Stats.Added, res.Stats.Updated, res.Stats.CompletionChanges))
	}

	if failures > 0 {
		return fmt.Errorf("%w (%d of %d)", errSyncFailed, failures, len(results))
	}

	return nil
}

// runPass validates the remote config and runs one pass over every source.
func runPass(ctx context.Context, app *App, marker syncer.WriteMarker) ([]syncer.SourceResult, error) {
	err := config.RequireRemote(app.Config)
	if err != nil {
		return nil, err
	}

	if len(app.Config.Sources) == 0 {
		return nil, errNoSources
	}

	engine := syncer.New(syncer.EngineConfig{
		API:     app.Client(),
		Store:   app.Store,
		Display: app.Config.Display,
		Logger:  app.Logger,
		Marker:  marker,
	})

	return syncer.NewRunner(engine, app.Logger).RunAll(ctx, app.Config.Sources)
}
