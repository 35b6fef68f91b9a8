package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"marksync/internal/config"
)

var errBadCredentials = errors.New("credentials rejected by the remote")

// VerifyCmd returns the verify command.
func VerifyCmd(app *App) *Command {
	return &Command{
		Flags: flag.NewFlagSet("verify", flag.ContinueOnError),
		Name:  "verify",
		Short: "Check the stored access token against the remote",
		Long: "Validate the configured access token with one API call.\n" +
			"Exits 0 when the token is accepted and 1 otherwise.",
		Exec: func(ctx context.Context, _ *IO, _ []string) error {
			return execVerify(ctx, app)
		},
	}
}

func execVerify(ctx context.Context, app *App) error {
	if app.Config.AccessToken == "" {
		return config.ErrNoToken
	}

	if !app.Client().VerifyCredentials(ctx) {
		return errBadCredentials
	}

	return nil
}
