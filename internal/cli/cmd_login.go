package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"marksync/internal/config"
)

var errEmptyToken = errors.New("no token entered")

// LoginCmd returns the login command.
func LoginCmd(app *App) *Command {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	token := flags.String("token", "", "access token (prompts interactively when omitted)")

	return &Command{
		Flags: flags,
		Name:  "login",
		Args:  "[--token <token>]",
		Short: "Store a personal access token",
		Long: "Validate an access token against the remote and save it to the\n" +
			"config file. Without --token, the token is read from an interactive\n" +
			"prompt with echo disabled.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execLogin(ctx, o, app, *token)
		},
	}
}

func execLogin(ctx context.Context, o *IO, app *App, token string) error {
	if token == "" {
		prompted, err := promptToken()
		if err != nil {
			return err
		}

		token = prompted
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errEmptyToken
	}

	client := app.ClientWithToken(token)

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	cfg := app.Config
	cfg.AccessToken = token

	// A token scoped to exactly one workspace needs no manual choice.
	if cfg.WorkspaceGID == "" {
		workspaces, wsErr := client.Workspaces(ctx)
		if wsErr == nil && len(workspaces) == 1 {
			cfg.WorkspaceGID = workspaces[0].GID
			o.Println("workspace:", workspaces[0].Name)
		}
	}

	if cfg.WorkspaceGID != "" {
		listGID, listErr := client.UserTaskListGID(ctx, user.GID, cfg.WorkspaceGID)
		if listErr == nil {
			o.Println("personal task list gid:", listGID, `(usable as a "user_list": true source)`)
		}
	}

	saveErr := config.Save(app.ConfigPath, cfg)
	if saveErr != nil {
		return saveErr
	}

	o.Println("logged in as", user.Name)
	o.Println("config written to", app.ConfigPath)

	return nil
}

func promptToken() (string, error) {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	token, err := line.PasswordPrompt("Access token: ")
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}

	return token, nil
}
