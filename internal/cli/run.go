package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"marksync/internal/config"
	"marksync/internal/remote"
	"marksync/internal/store"
)

const helpFlag = "--help"

// App carries the resolved configuration and shared collaborators into the
// commands.
type App struct {
	ConfigPath string
	Config     config.Config
	Logger     *slog.Logger
	Env        map[string]string
	Store      store.Store
}

// Client builds a remote client from the configured token.
func (a *App) Client() *remote.Client {
	return a.ClientWithToken(a.Config.AccessToken)
}

// ClientWithToken builds a remote client with an explicit token. The API
// root can be overridden through MARKSYNC_API_URL, which the tests use to
// point the CLI at a local server.
func (a *App) ClientWithToken(token string) *remote.Client {
	base := a.Env["MARKSYNC_API_URL"]
	if base == "" {
		base = remote.DefaultBaseURL
	}

	return remote.NewClient(token, remote.WithBaseURL(base))
}

// Run is the main entry point. Returns the process exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(in, out, errOut)

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	configPath := config.Path(flags.configPath, env)

	cfg, err := config.Load(configPath, false)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}

	app := &App{
		ConfigPath: configPath,
		Config:     cfg,
		Logger:     slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		Env:        env,
		Store:      store.NewDisk(),
	}

	commands := []*Command{
		SyncCmd(app),
		WatchCmd(app),
		VerifyCmd(app),
		LoginCmd(app),
		PrintConfigCmd(app),
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(o, commands)

		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return Dispatch(ctx, o, commands, flags.remaining[0], flags.remaining[1:])
}

type globalFlags struct {
	configPath string
	verbose    bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	for idx := 0; idx < len(args); idx++ {
		arg := args[idx]

		switch {
		case arg == "-c" || arg == "--config":
			if idx+1 >= len(args) {
				return globalFlags{}, fmt.Errorf("flag requires an argument: %s", arg)
			}

			flags.configPath = args[idx+1]
			idx++
		case strings.HasPrefix(arg, "--config="):
			flags.configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "-v" || arg == "--verbose":
			flags.verbose = true
		case arg == "-h" || arg == helpFlag:
			flags.remaining = []string{helpFlag}

			return flags, nil
		case strings.HasPrefix(arg, "-") && arg != "-":
			return globalFlags{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			flags.remaining = args[idx:]

			return flags, nil
		}
	}

	return flags, nil
}

func printUsage(o *IO, commands []*Command) {
	o.Println(`marksync - keep markdown task documents in sync with remote task lists

Usage: marksync [options] <command> [args]

Options:
  -c, --config <file>    Use specified config file
  -v, --verbose          Enable debug logging

Commands:`)

	for _, cmd := range commands {
		o.Println(cmd.helpLine())
	}
}
