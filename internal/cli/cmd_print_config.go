package cli

import (
	"context"
	"os"

	flag "github.com/spf13/pflag"

	"marksync/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(app *App) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Name:  "print-config",
		Short: "Show the resolved configuration",
		Long:  "Display the effective configuration with the token redacted.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, app)
		},
	}
}

func execPrintConfig(o *IO, app *App) error {
	formatted, err := config.Format(app.Config)
	if err != nil {
		return err
	}

	o.Println(formatted)
	o.Println()

	if _, statErr := os.Stat(app.ConfigPath); statErr == nil {
		o.Println("# config file:", app.ConfigPath)
	} else {
		o.Println("# config file:", app.ConfigPath, "(not found, using defaults)")
	}

	return nil
}
