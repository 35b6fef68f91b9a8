package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one marksync subcommand.
type Command struct {
	// Name is the subcommand name as typed on the command line.
	Name string

	// Args summarizes arguments and flags for help output, e.g.
	// "[--token <token>]". Empty for commands that take none.
	Args string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help. Falls back to
	// Short when empty.
	Long string

	// Flags holds the command's flag definitions.
	Flags *flag.FlagSet

	// Exec runs the command after flags are parsed. The context is
	// cancelled on SIGINT/SIGTERM, which is how watch shuts down.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Dispatch runs the named command, or reports it as unknown. Returns the
// process exit code.
func Dispatch(ctx context.Context, o *IO, commands []*Command, name string, args []string) int {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd.run(ctx, o, args)
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(o, commands)

	return 1
}

func (c *Command) usage() string {
	if c.Args == "" {
		return c.Name
	}

	return c.Name + " " + c.Args
}

func (c *Command) helpLine() string {
	return fmt.Sprintf("  %-22s %s", c.usage(), c.Short)
}

func (c *Command) printHelp(o *IO) {
	o.Println("Usage: marksync", c.usage())
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// run parses flags and executes. Error printing happens here so output
// ordering is consistent across commands.
func (c *Command) run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.printHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.printHelp(o)

		return 1
	}

	execErr := c.Exec(ctx, o, c.Flags.Args())
	if execErr != nil {
		o.ErrPrintln("error:", execErr)

		return 1
	}

	return 0
}
