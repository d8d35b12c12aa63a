package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chaingate/internal/cli/connection"
	"github.com/yndnr/chaingate/internal/cli/output"
	"github.com/yndnr/chaingate/internal/cli/repl"
)

// WSCommand sends commands over a WebSocket. With arguments it sends them as
// one frame and prints the reply; without, it reads lines interactively.
func WSCommand() *cli.Command {
	return &cli.Command{
		Name:      "ws",
		Usage:     "send commands over a WebSocket connection",
		ArgsUsage: "[command words...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "do not read or write ~/.chaingate/history",
			},
		},
		Action: runWS,
	}
}

func runWS(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	tlsConfig, err := flags.TLSConfig()
	if err != nil {
		return err
	}
	client, err := connection.DialWS(c.Context, flags.Server, flags.CookieName, flags.Cookie, flags.Timeout, tlsConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.NArg() > 0 {
		reply, err := client.Send(strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, reply)
		return err
	}

	history := repl.NewHistory("")
	if !c.Bool("no-history") {
		history = repl.NewHistory(repl.DefaultHistoryFile())
		if err := history.Load(); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "warning: load history: %v\n", err)
		}
	}
	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	shell := repl.New(in, c.App.Writer, client, history)
	shell.SetPrompt(output.PaletteFor(c.App.Writer).PromptText(repl.DefaultPrompt))
	runErr := shell.Run()
	if err := history.Save(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: save history: %v\n", err)
	}
	return runErr
}
