// Package main provides the entry point for chaingate-cli.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/chaingate/internal/cli/command"
	"github.com/yndnr/chaingate/internal/cli/output"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", output.PaletteFor(os.Stderr).ErrorText("error:"), err)
		os.Exit(1)
	}
}
