// Command vcctl is the operator and developer companion to the vcanchor
// server: it signs credentials and bearer tokens for local testing and runs
// maintenance tasks against the database.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "vcctl",
		Usage: "sign credentials and tokens, run vcanchor maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level for maintenance commands",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			keygenCommand(),
			signVCCommand(),
			signTokenCommand(),
			resetStuckCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vcctl:", err)
		os.Exit(1)
	}
}
