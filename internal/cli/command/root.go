// Package command provides CLI command definitions for walrus-cli.
//
// It uses urfave/cli/v2 for command parsing. Each command opens a fresh
// connection to the server, issues one request and prints the reply.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "walrus-cli",
		Usage:   "walrus command-line client",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			GetCommand(),
			SetCommand(),
			RPushCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "walrus server address",
			EnvVars: []string{"WALRUS_SERVER"},
			Value:   "127.0.0.1:6379",
		},
	}
}
