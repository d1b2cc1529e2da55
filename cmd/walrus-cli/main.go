// Package main provides the entry point for walrus-cli.
//
// walrus-cli is the command-line client for walrus: one-shot ping, get,
// set and rpush against a running server.
package main

import (
	"fmt"
	"os"

	"github.com/walrusdb/walrus/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
