// Package main provides the entry point for sevault-cli.
//
// sevault-cli is the command-line management tool for Sevault,
// talking to a server over HTTP or the local management socket.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/sevault-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
