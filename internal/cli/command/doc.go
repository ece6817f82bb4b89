// Package command provides CLI command definitions for sevault-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, connection resolution
//   - aead.go: encrypt and decrypt commands
//   - key.go: Key subcommand group
//   - app.go: Application admin subcommand group
//   - system.go: Status, health, audit and backup commands
//   - config.go: CLI configuration commands
//
// Commands follow a consistent pattern of parsing flags, calling the
// HTTP API, and formatting output as a table or JSON.
package command
