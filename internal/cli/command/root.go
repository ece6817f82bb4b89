// Package command provides CLI command definitions for sevault-cli.
//
// It uses urfave/cli/v2 for command parsing. Connection settings come
// from flags, SEVAULT_CLI_* environment variables, and the config file,
// in that order of precedence.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sevault-go/internal/cli/config"
	"github.com/yndnr/sevault-go/internal/cli/connection"
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
		Name:    "sevault-cli",
		Usage:   "Sevault command-line management tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			EncryptCommand(),
			DecryptCommand(),
			KeyCommand(),
			AppCommand(),
			SystemCommand(),
			ConfigCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Sevault server address (e.g. 127.0.0.1:5090)",
			EnvVars: []string{"SEVAULT_CLI_SERVER"},
		},
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "Path to the server's local Unix socket",
			EnvVars: []string{"SEVAULT_CLI_SOCKET"},
		},
		&cli.StringFlag{
			Name:    "app-id",
			Aliases: []string{"a"},
			Usage:   "Application ID for authentication",
			EnvVars: []string{"SEVAULT_CLI_APP_ID"},
		},
		&cli.StringFlag{
			Name:    "app-secret",
			Aliases: []string{"A"},
			Usage:   "Application secret for authentication",
			EnvVars: []string{"SEVAULT_CLI_APP_SECRET"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to CLI config file",
			EnvVars: []string{"SEVAULT_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Named connection profile from the config file",
			EnvVars: []string{"SEVAULT_CLI_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server    string
	Socket    string
	AppID     string
	AppSecret string

	ConfigPath string
	Profile    string

	Output  string
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:     c.String("server"),
		Socket:     c.String("socket"),
		AppID:      c.String("app-id"),
		AppSecret:  c.String("app-secret"),
		ConfigPath: c.String("config"),
		Profile:    c.String("profile"),
		Output:     c.String("output"),
		Verbose:    c.Bool("verbose"),
	}
}

// EnsureConnected resolves connection settings and returns a client.
// Flags override the config file; the config file supplies anything the
// flags leave empty.
func EnsureConnected(c *cli.Context) (*connection.Client, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Resolve(flags.Profile)
	if err != nil {
		return nil, err
	}

	target := connection.Target{
		Server:    flags.Server,
		Socket:    flags.Socket,
		AppID:     flags.AppID,
		AppSecret: flags.AppSecret,
	}
	if target.Server == "" && target.Socket == "" {
		target.Server = profile.Server
		target.Socket = profile.Socket
	}
	if target.AppID == "" {
		target.AppID = profile.AppID
	}
	if target.AppSecret == "" {
		target.AppSecret = profile.AppSecret
	}

	return connection.Dial(target)
}

// resolveOutput picks the output format from flags or the config file.
func resolveOutput(c *cli.Context) string {
	flags := ParseGlobalFlags(c)
	if flags.Output != "" {
		return flags.Output
	}
	if cfg, err := config.Load(flags.ConfigPath); err == nil && cfg.Output != "" {
		return cfg.Output
	}
	return "table"
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// confirm asks a yes/no question and reports whether the user agreed.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}
