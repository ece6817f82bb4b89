// Package command provides CLI command definitions for sevault-cli.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sevault-go/internal/cli/config"
	"github.com/yndnr/sevault-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI configuration",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a CLI configuration file",
				ArgsUsage: "[FILE]",
				Action:    configValidate,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path in use",
				Action: configPath,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	// Never print secrets.
	type profileView struct {
		Name   string `json:"name"`
		Server string `json:"server"`
		Socket string `json:"socket"`
		AppID  string `json:"app_id"`
	}
	view := struct {
		Server   string        `json:"server"`
		Socket   string        `json:"socket"`
		Output   string        `json:"output"`
		AppID    string        `json:"app_id"`
		Profiles []profileView `json:"profiles"`
	}{
		Server: cfg.Server,
		Socket: cfg.Socket,
		Output: cfg.Output,
		AppID:  cfg.AppID,
	}
	for name, p := range cfg.Profiles {
		view.Profiles = append(view.Profiles, profileView{
			Name:   name,
			Server: p.Server,
			Socket: p.Socket,
			AppID:  p.AppID,
		})
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, view)
	default:
		fmt.Printf("CLI Configuration\n")
		fmt.Printf("=================\n\n")
		fmt.Printf("Server: %s\n", orDash(view.Server))
		fmt.Printf("Socket: %s\n", orDash(view.Socket))
		fmt.Printf("Output: %s\n", orDash(view.Output))
		fmt.Printf("App ID: %s\n", orDash(view.AppID))
		if len(view.Profiles) > 0 {
			fmt.Printf("\nProfiles:\n")
			table := &output.Table{Headers: []string{"NAME", "SERVER", "SOCKET", "APP ID"}}
			for _, p := range view.Profiles {
				table.AddRow(p.Name, orDash(p.Server), orDash(p.Socket), orDash(p.AppID))
			}
			if err := table.Render(os.Stdout); err != nil {
				return err
			}
		}
		return nil
	}
}

func configValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = ParseGlobalFlags(c).ConfigPath
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No configuration file found at %s; defaults apply.\n", path)
		return nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Configuration file is valid: %s\n", path)
	return nil
}

func configPath(c *cli.Context) error {
	path := ParseGlobalFlags(c).ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fmt.Println(path)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
