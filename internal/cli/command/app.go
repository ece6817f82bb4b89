// Package command provides CLI command definitions for sevault-cli.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sevault-go/internal/cli/connection"
	"github.com/yndnr/sevault-go/internal/cli/output"
)

// AppCommand returns the app subcommand group.
func AppCommand() *cli.Command {
	return &cli.Command{
		Name:  "app",
		Usage: "Manage client applications",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered applications",
				Action: appList,
			},
			{
				Name:  "register",
				Usage: "Register a new application",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Application name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Application role (client, admin)",
						Value:   "client",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Application description",
					},
					&cli.StringSliceFlag{
						Name:  "allow",
						Usage: "Allowed source IP (repeatable)",
					},
					&cli.IntFlag{
						Name:  "rate-limit",
						Usage: "Rate limit (requests per second, 0 = server default)",
					},
				},
				Action: appRegister,
			},
			{
				Name:      "disable",
				Usage:     "Disable an application",
				ArgsUsage: "APP_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: appDisable,
			},
			{
				Name:      "enable",
				Usage:     "Enable an application",
				ArgsUsage: "APP_ID",
				Action:    appEnable,
			},
			{
				Name:      "rotate",
				Usage:     "Rotate an application's secret",
				ArgsUsage: "APP_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: appRotate,
			},
		},
	}
}

func appList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/apps")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Apps []struct {
			AppID     string `json:"app_id"`
			Name      string `json:"name"`
			Role      string `json:"role"`
			Status    string `json:"status"`
			RateLimit int    `json:"rate_limit"`
		} `json:"apps"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result.Apps)
	default:
		table := &output.Table{
			Headers: []string{"APP ID", "NAME", "ROLE", "STATUS", "RATE LIMIT"},
		}
		for _, app := range result.Apps {
			table.AddRow(app.AppID, app.Name, app.Role, app.Status, fmt.Sprintf("%d", app.RateLimit))
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d applications\n", len(result.Apps))
		return nil
	}
}

func appRegister(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]any{
		"name": c.String("name"),
		"role": c.String("role"),
	}
	if desc := c.String("description"); desc != "" {
		body["description"] = desc
	}
	if allow := c.StringSlice("allow"); len(allow) > 0 {
		body["allowlist"] = allow
	}
	if limit := c.Int("rate-limit"); limit > 0 {
		body["rate_limit"] = limit
	}

	resp, err := client.Post(ctx, "/admin/v1/apps", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		AppID  string `json:"app_id"`
		Secret string `json:"secret"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Application registered:\n")
	fmt.Printf("  App ID: %s\n", result.AppID)
	fmt.Printf("  Secret: %s\n", result.Secret)
	fmt.Printf("\nSave this secret now - the server only stores a hash and cannot show it again.\n")
	return nil
}

func appDisable(c *cli.Context) error {
	appID := c.Args().First()
	if appID == "" {
		return fmt.Errorf("app ID required")
	}

	if !c.Bool("force") && !confirm(fmt.Sprintf("Disable application '%s'?", appID)) {
		fmt.Println("Cancelled.")
		return nil
	}

	return setAppStatus(c, appID, false)
}

func appEnable(c *cli.Context) error {
	appID := c.Args().First()
	if appID == "" {
		return fmt.Errorf("app ID required")
	}
	return setAppStatus(c, appID, true)
}

func setAppStatus(c *cli.Context, appID string, enabled bool) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]any{"enabled": enabled}
	resp, err := client.Post(ctx, "/admin/v1/apps/"+appID+"/status", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Application %s %s.\n", appID, state)
	return nil
}

func appRotate(c *cli.Context) error {
	appID := c.Args().First()
	if appID == "" {
		return fmt.Errorf("app ID required")
	}

	if !c.Bool("force") && !confirm(fmt.Sprintf("Rotate secret for application '%s'?", appID)) {
		fmt.Println("Cancelled.")
		return nil
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/admin/v1/apps/"+appID+"/rotate", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		NewSecret string `json:"new_secret"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Secret rotated:\n")
	fmt.Printf("  App ID:     %s\n", appID)
	fmt.Printf("  New Secret: %s\n", result.NewSecret)
	fmt.Printf("\nSave this secret now - the old one stopped working immediately.\n")
	return nil
}
