// Package command provides CLI command definitions for sevault-cli.
package command

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sevault-go/internal/cli/connection"
	"github.com/yndnr/sevault-go/internal/cli/output"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "System management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show system status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
			{
				Name:  "audit",
				Usage: "Show the newest audit trail records",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum records to return",
						Value: 50,
					},
					&cli.StringFlag{
						Name:  "app",
						Usage: "Filter by application ID",
					},
					&cli.StringFlag{
						Name:  "op",
						Usage: "Filter by operation (encrypt, decrypt, key.create, ...)",
					},
				},
				Action: systemAudit,
			},
			{
				Name:  "backup",
				Usage: "Create an encrypted backup of the server's metadata store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "passphrase",
						Usage:    "Passphrase the backup is sealed with",
						EnvVars:  []string{"SEVAULT_CLI_BACKUP_PASSPHRASE"},
						Required: true,
					},
				},
				Action: systemBackup,
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/status/summary")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Element *struct {
			Serial     string `json:"serial"`
			SlotsUsed  int    `json:"slots_used"`
			SlotsTotal int    `json:"slots_total"`
		} `json:"element"`
		Storage *struct {
			TotalKeys uint64 `json:"total_keys"`
			TotalSize uint64 `json:"total_size"`
		} `json:"storage"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		fmt.Printf("System Status\n")
		fmt.Printf("=============\n\n")
		fmt.Printf("Status:   %s\n", result.Status)
		fmt.Printf("Version:  %s\n", result.Version)
		if result.Element != nil {
			fmt.Printf("\nSecure element\n")
			fmt.Printf("  Serial: %s\n", result.Element.Serial)
			fmt.Printf("  Slots:  %d/%d used\n", result.Element.SlotsUsed, result.Element.SlotsTotal)
		}
		if result.Storage != nil {
			fmt.Printf("\nMetadata store\n")
			fmt.Printf("  Keys: %d\n", result.Storage.TotalKeys)
			fmt.Printf("  Size: %.2f KB\n", float64(result.Storage.TotalSize)/1024)
		}
		return nil
	}
}

func systemHealth(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Health is unauthenticated.
	resp, err := client.Get(ctx, "/health")
	if err != nil {
		PrintError("health check failed: %v", err)
		return fmt.Errorf("server unhealthy")
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		if result.Status == "healthy" {
			fmt.Printf("Server is healthy\n")
			fmt.Printf("  Target: %s\n", client.BaseURL())
		} else {
			fmt.Printf("Server is unhealthy: %s\n", result.Status)
		}
		return nil
	}
}

func systemAudit(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", c.Int("limit")))
	if app := c.String("app"); app != "" {
		query.Set("app", app)
	}
	if op := c.String("op"); op != "" {
		query.Set("op", op)
	}

	resp, err := client.Get(ctx, "/admin/v1/audit?"+query.Encode())
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Records []struct {
			Op        string    `json:"op"`
			Timestamp time.Time `json:"timestamp"`
			App       string    `json:"app"`
			Key       string    `json:"key"`
			Code      string    `json:"code"`
		} `json:"records"`
		Total int `json:"total"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result.Records)
	default:
		table := &output.Table{
			Headers: []string{"TIME", "OP", "APP", "KEY", "CODE"},
		}
		for _, rec := range result.Records {
			table.AddRow(
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				rec.Op,
				rec.App,
				rec.Key,
				rec.Code,
			)
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nShowing %d of %d records\n", len(result.Records), result.Total)
		return nil
	}
}

func systemBackup(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	// Snapshots of large stores take a while.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("Creating backup...")

	body := map[string]any{"passphrase": c.String("passphrase")}
	resp, err := client.Post(ctx, "/admin/v1/backup", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		ID        string    `json:"id"`
		Path      string    `json:"path"`
		Size      int64     `json:"size"`
		Checksum  string    `json:"checksum"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		fmt.Printf("Backup created:\n")
		fmt.Printf("  ID:       %s\n", result.ID)
		fmt.Printf("  Path:     %s\n", result.Path)
		fmt.Printf("  Size:     %.2f KB\n", float64(result.Size)/1024)
		fmt.Printf("  Checksum: %s\n", result.Checksum)
		return nil
	}
}
