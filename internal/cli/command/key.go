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

// KeyCommand returns the key subcommand group. Keys are scoped to the
// calling application; these commands only ever see the caller's own.
func KeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Manage keys owned by the calling application",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List keys",
				Action: keyList,
			},
			{
				Name:      "get",
				Usage:     "Get key details",
				ArgsUsage: "NAME",
				Action:    keyGet,
			},
			{
				Name:      "create",
				Usage:     "Create a new key on the secure element",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Key type",
						Value: "aes",
					},
					&cli.IntFlag{
						Name:  "bits",
						Usage: "Key size in bits (128, 192, 256)",
						Value: 256,
					},
					&cli.StringFlag{
						Name:  "algorithm",
						Usage: "Algorithm family the key is bound to (aead-gcm, aead-ccm, cipher-ctr, cipher-cbc)",
						Value: "aead-gcm",
					},
					&cli.BoolFlag{
						Name:  "no-encrypt",
						Usage: "Forbid encrypt usage",
					},
					&cli.BoolFlag{
						Name:  "no-decrypt",
						Usage: "Forbid decrypt usage",
					},
				},
				Action: keyCreate,
			},
			{
				Name:      "destroy",
				Usage:     "Destroy a key and its element slot",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: keyDestroy,
			},
		},
	}
}

func keyList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/keys")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Keys []struct {
			Name       string `json:"name"`
			Provider   string `json:"provider"`
			Attributes struct {
				Type      string `json:"type"`
				Bits      int    `json:"bits"`
				Algorithm string `json:"algorithm"`
			} `json:"attributes"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"keys"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	switch output.Format(resolveOutput(c)) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result.Keys)
	default:
		table := &output.Table{
			Headers: []string{"NAME", "TYPE", "BITS", "ALGORITHM", "CREATED"},
		}
		for _, key := range result.Keys {
			table.AddRow(
				key.Name,
				key.Attributes.Type,
				fmt.Sprintf("%d", key.Attributes.Bits),
				key.Attributes.Algorithm,
				key.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d keys\n", len(result.Keys))
		return nil
	}
}

func keyGet(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("key name required")
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/keys/"+name)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	formatter := output.NewFormatter(output.Format(resolveOutput(c)))
	return formatter.Format(os.Stdout, result)
}

func keyCreate(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("key name required")
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]any{
		"name": name,
		"attributes": map[string]any{
			"type":      c.String("type"),
			"bits":      c.Int("bits"),
			"algorithm": c.String("algorithm"),
			"usage": map[string]any{
				"encrypt": !c.Bool("no-encrypt"),
				"decrypt": !c.Bool("no-decrypt"),
			},
		},
	}

	resp, err := client.Post(ctx, "/v1/keys", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Key %q created. The key material lives on the secure element and never leaves it.\n", name)
	return nil
}

func keyDestroy(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("key name required")
	}

	if !c.Bool("force") && !confirm(fmt.Sprintf("Destroy key '%s'? Data encrypted under it becomes unrecoverable.", name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Delete(ctx, "/v1/keys/"+name)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Key %q destroyed.\n", name)
	return nil
}
