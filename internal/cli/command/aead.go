// Package command provides CLI command definitions for sevault-cli.
package command

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sevault-go/internal/cli/connection"
)

// EncryptCommand returns the encrypt command.
func EncryptCommand() *cli.Command {
	return &cli.Command{
		Name:      "encrypt",
		Usage:     "Encrypt data with a key on the secure element",
		ArgsUsage: "KEY_NAME",
		Flags:     aeadFlags(),
		Action:    encryptAction,
	}
}

// DecryptCommand returns the decrypt command.
func DecryptCommand() *cli.Command {
	return &cli.Command{
		Name:      "decrypt",
		Usage:     "Decrypt data with a key on the secure element",
		ArgsUsage: "KEY_NAME",
		Flags:     aeadFlags(),
		Action:    decryptAction,
	}
}

func aeadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "family",
			Usage: "Algorithm family (aead-gcm, aead-ccm)",
			Value: "aead-gcm",
		},
		&cli.IntFlag{
			Name:  "tag-length",
			Usage: "Authentication tag length in bytes (0 = algorithm default)",
		},
		&cli.StringFlag{
			Name:  "nonce",
			Usage: "Nonce, base64 (server generates one when omitted on encrypt)",
		},
		&cli.StringFlag{
			Name:  "aad",
			Usage: "Additional authenticated data, base64",
		},
		&cli.StringFlag{
			Name:    "in",
			Aliases: []string{"i"},
			Usage:   "Input file (default: stdin)",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"O"},
			Usage:   "Output file (default: stdout, base64)",
		},
		&cli.BoolFlag{
			Name:  "base64",
			Usage: "Treat file input as base64 instead of raw bytes",
		},
	}
}

func encryptAction(c *cli.Context) error {
	keyName := c.Args().First()
	if keyName == "" {
		return fmt.Errorf("key name required")
	}

	plaintext, err := readInput(c)
	if err != nil {
		return err
	}
	body, err := aeadBody(c, keyName)
	if err != nil {
		return err
	}
	body["plaintext"] = plaintext

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/aead/encrypt", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Ciphertext []byte `json:"ciphertext"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	return writeOutput(c, result.Ciphertext)
}

func decryptAction(c *cli.Context) error {
	keyName := c.Args().First()
	if keyName == "" {
		return fmt.Errorf("key name required")
	}

	ciphertext, err := readInput(c)
	if err != nil {
		return err
	}
	body, err := aeadBody(c, keyName)
	if err != nil {
		return err
	}
	body["ciphertext"] = ciphertext

	if len(body["nonce"].([]byte)) == 0 {
		return fmt.Errorf("--nonce is required for decrypt")
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/aead/decrypt", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Plaintext []byte `json:"plaintext"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	return writeOutput(c, result.Plaintext)
}

// aeadBody builds the common request fields for encrypt and decrypt.
func aeadBody(c *cli.Context, keyName string) (map[string]any, error) {
	nonce, err := decodeB64Flag(c, "nonce")
	if err != nil {
		return nil, err
	}
	aad, err := decodeB64Flag(c, "aad")
	if err != nil {
		return nil, err
	}

	algorithm := map[string]any{"family": c.String("family")}
	if tagLen := c.Int("tag-length"); tagLen > 0 {
		algorithm["tag_length"] = tagLen
	}

	return map[string]any{
		"key_name":  keyName,
		"algorithm": algorithm,
		"nonce":     nonce,
		"aad":       aad,
	}, nil
}

func decodeB64Flag(c *cli.Context, name string) ([]byte, error) {
	value := c.String(name)
	if value == "" {
		return []byte{}, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("--%s is not valid base64: %w", name, err)
	}
	return decoded, nil
}

// readInput reads the payload from --in or stdin. Raw bytes by default;
// --base64 decodes text input first.
func readInput(c *cli.Context) ([]byte, error) {
	var data []byte
	var err error

	if path := c.String("in"); path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if c.Bool("base64") {
		decoded, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("input is not valid base64: %w", err)
		}
		data = decoded
	}
	return data, nil
}

// writeOutput writes result bytes to --out as raw bytes, or to stdout
// as base64.
func writeOutput(c *cli.Context, data []byte) error {
	if path := c.String("out"); path != "" {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	fmt.Println(base64.StdEncoding.EncodeToString(data))
	return nil
}
