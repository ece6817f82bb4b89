// Package config defines the CLI configuration structure.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yndnr/sevault-go/internal/infra/confloader"
)

// EnvPrefix keeps CLI variables apart from the server's SEVAULT_ tree.
const EnvPrefix = "SEVAULT_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".sevault", "config.yaml")
}

// Load loads CLI configuration from the file at path, then overlays
// SEVAULT_CLI_* environment variables. A missing file is not an error;
// defaults apply.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()

	opts := []confloader.Option{confloader.WithEnvPrefix(EnvPrefix)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cli config: %w", err)
	}

	return cfg, nil
}

// Resolve picks the connection settings for the named profile, falling
// back to the top-level defaults for any field the profile leaves empty.
// An empty name selects the defaults directly.
func (c *CLIConfig) Resolve(profile string) (Profile, error) {
	base := Profile{
		Server:    c.Server,
		Socket:    c.Socket,
		AppID:     c.AppID,
		AppSecret: c.AppSecret,
	}
	if profile == "" {
		return base, nil
	}

	p, ok := c.Profiles[profile]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", profile)
	}
	if p.Server == "" {
		p.Server = base.Server
	}
	if p.Socket == "" {
		p.Socket = base.Socket
	}
	if p.AppID == "" {
		p.AppID = base.AppID
	}
	if p.AppSecret == "" {
		p.AppSecret = base.AppSecret
	}
	return p, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *CLIConfig) Validate() error {
	if c.Output != "" && c.Output != "table" && c.Output != "json" {
		return fmt.Errorf("output must be table or json, got %q", c.Output)
	}
	if c.Server == "" && c.Socket == "" {
		return fmt.Errorf("either server or socket must be set")
	}
	for name, p := range c.Profiles {
		if p.Server == "" && p.Socket == "" && c.Server == "" && c.Socket == "" {
			return fmt.Errorf("profile %q has no server or socket", name)
		}
	}
	return nil
}
