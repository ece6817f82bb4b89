// Package config defines the CLI configuration structure.
package config

// CLIConfig is the configuration for sevault-cli, loaded from
// ~/.sevault/config.yaml and SEVAULT_CLI_* environment variables.
type CLIConfig struct {
	// Default connection settings, used when no profile is selected.
	Server string `koanf:"server"`
	Socket string `koanf:"socket"`
	Output string `koanf:"output"` // table, json

	// Credentials for the default connection. The secret is only ever
	// the plaintext handed out at registration; the server stores a hash.
	AppID     string `koanf:"app_id"`
	AppSecret string `koanf:"app_secret"`

	// Saved connection profiles, selected with --profile.
	Profiles map[string]Profile `koanf:"profiles"`
}

// Profile stores saved connection details.
type Profile struct {
	Server    string `koanf:"server"`
	Socket    string `koanf:"socket"`
	AppID     string `koanf:"app_id"`
	AppSecret string `koanf:"app_secret"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:   "127.0.0.1:5090",
		Output:   "table",
		Profiles: make(map[string]Profile),
	}
}
