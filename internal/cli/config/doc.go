// Package config provides CLI configuration for sevault-cli.
//
// Configuration lives at ~/.sevault/config.yaml and covers the default
// server address or socket path, application credentials, the preferred
// output format, and named connection profiles. SEVAULT_CLI_* environment
// variables override file values; command-line flags override both.
package config
