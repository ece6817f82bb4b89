// Package config provides server configuration for Sevault.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (address formats, file existence,
//     enum values)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - wire.go: Conversion to subsystem configs (storage, audit, backup,
//     auth)
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
