// Package main provides the entry point for sevault-server.
//
// The server is the core Sevault service that provides:
//
//   - HTTP/HTTPS API for AEAD encryption and key management
//   - Local Unix socket for management access (peer-trusted admin)
//   - Hash-chained audit trail with retention
//   - Encrypted metadata backups and restore
//
// Usage:
//
//	sevault-server [flags]
//	sevault-server --config /path/to/config.yaml
//	SEVAULT_RESTORE_PASSPHRASE=... sevault-server --restore /path/to/backup.svb
//
// The server loads configuration, opens the secure element and the
// metadata store, and starts all configured listeners. SIGHUP re-reads
// the configuration file and applies the log level.
package main
