// Package tlsroots provides TLS certificate management for Sevault.
//
// This package handles TLS certificate loading and management:
//
//   - roots.go: System certificates + custom CA loading
//   - watcher.go: Certificate hot-reload via fsnotify
//
// Features:
//
//   - System certificate pool integration
//   - Custom CA certificate support for mTLS client verification
//   - Automatic certificate reload on file changes
package tlsroots
