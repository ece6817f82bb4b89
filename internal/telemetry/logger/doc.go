// Package logger provides structured logging for Sevault.
//
// This package wraps the standard library log/slog:
//
//   - logger.go: Logger interface, configuration and slog handlers
//   - context.go: Context-aware logging with request/trace IDs
//   - redact.go: Sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering with runtime adjustment
//   - Automatic masking of application secrets (svs_ values)
//   - Context propagation for request tracing
package logger
