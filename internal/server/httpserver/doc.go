// Package httpserver provides the HTTP/HTTPS server for Sevault.
//
// This package implements the primary external API using stdlib net/http:
//
//   - AEAD endpoints: /v1/aead/encrypt, /v1/aead/decrypt
//   - Key endpoints: /v1/keys, /v1/keys/{name}
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - TLS support with automatic certificate reload, optional mTLS
//   - Middleware chain: RequestID, Recover, Logging, RateLimit, Auth
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
